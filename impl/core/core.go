package core

import (
	"context"
	"fmt"
	"log/slog"

	"meetpin/entity"
	"meetpin/lib/sl"
)

type AuthService interface {
	UserByToken(token string) (*entity.User, error)
}

type PinService interface {
	Find(ctx context.Context, code string) (*entity.Pin, error)
	Create(ctx context.Context, req *entity.CreatePinRequest) (*entity.CreatePinResponse, error)
	Reclaim(ctx context.Context, req *entity.ReclaimPinRequest) (*entity.Pin, error)
	Recreate(ctx context.Context, req *entity.RecreatePinRequest) (*entity.CreatePinResponse, error)
	Expire(ctx context.Context, code string) error
}

type AdmissionService interface {
	AdmitAnonymous(ctx context.Context, req *entity.AdmitAnonymousRequest) (*entity.AccessRequest, error)
	ValidateAccessRequest(ctx context.Context, accessRequestId string) (*entity.AccessRequest, error)
}

type DialInService interface {
	UserDialInCode(ctx context.Context, waitingRoomId, profileId, meetingPin string) (string, error)
}

// Core glues the HTTP surface to the domain services.
type Core struct {
	pins      PinService
	admission AdmissionService
	dialIn    DialInService
	auth      AuthService
	log       *slog.Logger
}

func New(pins PinService, admission AdmissionService, log *slog.Logger) *Core {
	if pins == nil {
		panic("pin service is nil")
	}
	if admission == nil {
		panic("admission service is nil")
	}
	return &Core{
		pins:      pins,
		admission: admission,
		log:       log.With(sl.Module("core")),
	}
}

func (c *Core) SetAuthService(auth AuthService) {
	c.auth = auth
}

func (c *Core) SetDialInService(dialIn DialInService) {
	c.dialIn = dialIn
}

func (c *Core) AuthenticateByToken(token string) (*entity.User, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	return c.auth.UserByToken(token)
}

func (c *Core) FindPin(ctx context.Context, code string) (*entity.Pin, error) {
	return c.pins.Find(ctx, code)
}

func (c *Core) CreatePin(ctx context.Context, req *entity.CreatePinRequest) (*entity.CreatePinResponse, error) {
	return c.pins.Create(ctx, req)
}

func (c *Core) ReclaimPin(ctx context.Context, req *entity.ReclaimPinRequest) (*entity.Pin, error) {
	return c.pins.Reclaim(ctx, req)
}

func (c *Core) RecreatePin(ctx context.Context, req *entity.RecreatePinRequest) (*entity.CreatePinResponse, error) {
	return c.pins.Recreate(ctx, req)
}

func (c *Core) ExpirePin(ctx context.Context, code string) error {
	return c.pins.Expire(ctx, code)
}

func (c *Core) AdmitAnonymous(ctx context.Context, req *entity.AdmitAnonymousRequest) (*entity.AccessRequest, error) {
	return c.admission.AdmitAnonymous(ctx, req)
}

func (c *Core) ValidateAccessRequest(ctx context.Context, accessRequestId string) (*entity.AccessRequest, error) {
	return c.admission.ValidateAccessRequest(ctx, accessRequestId)
}

func (c *Core) UserDialInCode(ctx context.Context, waitingRoomId, profileId, meetingPin string) (string, error) {
	if c.dialIn == nil {
		return "", fmt.Errorf("dial-in service not connected")
	}
	return c.dialIn.UserDialInCode(ctx, waitingRoomId, profileId, meetingPin)
}
