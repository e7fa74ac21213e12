package admission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"meetpin/entity"
	"meetpin/lib/apperr"
	"meetpin/lib/sl"
)

// FeatureEnhancedMeetingExperience gates the waiting-room admission flow
// per pin owner.
const FeatureEnhancedMeetingExperience = "EnhancedMeetingExperience"

type Parser interface {
	Parse(ctx context.Context, raw string, loadAttendeePin bool) (*entity.Passcode, error)
}

type PinFinder interface {
	Lookup(ctx context.Context, code string) (*entity.Pin, error)
}

type FeatureProvider interface {
	IsFeatureEnabledFor(ctx context.Context, key, subjectId string) bool
}

type ConferenceStore interface {
	Conference(ctx context.Context, id string) (*entity.Conference, error)
}

type WaitingRoomProvider interface {
	GetOrCreateWaitingRoom(ctx context.Context, pin *entity.Pin, conference *entity.Conference) (*entity.WaitingRoom, error)
}

type AccessRequestStore interface {
	InsertAccessRequest(ctx context.Context, req *entity.AccessRequest) error
	AccessRequest(ctx context.Context, id string) (*entity.AccessRequest, error)
}

// Notifier is pinged after an access request lands in a waiting room.
// Best effort, never blocks the decision.
type Notifier interface {
	AccessRequested(req *entity.AccessRequest)
}

// Engine decides whether an anonymous attendee may be admitted into a
// meeting's waiting room.
type Engine struct {
	parser      Parser
	pins        PinFinder
	features    FeatureProvider
	conferences ConferenceStore
	rooms       WaitingRoomProvider
	requests    AccessRequestStore
	notifier    Notifier
	log         *slog.Logger
	admitted    metric.Int64Counter
}

func New(parser Parser, pins PinFinder, features FeatureProvider, conferences ConferenceStore,
	rooms WaitingRoomProvider, requests AccessRequestStore, log *slog.Logger) *Engine {
	meter := otel.Meter("meetpin/internal/admission")
	admitted, _ := meter.Int64Counter("anonymous_admissions")
	return &Engine{
		parser:      parser,
		pins:        pins,
		features:    features,
		conferences: conferences,
		rooms:       rooms,
		requests:    requests,
		log:         log.With(sl.Module("admission")),
		admitted:    admitted,
	}
}

func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// findConferencePin resolves the conference segment of a passcode to a
// live, joinable pin. Expired and SDK pins read as absent.
func (e *Engine) findConferencePin(ctx context.Context, passcode string) (*entity.Pin, error) {
	info, err := e.parser.Parse(ctx, passcode, false)
	if err != nil {
		return nil, err
	}
	pin, err := e.pins.Lookup(ctx, info.ConferencePin)
	if err != nil {
		return nil, err
	}
	if pin == nil || pin.Expired || pin.Type == entity.PinTypeSdk {
		return nil, apperr.NotFound(apperr.CodeInvalidPasscode, "could not find pin")
	}
	return pin, nil
}

// AdmitAnonymous resolves the passcode, checks the pin owner's feature
// allowlist and, when enabled, writes an APPROVED access request into the
// conference's waiting room.
//
// When the feature is off for the pin owner the zero-value access request
// is returned with no error and nothing persisted: a deliberate no-op, not
// a denial. This path never writes a DENIED record; every rejection
// surfaces as an error instead.
func (e *Engine) AdmitAnonymous(ctx context.Context, req *entity.AdmitAnonymousRequest) (*entity.AccessRequest, error) {
	pin, err := e.findConferencePin(ctx, req.Passcode)
	if err != nil {
		return nil, err
	}

	if !e.features.IsFeatureEnabledFor(ctx, FeatureEnhancedMeetingExperience, pin.OwnerEntityId) {
		e.log.Debug("pin owner not allowlisted for enhanced experience",
			slog.String("owner", pin.OwnerEntityId))
		return &entity.AccessRequest{}, nil
	}

	conference, err := e.conferences.Conference(ctx, req.ConferenceId)
	if err != nil {
		return nil, err
	}
	if conference == nil {
		return nil, apperr.NotFound("", "conference not found")
	}

	room, err := e.rooms.GetOrCreateWaitingRoom(ctx, pin, conference)
	if err != nil {
		return nil, err
	}

	access := &entity.AccessRequest{
		AccessRequestId: uuid.NewString(),
		WaitingRoomId:   room.Id,
		PartitionNum:    room.PartitionNum,
		ProfileId:       req.ProfileId,
		DeviceId:        req.DeviceId,
		DevicePlatform:  req.DevicePlatform,
		DisplayName:     req.DisplayName,
		IsAnonymous:     true,
		Status:          entity.AccessApproved,
		RequestedAt:     time.Now().UTC(),
		IsModerator:     false,
		CallerAccountId: req.CallerAccountId,
		ShouldExpireAt:  nil,
		ResolvedReason:  entity.DecisionSigV4Authenticated,
	}

	e.log.Info("inserting access request",
		slog.String("access_request_id", access.AccessRequestId),
		slog.String("waiting_room_id", room.Id),
		slog.String("profile_id", req.ProfileId))
	if err = e.requests.InsertAccessRequest(ctx, access); err != nil {
		return nil, fmt.Errorf("insert access request: %w", err)
	}
	e.admitted.Add(ctx, 1)

	if e.notifier != nil {
		e.notifier.AccessRequested(access)
	}
	return access, nil
}

// ValidateAccessRequest loads an access request by id, rejecting unknown
// ids and non-approved records.
func (e *Engine) ValidateAccessRequest(ctx context.Context, accessRequestId string) (*entity.AccessRequest, error) {
	if accessRequestId == "" {
		return nil, apperr.BadRequest("null or empty access request id")
	}
	access, err := e.requests.AccessRequest(ctx, accessRequestId)
	if err != nil {
		return nil, err
	}
	if access == nil {
		return nil, apperr.BadRequest("invalid access request id " + accessRequestId)
	}
	if !access.IsAllowed() {
		return nil, apperr.Forbidden(fmt.Sprintf("not allowed status %s", access.Status))
	}
	return access, nil
}
