package entity

import (
	"net/http"
	"time"

	"meetpin/lib/validate"
)

// PinEntity identifies who a created pin is for: a known profile id or an
// email the identity directory can resolve (or register).
type PinEntity struct {
	EntityId string `json:"entity_id" validate:"omitempty"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// PinPolicyRequest carries the caller-supplied policy overrides. Nil fields
// keep the type default.
type PinPolicyRequest struct {
	BasePin      *string    `json:"base_pin,omitempty"`
	MinLength    *int       `json:"min_length,omitempty"`
	MaxLength    *int       `json:"max_length,omitempty"`
	PrefixLength *int       `json:"prefix_length,omitempty"`
	SuffixLength *int       `json:"suffix_length,omitempty"`
	DeactivateOn *time.Time `json:"deactivate_on,omitempty"`
	ReservedBy   *string    `json:"reserved_by,omitempty"`
}

type CreatePinRequest struct {
	PinType       string            `json:"pin_type" validate:"required"`
	Entities      []PinEntity       `json:"entities" validate:"omitempty,dive"`
	PinPolicy     *PinPolicyRequest `json:"pin_policy,omitempty"`
	ModeratorCode string            `json:"moderator_code,omitempty"`
}

func (r *CreatePinRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}

type PinResult struct {
	EntityId string `json:"entity_id"`
	Email    string `json:"email,omitempty"`
	Pin      string `json:"pin"`
}

type PinResultFailure struct {
	EntityId string `json:"entity_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Reason   string `json:"reason"`
}

type CreatePinResponse struct {
	AllocatedPins []PinResult        `json:"allocated_pins"`
	Failures      []PinResultFailure `json:"failures,omitempty"`
}

type ReclaimPinRequest struct {
	Pin               string `json:"pin" validate:"required"`
	PinOwnerProfileId string `json:"pin_owner_profile_id" validate:"omitempty"`
	PinOwnerEmail     string `json:"pin_owner_email" validate:"omitempty,email"`
}

func (r *ReclaimPinRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}

type RecreatePinRequest struct {
	Pin               string `json:"pin" validate:"required"`
	PinOwnerProfileId string `json:"pin_owner_profile_id" validate:"omitempty"`
	PinOwnerEmail     string `json:"pin_owner_email" validate:"omitempty,email"`
}

func (r *RecreatePinRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}
