package entity

import (
	"net/http"
	"time"

	"meetpin/lib/validate"
)

type AccessStatus string

const (
	AccessApproved AccessStatus = "APPROVED"
	AccessDenied   AccessStatus = "DENIED"
	AccessPending  AccessStatus = "PENDING"
	AccessExpired  AccessStatus = "EXPIRED"
)

// DecisionSigV4Authenticated marks an access request approved because the
// waiting-room request arrived over an already-authenticated channel.
const DecisionSigV4Authenticated = "DECISION_CODE_WR_REQUEST_SIGV4_AUTHENTICATED"

// AccessRequest records one attendee's admission attempt and its resolved
// outcome. ResolvedReason always carries the decision code that produced
// the current status. Immutable in this service after insert; the operator
// workflow owns later status transitions.
type AccessRequest struct {
	AccessRequestId string       `json:"access_request_id" bson:"access_request_id"`
	WaitingRoomId   string       `json:"waiting_room_id" bson:"waiting_room_id"`
	PartitionNum    int          `json:"partition_num" bson:"partition_num"`
	ProfileId       string       `json:"profile_id" bson:"profile_id"`
	DeviceId        string       `json:"device_id" bson:"device_id"`
	DevicePlatform  string       `json:"device_platform" bson:"device_platform"`
	DisplayName     string       `json:"display_name" bson:"display_name"`
	IsAnonymous     bool         `json:"is_anonymous" bson:"is_anonymous"`
	Status          AccessStatus `json:"status" bson:"status"`
	RequestedAt     time.Time    `json:"requested_at" bson:"requested_at"`
	IsModerator     bool         `json:"is_moderator" bson:"is_moderator"`
	CallerAccountId string       `json:"caller_account_id" bson:"caller_account_id"`
	ShouldExpireAt  *time.Time   `json:"should_expire_at,omitempty" bson:"should_expire_at,omitempty"`
	ResolvedReason  string       `json:"resolved_reason" bson:"resolved_reason"`
	DialInCode      string       `json:"dial_in_code,omitempty" bson:"dial_in_code,omitempty"`
}

func (a *AccessRequest) IsAllowed() bool {
	return a.Status == AccessApproved
}

// IsZero reports the "feature not enabled" no-op result: an access request
// that was never created or persisted.
func (a *AccessRequest) IsZero() bool {
	return a.AccessRequestId == ""
}

type AdmitAnonymousRequest struct {
	Passcode        string `json:"passcode" validate:"required,min=10"`
	ConferenceId    string `json:"conference_id" validate:"required"`
	ProfileId       string `json:"profile_id" validate:"omitempty"`
	DeviceId        string `json:"device_id" validate:"omitempty"`
	DevicePlatform  string `json:"device_platform" validate:"omitempty"`
	DisplayName     string `json:"display_name" validate:"omitempty"`
	CallerAccountId string `json:"caller_account_id" validate:"omitempty"`
}

func (r *AdmitAnonymousRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}

type DialInCodeRequest struct {
	WaitingRoomId string `json:"waiting_room_id" validate:"required"`
	ProfileId     string `json:"profile_id" validate:"required"`
	MeetingPin    string `json:"meeting_pin" validate:"required,len=10"`
}

func (r *DialInCodeRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}
