package entity

import (
	"strings"
	"time"
)

// PinType tags the flavor of a pin. Dispatch on it is exhaustive: adding a
// type means touching every switch that compiles against these constants.
type PinType string

const (
	PinTypeGeneric    PinType = "Generic"
	PinTypePersonal   PinType = "Personal"
	PinTypeConference PinType = "Conference"
	PinTypeAttendee   PinType = "Attendee"
	PinTypeSdk        PinType = "Sdk"
)

// PinTypeFromString resolves a request-supplied type name, case-insensitive.
func PinTypeFromString(name string) (PinType, bool) {
	for _, t := range []PinType{PinTypeGeneric, PinTypePersonal, PinTypeConference, PinTypeAttendee, PinTypeSdk} {
		if strings.EqualFold(string(t), name) {
			return t, true
		}
	}
	return "", false
}

// Pin is a numeric credential identifying a conference, a personal meeting
// space, or a personalized attendee extension. The code is the natural key;
// Alias is a secondary lookup key resolved before any code lookup. Pins are
// never deleted, only marked expired.
type Pin struct {
	Code              string     `json:"code" bson:"code"`
	Type              PinType    `json:"pin_type" bson:"pin_type"`
	OwnerEntityId     string     `json:"owner_entity_id" bson:"owner_entity_id"`
	Alias             string     `json:"alias,omitempty" bson:"alias,omitempty"`
	ModeratorCodeHash string     `json:"-" bson:"moderator_code_hash,omitempty"`
	DeactivateOn      *time.Time `json:"deactivate_on,omitempty" bson:"deactivate_on,omitempty"`
	Expired           bool       `json:"expired" bson:"expired"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at"`
}
