package entity

import "time"

// Profile is the identity directory's view of a person.
type Profile struct {
	ProfileId    string    `json:"profile_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	RegisteredAt time.Time `json:"registered_at"`
}
