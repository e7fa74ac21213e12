package entity

import (
	"net/http"
	"time"

	"meetpin/lib/validate"
)

// User is an API caller authenticated by token. Pin lifecycle operations
// additionally require the manage-pins grant.
type User struct {
	Username      string    `json:"username" bson:"username" validate:"required"`
	Name          string    `json:"name" bson:"name" validate:"omitempty"`
	Email         string    `json:"email" bson:"email" validate:"omitempty"`
	Token         string    `json:"token" bson:"token" validate:"required,min=1"`
	CanManagePins bool      `json:"can_manage_pins" bson:"can_manage_pins"`
	RegisteredAt  time.Time `json:"registered_at" bson:"registered_at"`
}

func (u *User) Bind(_ *http.Request) error {
	return validate.Struct(u)
}
