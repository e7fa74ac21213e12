package entity

import "time"

// Conference is the meeting a waiting room guards. A locked conference
// rejects new waiting-room activity.
type Conference struct {
	Id        string    `json:"id" bson:"id"`
	Title     string    `json:"title,omitempty" bson:"title,omitempty"`
	Locked    bool      `json:"locked" bson:"locked"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
