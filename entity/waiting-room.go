package entity

import "time"

// WaitingRoom is a holding area for attendees pending admission into a
// conference, keyed by the (pin, conference) pair it was created for.
type WaitingRoom struct {
	Id           string    `json:"id" bson:"id"`
	PartitionNum int       `json:"partition_num" bson:"partition_num"`
	Revision     int64     `json:"revision" bson:"revision"`
	PinCode      string    `json:"pin_code" bson:"pin_code"`
	ConferenceId string    `json:"conference_id" bson:"conference_id"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}
