package entity

// Passcode is the parsed form of a raw user-entered passcode: a 10-digit
// conference pin segment plus at most one of a personalized attendee pin or
// a 15-digit dial-in passcode. Built fresh per parse, never persisted.
type Passcode struct {
	ConferencePin  string `json:"conference_pin"`
	AttendeePin    *Pin   `json:"attendee_pin,omitempty"`
	DialInPasscode string `json:"dial_in_passcode,omitempty"`
}

func (p *Passcode) HasAttendeePin() bool {
	return p.AttendeePin != nil
}
