package entity

import "time"

// FeatureFlag is a dynamically managed switch. Enabled turns the feature on
// for everyone; otherwise it is on only for subjects in the allowlist.
type FeatureFlag struct {
	Key       string    `json:"key" bson:"key"`
	Enabled   bool      `json:"enabled" bson:"enabled"`
	Allowlist []string  `json:"allowlist,omitempty" bson:"allowlist,omitempty"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func (f *FeatureFlag) EnabledFor(subjectId string) bool {
	if f.Enabled {
		return true
	}
	for _, id := range f.Allowlist {
		if id == subjectId {
			return true
		}
	}
	return false
}
