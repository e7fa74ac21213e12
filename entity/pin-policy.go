package entity

import "time"

// PinPolicy drives code generation for one create call. It starts from a
// type-specific default and is overlaid with request-supplied fields; it is
// never persisted.
type PinPolicy struct {
	BasePin      string
	MinLength    int
	MaxLength    int
	PrefixLength int
	SuffixLength int
	DeactivateOn *time.Time
	ReservedBy   string
}
