package pin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"meetpin/entity"
)

func TestDefaultPolicy(t *testing.T) {
	p := defaultPolicy(entity.PinTypeConference)
	assert.Equal(t, pinCodeLength, p.SuffixLength)
	assert.Equal(t, pinCodeLength, p.MinLength)
	assert.Equal(t, pinCodeLength, p.MaxLength)

	p = defaultPolicy(entity.PinTypeAttendee)
	assert.Equal(t, attendeeSuffixLength, p.SuffixLength)
}

func TestPolicyFromRequestNilKeepsDefaults(t *testing.T) {
	p := policyFromRequest(entity.PinTypePersonal, nil)
	assert.Equal(t, defaultPolicy(entity.PinTypePersonal), p)
}

func TestPolicyFromRequestOverlays(t *testing.T) {
	base := "1234567890"
	suffix := 4
	on := time.Now().Add(24 * time.Hour)
	reserved := "scheduler"

	p := policyFromRequest(entity.PinTypeConference, &entity.PinPolicyRequest{
		BasePin:      &base,
		SuffixLength: &suffix,
		DeactivateOn: &on,
		ReservedBy:   &reserved,
	})

	assert.Equal(t, base, p.BasePin)
	assert.Equal(t, suffix, p.SuffixLength)
	assert.Equal(t, reserved, p.ReservedBy)
	if assert.NotNil(t, p.DeactivateOn) {
		assert.True(t, p.DeactivateOn.Equal(on))
	}
	// Untouched fields keep the type default.
	assert.Equal(t, pinCodeLength, p.MinLength)
	assert.Equal(t, pinCodeLength, p.MaxLength)
}
