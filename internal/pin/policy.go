package pin

import (
	"meetpin/entity"
)

const (
	// pinCodeLength is the canonical length of conference and personal pins.
	pinCodeLength = 10
	// attendeeSuffixLength is the personalized extension appended to a base
	// pin. TODO: take this from the organization's pin policy once that is
	// exposed by the identity directory.
	attendeeSuffixLength = 3
)

func defaultPolicy(t entity.PinType) entity.PinPolicy {
	switch t {
	case entity.PinTypeAttendee:
		return entity.PinPolicy{MinLength: attendeeSuffixLength, MaxLength: attendeeSuffixLength, SuffixLength: attendeeSuffixLength}
	default:
		return entity.PinPolicy{MinLength: pinCodeLength, MaxLength: pinCodeLength, SuffixLength: pinCodeLength}
	}
}

// policyFromRequest overlays caller-supplied fields onto the type default.
// Nil request fields keep the default.
func policyFromRequest(t entity.PinType, req *entity.PinPolicyRequest) entity.PinPolicy {
	p := defaultPolicy(t)
	if req == nil {
		return p
	}
	if req.BasePin != nil {
		p.BasePin = *req.BasePin
	}
	if req.MinLength != nil {
		p.MinLength = *req.MinLength
	}
	if req.MaxLength != nil {
		p.MaxLength = *req.MaxLength
	}
	if req.PrefixLength != nil {
		p.PrefixLength = *req.PrefixLength
	}
	if req.SuffixLength != nil {
		p.SuffixLength = *req.SuffixLength
	}
	if req.DeactivateOn != nil {
		p.DeactivateOn = req.DeactivateOn
	}
	if req.ReservedBy != nil {
		p.ReservedBy = *req.ReservedBy
	}
	return p
}
