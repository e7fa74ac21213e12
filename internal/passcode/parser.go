package passcode

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"meetpin/entity"
	"meetpin/lib/apperr"
	"meetpin/lib/sl"
)

// Passcode lengths. A conference pin is 10 digits, optionally extended to
// 13 by a personalized attendee suffix or to 15 by a dial-in suffix.
const (
	ConferencePasscodeLength = 10
	AttendeePasscodeLength   = 13
	DialInPasscodeLength     = 15
)

// PinLookup resolves a code to a pin, nil when absent.
type PinLookup interface {
	Lookup(ctx context.Context, code string) (*entity.Pin, error)
}

// Parser classifies a raw passcode string by length into its conference,
// attendee and dial-in segments.
type Parser struct {
	pins   PinLookup
	log    *slog.Logger
	joined metric.Int64Counter
}

func NewParser(pins PinLookup, log *slog.Logger) *Parser {
	meter := otel.Meter("meetpin/internal/passcode")
	joined, _ := meter.Int64Counter("joined_by_pin_type")
	return &Parser{
		pins:   pins,
		log:    log.With(sl.Module("passcode.parser")),
		joined: joined,
	}
}

// Parse validates both the conference part and the personalized attendee
// part (when present) in one pass, so callers issue a single pin query.
// With loadAttendeePin false a 13-digit passcode is rejected as an
// unsupported length.
func (p *Parser) Parse(ctx context.Context, raw string, loadAttendeePin bool) (*entity.Passcode, error) {
	length := len(raw)
	if length < ConferencePasscodeLength {
		return nil, apperr.NotFound(apperr.CodeInvalidPasscode,
			fmt.Sprintf("passcode has invalid length %d", length))
	}

	info := &entity.Passcode{ConferencePin: raw[:ConferencePasscodeLength]}

	switch {
	case length == AttendeePasscodeLength && loadAttendeePin:
		pin, err := p.pins.Lookup(ctx, raw)
		if err != nil {
			return nil, err
		}
		if pin == nil {
			return nil, apperr.NotFound(apperr.CodeInvalidPasscode, "could not find attendee pin")
		}
		if pin.Type != entity.PinTypeAttendee {
			return nil, apperr.NotFound(apperr.CodeInvalidPasscode,
				fmt.Sprintf("invalid type %s for attendee passcode", pin.Type))
		}
		info.AttendeePin = pin
		p.joined.Add(ctx, 1, metric.WithAttributes(attribute.String("pin_type", "attendee")))
	case length == DialInPasscodeLength:
		info.DialInPasscode = raw
		p.joined.Add(ctx, 1, metric.WithAttributes(attribute.String("pin_type", "dial_in")))
	case length > ConferencePasscodeLength:
		return nil, apperr.NotFound(apperr.CodeInvalidPasscode,
			fmt.Sprintf("unsupported passcode length %d", length))
	}

	return info, nil
}
