package passcode

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetpin/entity"
	"meetpin/lib/apperr"
)

type fakePinLookup struct {
	pins map[string]*entity.Pin
}

func (f *fakePinLookup) Lookup(_ context.Context, code string) (*entity.Pin, error) {
	return f.pins[code], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseTooShort(t *testing.T) {
	parser := NewParser(&fakePinLookup{}, testLogger())

	for _, raw := range []string{"", "1", "123456789"} {
		_, err := parser.Parse(context.Background(), raw, true)
		require.Error(t, err)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
		assert.Equal(t, apperr.CodeInvalidPasscode, apperr.CodeOf(err))
	}
}

func TestParseConferenceOnly(t *testing.T) {
	parser := NewParser(&fakePinLookup{}, testLogger())

	info, err := parser.Parse(context.Background(), "1234567890", true)
	require.NoError(t, err)
	assert.Equal(t, "1234567890", info.ConferencePin)
	assert.False(t, info.HasAttendeePin())
	assert.Empty(t, info.DialInPasscode)
}

func TestParseAttendee(t *testing.T) {
	lookup := &fakePinLookup{pins: map[string]*entity.Pin{
		"1234567890123": {Code: "1234567890123", Type: entity.PinTypeAttendee},
	}}
	parser := NewParser(lookup, testLogger())

	info, err := parser.Parse(context.Background(), "1234567890123", true)
	require.NoError(t, err)
	assert.Equal(t, "1234567890", info.ConferencePin)
	require.True(t, info.HasAttendeePin())
	assert.Equal(t, "1234567890123", info.AttendeePin.Code)
}

func TestParseAttendeePinMissing(t *testing.T) {
	parser := NewParser(&fakePinLookup{}, testLogger())

	_, err := parser.Parse(context.Background(), "1234567890123", true)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, apperr.CodeInvalidPasscode, apperr.CodeOf(err))
}

func TestParseAttendeePinWrongType(t *testing.T) {
	lookup := &fakePinLookup{pins: map[string]*entity.Pin{
		"1234567890123": {Code: "1234567890123", Type: entity.PinTypeConference},
	}}
	parser := NewParser(lookup, testLogger())

	_, err := parser.Parse(context.Background(), "1234567890123", true)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

// A 13-digit passcode without attendee loading falls through to the
// unsupported-length branch.
func TestParseAttendeeWithoutLoadIsInvalid(t *testing.T) {
	lookup := &fakePinLookup{pins: map[string]*entity.Pin{
		"1234567890123": {Code: "1234567890123", Type: entity.PinTypeAttendee},
	}}
	parser := NewParser(lookup, testLogger())

	_, err := parser.Parse(context.Background(), "1234567890123", false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestParseDialIn(t *testing.T) {
	parser := NewParser(&fakePinLookup{}, testLogger())

	info, err := parser.Parse(context.Background(), "123456789012345", true)
	require.NoError(t, err)
	assert.Equal(t, "1234567890", info.ConferencePin)
	assert.Equal(t, "123456789012345", info.DialInPasscode)
	assert.False(t, info.HasAttendeePin())
}

func TestParseUnsupportedLength(t *testing.T) {
	parser := NewParser(&fakePinLookup{}, testLogger())

	for _, raw := range []string{"12345678901", "123456789012", "12345678901234", "1234567890123456"} {
		_, err := parser.Parse(context.Background(), raw, true)
		require.Error(t, err, "length %d", len(raw))
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	}
}
