package passcode

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"meetpin/entity"
	"meetpin/lib/apperr"
	"meetpin/lib/sl"
)

// maxGenerateTries bounds code allocation; on exhaustion we fail closed
// rather than degrade to a shorter or non-unique code.
const maxGenerateTries = 10

// dialInSuffixLength gives a suffix space of 90000, not 100000: the leading
// digit is never zero.
const dialInSuffixLength = 5

// CollisionFunc reports whether code is already bound within scopeKey.
type CollisionFunc func(ctx context.Context, code, scopeKey string) (bool, error)

// DialInStore is the access-request lookup used as the collision check for
// user dial-in codes.
type DialInStore interface {
	AccessRequestByDialInCode(ctx context.Context, code, waitingRoomId string) (*entity.AccessRequest, error)
}

// Generator allocates unique numeric code suffixes under bounded retries.
// The randomness source must be unpredictable to an adversary: generated
// codes double as one-time dial-in credentials. Safe for concurrent use.
type Generator struct {
	src       io.Reader
	store     DialInStore
	log       *slog.Logger
	tries     metric.Int64Counter
	exhausted metric.Int64Counter
}

func NewGenerator(store DialInStore, log *slog.Logger) *Generator {
	return NewGeneratorWithSource(rand.Reader, store, log)
}

// NewGeneratorWithSource injects the randomness source; tests pass a
// deterministic reader.
func NewGeneratorWithSource(src io.Reader, store DialInStore, log *slog.Logger) *Generator {
	meter := otel.Meter("meetpin/internal/passcode")
	tries, _ := meter.Int64Counter("dial_in_code_allocation_tries")
	exhausted, _ := meter.Int64Counter("dial_in_code_max_tries_reached")
	return &Generator{
		src:       src,
		store:     store,
		log:       log.With(sl.Module("passcode.generator")),
		tries:     tries,
		exhausted: exhausted,
	}
}

// Generate draws a uniform suffix of suffixLen digits (leading digit
// non-zero), appends it to baseCode and asks collides whether the result is
// already taken within scopeKey. Collisions retry with a fresh draw, up to
// maxGenerateTries total attempts.
func (g *Generator) Generate(ctx context.Context, baseCode, scopeKey string, suffixLen int, collides CollisionFunc) (string, error) {
	for try := 1; try <= maxGenerateTries; try++ {
		suffix, err := g.randomSuffix(suffixLen)
		if err != nil {
			return "", fmt.Errorf("draw code suffix: %w", err)
		}
		code := baseCode + suffix
		taken, err := collides(ctx, code, scopeKey)
		if err != nil {
			return "", fmt.Errorf("collision check: %w", err)
		}
		if !taken {
			g.tries.Add(ctx, int64(try))
			g.log.Debug("code allocated", slog.Int("tries", try), slog.String("scope", scopeKey))
			return code, nil
		}
	}
	g.exhausted.Add(ctx, 1)
	g.log.Info("max tries reached allocating code",
		slog.Int("limit", maxGenerateTries), slog.String("scope", scopeKey))
	return "", apperr.LimitExceeded(fmt.Sprintf("max tries (%d) reached for allocating code", maxGenerateTries))
}

// UserDialInCode allocates a one-time dial-in code for a waiting-room
// attendee, unique within the waiting room.
func (g *Generator) UserDialInCode(ctx context.Context, waitingRoomId, profileId, meetingPin string) (string, error) {
	g.log.Info("generating user dial-in code",
		slog.String("waiting_room_id", waitingRoomId), slog.String("profile_id", profileId))
	return g.Generate(ctx, meetingPin, waitingRoomId, dialInSuffixLength, g.dialInTaken)
}

func (g *Generator) dialInTaken(ctx context.Context, code, waitingRoomId string) (bool, error) {
	req, err := g.store.AccessRequestByDialInCode(ctx, code, waitingRoomId)
	if err != nil {
		return false, err
	}
	return req != nil, nil
}

// randomSuffix returns a uniform n-digit string in [10^(n-1), 10^n).
func (g *Generator) randomSuffix(n int) (string, error) {
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n-1)), nil)
	span := new(big.Int).Mul(big.NewInt(9), low)
	v, err := rand.Int(g.src, span)
	if err != nil {
		return "", err
	}
	return new(big.Int).Add(low, v).String(), nil
}
