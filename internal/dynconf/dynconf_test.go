package dynconf

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"meetpin/entity"
)

type fakeFlagStore struct {
	flags map[string]*entity.FeatureFlag
	err   error
	calls int
}

func (f *fakeFlagStore) FeatureFlag(_ context.Context, key string) (*entity.FeatureFlag, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.flags[key], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsFeatureEnabledForAllowlist(t *testing.T) {
	store := &fakeFlagStore{flags: map[string]*entity.FeatureFlag{
		"wr": {Key: "wr", Allowlist: []string{"owner-1"}},
	}}
	p := New(store, 60, testLogger())

	assert.True(t, p.IsFeatureEnabledFor(context.Background(), "wr", "owner-1"))
	assert.False(t, p.IsFeatureEnabledFor(context.Background(), "wr", "owner-2"))
}

func TestIsFeatureEnabledForGlobalSwitch(t *testing.T) {
	store := &fakeFlagStore{flags: map[string]*entity.FeatureFlag{
		"wr": {Key: "wr", Enabled: true},
	}}
	p := New(store, 60, testLogger())

	assert.True(t, p.IsFeatureEnabledFor(context.Background(), "wr", "anyone"))
}

func TestMissingFlagReadsAsOff(t *testing.T) {
	p := New(&fakeFlagStore{}, 60, testLogger())

	assert.False(t, p.IsFeatureEnabledFor(context.Background(), "wr", "owner-1"))
}

func TestGetBoolDefault(t *testing.T) {
	p := New(&fakeFlagStore{}, 60, testLogger())

	assert.True(t, p.GetBool(context.Background(), "absent", true))
	assert.False(t, p.GetBool(context.Background(), "absent", false))
}

func TestGetBool(t *testing.T) {
	store := &fakeFlagStore{flags: map[string]*entity.FeatureFlag{
		"RequireDeactivateOn": {Key: "RequireDeactivateOn", Enabled: true},
	}}
	p := New(store, 60, testLogger())

	assert.True(t, p.GetBool(context.Background(), "RequireDeactivateOn", false))
}

func TestFlagIsCachedWithinTTL(t *testing.T) {
	store := &fakeFlagStore{flags: map[string]*entity.FeatureFlag{
		"wr": {Key: "wr", Enabled: true},
	}}
	p := New(store, 60, testLogger())

	p.IsFeatureEnabledFor(context.Background(), "wr", "a")
	p.IsFeatureEnabledFor(context.Background(), "wr", "b")
	p.GetBool(context.Background(), "wr", false)

	assert.Equal(t, 1, store.calls)
}

func TestStaleFlagServedOnStoreError(t *testing.T) {
	store := &fakeFlagStore{flags: map[string]*entity.FeatureFlag{
		"wr": {Key: "wr", Enabled: true},
	}}
	p := New(store, 1, testLogger())

	assert.True(t, p.IsFeatureEnabledFor(context.Background(), "wr", "a"))

	// expire the cache entry, then break the store
	p.mu.Lock()
	entry := p.cache["wr"]
	entry.fetchedAt = entry.fetchedAt.Add(-time.Minute)
	p.cache["wr"] = entry
	p.mu.Unlock()
	store.err = assert.AnError

	assert.True(t, p.IsFeatureEnabledFor(context.Background(), "wr", "a"))
}

func TestStoreErrorWithoutCacheReadsAsOff(t *testing.T) {
	store := &fakeFlagStore{err: assert.AnError}
	p := New(store, 60, testLogger())

	assert.False(t, p.IsFeatureEnabledFor(context.Background(), "wr", "a"))
	assert.True(t, p.GetBool(context.Background(), "wr", true))
}
