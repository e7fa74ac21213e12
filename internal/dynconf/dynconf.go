// Package dynconf serves dynamically managed feature flags and config
// switches from the flag store, with a per-key refresh cache so hot paths
// do not hit the store on every request.
package dynconf

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"meetpin/entity"
	"meetpin/lib/sl"
)

type FlagStore interface {
	FeatureFlag(ctx context.Context, key string) (*entity.FeatureFlag, error)
}

type cacheEntry struct {
	flag      *entity.FeatureFlag
	fetchedAt time.Time
}

type Provider struct {
	store FlagStore
	ttl   time.Duration
	log   *slog.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func New(store FlagStore, refreshSeconds int, log *slog.Logger) *Provider {
	if refreshSeconds <= 0 {
		refreshSeconds = 60
	}
	return &Provider{
		store: store,
		ttl:   time.Duration(refreshSeconds) * time.Second,
		log:   log.With(sl.Module("dynconf")),
		cache: make(map[string]cacheEntry),
	}
}

// IsFeatureEnabledFor reports whether the feature is on for the subject.
// Missing flags and store failures read as off.
func (p *Provider) IsFeatureEnabledFor(ctx context.Context, key, subjectId string) bool {
	flag := p.flag(ctx, key)
	if flag == nil {
		return false
	}
	return flag.EnabledFor(subjectId)
}

// GetBool reads a dynamic boolean switch, falling back to def when the key
// is absent or the store is unreachable.
func (p *Provider) GetBool(ctx context.Context, key string, def bool) bool {
	flag := p.flag(ctx, key)
	if flag == nil {
		return def
	}
	return flag.Enabled
}

func (p *Provider) flag(ctx context.Context, key string) *entity.FeatureFlag {
	p.mu.RLock()
	entry, ok := p.cache[key]
	p.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < p.ttl {
		return entry.flag
	}

	flag, err := p.store.FeatureFlag(ctx, key)
	if err != nil {
		p.log.Warn("loading feature flag", slog.String("key", key), sl.Err(err))
		if ok {
			// serve stale rather than flap on store hiccups
			return entry.flag
		}
		return nil
	}

	p.mu.Lock()
	p.cache[key] = cacheEntry{flag: flag, fetchedAt: time.Now()}
	p.mu.Unlock()
	return flag
}
