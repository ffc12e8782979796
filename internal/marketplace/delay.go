package marketplace

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// DelayConfig is the inter-page pacing discipline. The delay between page
// requests is Base scaled by a uniform jitter multiplier and clamped to
// [Min, Max]. It is an explicit value owned by the caller and threaded into
// the fetcher, never ambient state.
type DelayConfig struct {
	Base      time.Duration
	JitterMin float64
	JitterMax float64
	Min       time.Duration
	Max       time.Duration
}

// DefaultDelayConfig returns the production pacing window.
func DefaultDelayConfig() DelayConfig {
	return DelayConfig{
		Base:      16 * time.Second,
		JitterMin: 0.8,
		JitterMax: 1.6,
		Min:       12 * time.Second,
		Max:       25 * time.Second,
	}
}

// Next draws one randomized delay from the configured window.
func (c DelayConfig) Next(r *rand.Rand) time.Duration {
	jMin, jMax := c.JitterMin, c.JitterMax
	if jMax <= jMin {
		jMin, jMax = 1.0, 1.0
	}
	mult := jMin + r.Float64()*(jMax-jMin)
	d := time.Duration(float64(c.Base) * mult)
	if c.Min > 0 && d < c.Min {
		d = c.Min
	}
	if c.Max > 0 && d > c.Max {
		d = c.Max
	}
	return d
}

// DelayConfigLoader supplies the current pacing window. Implementations may
// read remote config; the fetcher only ever sees the returned value.
type DelayConfigLoader interface {
	DelayConfig(ctx context.Context) (DelayConfig, error)
}

// StaticDelayLoader always returns the same window.
type StaticDelayLoader DelayConfig

// DelayConfig implements DelayConfigLoader.
func (s StaticDelayLoader) DelayConfig(ctx context.Context) (DelayConfig, error) {
	return DelayConfig(s), nil
}

// CachedDelayLoader wraps a source loader with a TTL so remote config is not
// hit on every page. On refresh failure the last known value is served.
type CachedDelayLoader struct {
	Source DelayConfigLoader
	TTL    time.Duration

	mu        sync.Mutex
	current   DelayConfig
	fetchedAt time.Time
	now       func() time.Time
}

// NewCachedDelayLoader constructs a loader seeded with an initial value.
func NewCachedDelayLoader(source DelayConfigLoader, ttl time.Duration, initial DelayConfig) *CachedDelayLoader {
	return &CachedDelayLoader{
		Source:  source,
		TTL:     ttl,
		current: initial,
		now:     time.Now,
	}
}

// DelayConfig implements DelayConfigLoader.
func (l *CachedDelayLoader) DelayConfig(ctx context.Context) (DelayConfig, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.now == nil {
		l.now = time.Now
	}
	if l.Source == nil || (l.TTL > 0 && !l.fetchedAt.IsZero() && l.now().Sub(l.fetchedAt) < l.TTL) {
		return l.current, nil
	}
	cfg, err := l.Source.DelayConfig(ctx)
	if err != nil {
		// Serve the stale value; pacing must not fail a fetch.
		return l.current, nil
	}
	l.current = cfg
	l.fetchedAt = l.now()
	return l.current, nil
}
