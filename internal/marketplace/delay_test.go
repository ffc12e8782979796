package marketplace

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestDelayConfigNextStaysInWindow(t *testing.T) {
	cfg := DefaultDelayConfig()
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		d := cfg.Next(r)
		if d < cfg.Min || d > cfg.Max {
			t.Fatalf("draw %d: %s outside [%s, %s]", i, d, cfg.Min, cfg.Max)
		}
	}
}

func TestDelayConfigNextDegenerateJitter(t *testing.T) {
	cfg := DelayConfig{Base: 10 * time.Second, JitterMin: 2, JitterMax: 1}
	r := rand.New(rand.NewSource(1))
	if d := cfg.Next(r); d != 10*time.Second {
		t.Fatalf("inverted jitter bounds must fall back to base, got %s", d)
	}
}

type countingLoader struct {
	cfg   DelayConfig
	err   error
	calls int
}

func (c *countingLoader) DelayConfig(ctx context.Context) (DelayConfig, error) {
	c.calls++
	return c.cfg, c.err
}

func TestCachedDelayLoaderRespectsTTL(t *testing.T) {
	source := &countingLoader{cfg: DelayConfig{Base: 5 * time.Second}}
	loader := NewCachedDelayLoader(source, time.Minute, DefaultDelayConfig())

	now := time.Unix(1000, 0)
	loader.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := loader.DelayConfig(ctx); err != nil {
			t.Fatalf("DelayConfig: %v", err)
		}
	}
	if source.calls != 1 {
		t.Fatalf("source called %d times within TTL; want 1", source.calls)
	}

	now = now.Add(2 * time.Minute)
	cfg, err := loader.DelayConfig(ctx)
	if err != nil {
		t.Fatalf("DelayConfig: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("source called %d times after TTL expiry; want 2", source.calls)
	}
	if cfg.Base != 5*time.Second {
		t.Fatalf("refreshed config not served: %+v", cfg)
	}
}

func TestCachedDelayLoaderServesStaleOnFailure(t *testing.T) {
	source := &countingLoader{err: errors.New("remote config down")}
	initial := DelayConfig{Base: 7 * time.Second}
	loader := NewCachedDelayLoader(source, time.Minute, initial)

	cfg, err := loader.DelayConfig(context.Background())
	if err != nil {
		t.Fatalf("DelayConfig must not fail when the source does: %v", err)
	}
	if cfg.Base != initial.Base {
		t.Fatalf("stale value not served: %+v", cfg)
	}
}
