// Package worker runs recurring alert sweeps on a cron cadence. Overlap
// protection is two-layered: a Redis SetNX lock keeps concurrent scheduled
// processes from sweeping at the same time, and even without the lock the
// alert_matches uniqueness constraint keeps duplicate runs harmless.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/gamescout/internal/alerts"
	"github.com/mohammad-safakhou/gamescout/internal/marketplace"
)

const sweepLockKey = "gamescout:sweep:lock"

// SweepStore is the slice of the store the scheduler needs to record runs.
type SweepStore interface {
	CreateSweep(ctx context.Context, runID string, startedAt time.Time) error
	FinishSweep(ctx context.Context, summary *alerts.SweepSummary, detail []byte) error
}

// Scheduler fires alert sweeps according to a cron expression.
type Scheduler struct {
	expr     *cronexpr.Expression
	matcher  *alerts.Matcher
	sessions marketplace.SessionSource
	store    SweepStore
	rdb      *redis.Client
	logger   *log.Logger
	stop     chan struct{}
}

// NewScheduler parses the cron spec and builds a scheduler. rdb may be nil,
// in which case no distributed lock is taken.
func NewScheduler(cronSpec string, matcher *alerts.Matcher, sessions marketplace.SessionSource, store SweepStore, rdb *redis.Client, logger *log.Logger) (*Scheduler, error) {
	expr, err := cronexpr.Parse(cronSpec)
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", cronSpec, err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	return &Scheduler{
		expr:     expr,
		matcher:  matcher,
		sessions: sessions,
		store:    store,
		rdb:      rdb,
		logger:   logger,
		stop:     make(chan struct{}),
	}, nil
}

// Start launches the scheduling loop in the background.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop terminates the loop. Any in-flight sweep finishes on its own.
func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		next := s.expr.Next(time.Now())
		if next.IsZero() {
			s.logger.Printf("cron expression yields no further activations, stopping")
			return
		}
		s.logger.Printf("next sweep at %s", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
		s.RunOnce(ctx)
	}
}

// RunOnce executes a single sweep, honouring the distributed lock.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if s.rdb != nil {
		ok, err := s.rdb.SetNX(ctx, sweepLockKey, "1", 10*time.Minute).Result()
		if err != nil {
			s.logger.Printf("sweep lock: %v (proceeding, DB constraint still guards)", err)
		} else if !ok {
			s.logger.Printf("another process holds the sweep lock, skipping this activation")
			return
		} else {
			defer s.rdb.Del(ctx, sweepLockKey)
		}
	}

	sess, err := s.sessions.Session(ctx)
	if err != nil {
		s.logger.Printf("build session: %v (skipping sweep)", err)
		return
	}

	summary, err := s.matcher.Sweep(ctx, sess)
	if err != nil {
		s.logger.Printf("sweep failed: %v", err)
		return
	}
	if s.store != nil {
		if err := s.store.CreateSweep(ctx, summary.RunID, summary.StartedAt); err != nil {
			s.logger.Printf("record sweep %s: %v", summary.RunID, err)
			return
		}
		detail, _ := json.Marshal(summary.Errors)
		if err := s.store.FinishSweep(ctx, summary, detail); err != nil {
			s.logger.Printf("finish sweep %s: %v", summary.RunID, err)
		}
	}
}
