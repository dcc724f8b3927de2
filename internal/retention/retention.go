// Package retention prunes old parse records from the store on a cron
// schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/deliverable/internal/store"
)

// Policy configures the retention job.
type Policy struct {
	// Schedule is a standard 5-field cron expression deciding when the
	// prune runs, e.g. "0 3 * * *" for 03:00 daily.
	Schedule string
	// MaxAge is how long parse records are kept.
	MaxAge time.Duration
}

// Janitor runs the retention loop against the store.
type Janitor struct {
	store    store.Store
	policy   Policy
	schedule cron.Schedule
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJanitor parses the policy schedule and builds a Janitor.
func NewJanitor(s store.Store, policy Policy, logger *slog.Logger) (*Janitor, error) {
	if policy.MaxAge <= 0 {
		return nil, fmt.Errorf("retention: max age must be positive")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(policy.Schedule)
	if err != nil {
		return nil, fmt.Errorf("retention: parse schedule %q: %w", policy.Schedule, err)
	}
	return &Janitor{
		store:    s,
		policy:   policy,
		schedule: schedule,
		logger:   logger,
	}, nil
}

// Start launches the background retention loop.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.done != nil {
		j.mu.Unlock()
		return fmt.Errorf("retention: already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.mu.Unlock()

	go j.loop(runCtx)
	j.logger.Info("retention janitor started",
		slog.String("schedule", j.policy.Schedule),
		slog.Duration("max_age", j.policy.MaxAge))
	return nil
}

// Stop cancels the loop and waits for it to drain.
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (j *Janitor) loop(ctx context.Context) {
	defer close(j.done)

	for {
		next := j.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.prune(ctx)
		}
	}
}

// Prune deletes records older than the policy's max age. Exposed for
// one-shot invocation from the CLI.
func (j *Janitor) Prune(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-j.policy.MaxAge)
	return j.store.DeleteRecordsBefore(ctx, cutoff)
}

func (j *Janitor) prune(ctx context.Context) {
	n, err := j.Prune(ctx)
	if err != nil {
		j.logger.Error("retention prune failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		j.logger.Info("retention prune completed", slog.Int64("deleted", n))
	}
}
