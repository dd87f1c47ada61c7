package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/rootfinder/internal/store"
)

// ErrPruneRunning is returned by RunOnce when a prune is already in flight.
var ErrPruneRunning = errors.New("prune already running")

// Pruner deletes history older than a retention window.
// Satisfied by history.Service.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (store.Counts, error)
}

// Scheduler prunes history on a cron schedule.
type Scheduler struct {
	pruner    Pruner
	spec      string
	schedule  cron.Schedule
	retention time.Duration
	logger    *slog.Logger
	cancel    context.CancelFunc
	done      chan struct{}
	mu        sync.Mutex

	inflightMu sync.Mutex
	inflight   bool
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewScheduler creates a scheduler that prunes rows older than retention
// whenever spec fires. spec is a five-field cron expression or a descriptor
// such as "@daily".
func NewScheduler(p Pruner, spec string, retention time.Duration, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", spec, err)
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		pruner:    p,
		spec:      spec,
		schedule:  schedule,
		retention: retention,
		logger:    logger,
	}, nil
}

// Start launches the background loop. It prunes once immediately, then at
// every schedule activation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("retention scheduler started",
		slog.String("schedule", s.spec),
		slog.Duration("retention", s.retention),
	)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	s.tick(ctx)

	for {
		next := s.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrPruneRunning) {
		s.logger.Error("scheduled prune failed", slog.String("error", err.Error()))
	}
}

// RunOnce prunes immediately. Concurrent calls do not overlap; the loser
// gets ErrPruneRunning.
func (s *Scheduler) RunOnce(ctx context.Context) (store.Counts, error) {
	if !s.tryAcquire() {
		return store.Counts{}, ErrPruneRunning
	}
	defer s.release()

	counts, err := s.pruner.Prune(ctx, s.retention)
	if err != nil {
		return store.Counts{}, err
	}
	if counts.Calculations > 0 || counts.Comparisons > 0 {
		s.logger.Info("pruned history",
			slog.Int64("calculations", counts.Calculations),
			slog.Int64("comparisons", counts.Comparisons),
		)
	}
	return counts, nil
}

func (s *Scheduler) tryAcquire() bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if s.inflight {
		return false
	}
	s.inflight = true
	return true
}

func (s *Scheduler) release() {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	s.inflight = false
}

// Next returns the first activation strictly after from.
func (s *Scheduler) Next(from time.Time) time.Time {
	return s.schedule.Next(from)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("retention scheduler stopped")
	return nil
}
