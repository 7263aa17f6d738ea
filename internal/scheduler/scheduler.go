// Package scheduler periodically refreshes the event counts of every open
// workflow canvas.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/flowcanvas/internal/canvas"
	"github.com/rendis/flowcanvas/internal/logging"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// Workflows is the set of open canvases to refresh. Satisfied by
// *canvas.Workspace.
type Workflows interface {
	IDs() []string
	Get(workflowID string) (*canvas.Store, bool)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule accepts either a Go duration ("30s") or a cron expression
// ("*/5 * * * *", "@hourly").
func ParseSchedule(spec string) (cron.Schedule, error) {
	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "refresh interval %q must be positive", spec)
		}
		return cron.Every(d), nil
	}
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid refresh schedule %q", spec).WithCause(err)
	}
	return sched, nil
}

// Scheduler refreshes event counts on a schedule.
type Scheduler struct {
	workflows Workflows
	counter   canvas.EventCounter
	schedule  cron.Schedule
	logger    *slog.Logger
	now       func() time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	mu        sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // workflow ids being refreshed
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(w Workflows, counter canvas.EventCounter, schedule cron.Schedule, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		workflows: w,
		counter:   counter,
		schedule:  schedule,
		logger:    logger,
		now:       time.Now,
		inflight:  make(map[string]struct{}),
	}
}

// Start launches the background loop. The first refresh runs at the first
// scheduled time, not immediately.
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
	s.logger.Info("event count refresh started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	for {
		now := s.now()
		timer := time.NewTimer(s.schedule.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.Tick(ctx)
		}
	}
}

// Tick refreshes every open workflow once and returns the number of applied
// counts. A workflow still refreshing from an earlier tick is skipped.
func (s *Scheduler) Tick(ctx context.Context) int {
	applied := 0
	for _, id := range s.workflows.IDs() {
		st, ok := s.workflows.Get(id)
		if !ok || !s.tryAcquire(id) {
			continue
		}
		wctx := logging.WithWorkflowID(ctx, id)
		n := st.RefreshAll(wctx, s.counter)
		s.release(id)

		s.logger.DebugContext(wctx, "event counts refreshed", slog.Int("applied", n))
		applied += n
	}
	return applied
}

func (s *Scheduler) tryAcquire(id string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, id)
}

// Stop ends the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.logger.Info("event count refresh stopped")
}
