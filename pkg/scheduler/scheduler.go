// Package scheduler runs one-shot tasks keyed by id and periodic sweeps.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bizzbazzar/bazaar/pkg/logger"
)

// Handler runs when a task fires. It is never called for a cancelled id.
type Handler func(ctx context.Context, id string)

// Scheduler schedules at most one pending task per id. Scheduling an id again
// replaces the earlier task.
type Scheduler interface {
	Start(ctx context.Context, h Handler) error
	Schedule(ctx context.Context, id string, at time.Time) error
	Cancel(ctx context.Context, id string) error
	// Scheduled lists the ids that have not fired yet.
	Scheduled(ctx context.Context) ([]string, error)
	Stop()
}

// TimerScheduler keeps tasks as in-process timers. Tasks do not survive a restart.
type TimerScheduler struct {
	mu      sync.Mutex
	ctx     context.Context
	handler Handler
	timers  map[string]timerEntry
	gen     uint64
	now     func() time.Time
}

type timerEntry struct {
	timer *time.Timer
	gen   uint64
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		timers: map[string]timerEntry{},
		now:    time.Now,
	}
}

func (s *TimerScheduler) Start(ctx context.Context, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	s.handler = h
	return nil
}

func (s *TimerScheduler) Schedule(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.timers[id]; ok {
		e.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timers[id] = timerEntry{
		timer: time.AfterFunc(at.Sub(s.now()), func() { s.fire(id, gen) }),
		gen:   gen,
	}
	return nil
}

func (s *TimerScheduler) fire(id string, gen uint64) {
	s.mu.Lock()
	// A replaced or cancelled timer may still fire once; only the current one counts.
	if e, ok := s.timers[id]; !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	h, ctx := s.handler, s.ctx
	s.mu.Unlock()

	if h == nil {
		logger.WarnCF("scheduler", "Task fired before Start, dropped", map[string]interface{}{"id": id})
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	h(ctx, id)
}

func (s *TimerScheduler) Cancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.timers[id]; ok {
		e.timer.Stop()
		delete(s.timers, id)
	}
	return nil
}

func (s *TimerScheduler) Scheduled(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.timers {
		e.timer.Stop()
		delete(s.timers, id)
	}
}
