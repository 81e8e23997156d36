package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type firedRecorder struct {
	mu  sync.Mutex
	ids []string
	ch  chan string
}

func newFiredRecorder() *firedRecorder {
	return &firedRecorder{ch: make(chan string, 16)}
}

func (r *firedRecorder) handle(_ context.Context, id string) {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
	r.ch <- id
}

func newTestTimerScheduler(t *testing.T, rec *firedRecorder) *TimerScheduler {
	t.Helper()
	s := NewTimerScheduler()
	if err := s.Start(context.Background(), rec.handle); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func TestTimerSchedulerFires(t *testing.T) {
	rec := newFiredRecorder()
	s := newTestTimerScheduler(t, rec)
	ctx := context.Background()

	if err := s.Schedule(ctx, "req-1", time.Now().Add(20*time.Millisecond)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	ids, _ := s.Scheduled(ctx)
	if len(ids) != 1 || ids[0] != "req-1" {
		t.Fatalf("Scheduled = %v", ids)
	}

	select {
	case id := <-rec.ch:
		if id != "req-1" {
			t.Fatalf("fired %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task never fired")
	}
	ids, _ = s.Scheduled(ctx)
	if len(ids) != 0 {
		t.Fatalf("fired task still listed: %v", ids)
	}
}

func TestTimerSchedulerCancel(t *testing.T) {
	rec := newFiredRecorder()
	s := newTestTimerScheduler(t, rec)
	ctx := context.Background()

	_ = s.Schedule(ctx, "cancelled", time.Now().Add(30*time.Millisecond))
	_ = s.Schedule(ctx, "kept", time.Now().Add(60*time.Millisecond))
	if err := s.Cancel(ctx, "cancelled"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := s.Cancel(ctx, "never-scheduled"); err != nil {
		t.Fatalf("Cancel of unknown id: %v", err)
	}

	select {
	case id := <-rec.ch:
		if id != "kept" {
			t.Fatalf("cancelled task fired: %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("kept task never fired")
	}
}

func TestTimerSchedulerReplaceFiresOnce(t *testing.T) {
	rec := newFiredRecorder()
	s := newTestTimerScheduler(t, rec)
	ctx := context.Background()

	_ = s.Schedule(ctx, "dup", time.Now().Add(10*time.Millisecond))
	_ = s.Schedule(ctx, "dup", time.Now().Add(40*time.Millisecond))

	<-rec.ch
	time.Sleep(100 * time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.ids) != 1 {
		t.Fatalf("replaced task fired %d times", len(rec.ids))
	}
}

func TestCronHelpers(t *testing.T) {
	if err := ValidateCron("@hourly"); err != nil {
		t.Fatalf("@hourly should be valid: %v", err)
	}
	if err := ValidateCron("every tuesday"); err == nil {
		t.Fatal("expected invalid expression error")
	}

	ref := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	next, err := NextRun("@hourly", ref)
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	if !next.Equal(time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("next hourly tick = %v", next)
	}
}

func TestRunCronStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunCron(ctx, "@hourly", func(context.Context, time.Time) {}) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunCron: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunCron did not stop")
	}
}

func TestNewReminderTask(t *testing.T) {
	at := time.Now().Add(2 * time.Hour)
	task, opts, err := NewReminderTask("s1_b1_1700000000000", "reminders", at)
	if err != nil {
		t.Fatalf("NewReminderTask: %v", err)
	}
	if task.Type() != TypeReminder {
		t.Fatalf("type = %q", task.Type())
	}
	var p reminderPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil || p.ID != "s1_b1_1700000000000" {
		t.Fatalf("payload = %s (%v)", task.Payload(), err)
	}
	if len(opts) != 4 {
		t.Fatalf("expected task id, process-at, queue and retry options, got %d", len(opts))
	}
}
