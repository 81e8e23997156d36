package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bizzbazzar/bazaar/pkg/logger"
)

const TypeReminder = "request:reminder"

type reminderPayload struct {
	ID string `json:"id"`
}

// NewReminderTask builds the asynq task that fires id at the given time.
func NewReminderTask(id, queue string, at time.Time) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(reminderPayload{ID: id})
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{
		asynq.TaskID(id),
		asynq.ProcessAt(at),
		asynq.Queue(queue),
		asynq.MaxRetry(1),
	}
	return asynq.NewTask(TypeReminder, payload), opts, nil
}

type AsynqOptions struct {
	Addr        string
	Password    string
	DB          int
	Queue       string
	Concurrency int
}

// AsynqScheduler keeps tasks in redis through asynq so they survive restarts.
// The task id is the scheduled id, which makes Cancel a direct delete.
type AsynqScheduler struct {
	opts      AsynqOptions
	redis     asynq.RedisClientOpt
	client    *asynq.Client
	inspector *asynq.Inspector

	mu     sync.Mutex
	server *asynq.Server
}

func NewAsynqScheduler(opts AsynqOptions) *AsynqScheduler {
	if opts.Queue == "" {
		opts.Queue = "reminders"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	r := asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
	return &AsynqScheduler{
		opts:      opts,
		redis:     r,
		client:    asynq.NewClient(r),
		inspector: asynq.NewInspector(r),
	}
}

func (s *AsynqScheduler) Start(ctx context.Context, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("asynq scheduler already started")
	}

	srv := asynq.NewServer(s.redis, asynq.Config{
		Concurrency: s.opts.Concurrency,
		Queues:      map[string]int{s.opts.Queue: 1},
		Logger:      asynqLogger{},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReminder, func(taskCtx context.Context, t *asynq.Task) error {
		var p reminderPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode reminder payload: %w", asynq.SkipRetry)
		}
		h(taskCtx, p.ID)
		return nil
	})
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	s.server = srv
	logger.InfoCF("scheduler", "Asynq scheduler started", map[string]interface{}{
		"queue": s.opts.Queue,
		"addr":  s.opts.Addr,
	})
	return nil
}

func (s *AsynqScheduler) Schedule(ctx context.Context, id string, at time.Time) error {
	task, opts, err := NewReminderTask(id, s.opts.Queue, at)
	if err != nil {
		return err
	}
	_, err = s.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		if err := s.Cancel(ctx, id); err != nil {
			return err
		}
		_, err = s.client.EnqueueContext(ctx, task, opts...)
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", id, err)
	}
	return nil
}

func (s *AsynqScheduler) Cancel(_ context.Context, id string) error {
	err := s.inspector.DeleteTask(s.opts.Queue, id)
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return fmt.Errorf("delete task %s: %w", id, err)
}

func (s *AsynqScheduler) Scheduled(_ context.Context) ([]string, error) {
	var ids []string
	for page := 1; ; page++ {
		infos, err := s.inspector.ListScheduledTasks(s.opts.Queue, asynq.PageSize(500), asynq.Page(page))
		if errors.Is(err, asynq.ErrQueueNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list scheduled tasks: %w", err)
		}
		for _, info := range infos {
			ids = append(ids, info.ID)
		}
		if len(infos) < 500 {
			break
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *AsynqScheduler) Stop() {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()
	if srv != nil {
		srv.Shutdown()
	}
	_ = s.client.Close()
	_ = s.inspector.Close()
}

// asynqLogger routes asynq's own logging through the component logger.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { logger.DebugC("asynq", fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...interface{})  { logger.InfoC("asynq", fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...interface{})  { logger.WarnC("asynq", fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...interface{}) { logger.ErrorC("asynq", fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...interface{}) { logger.FatalC("asynq", fmt.Sprint(args...)) }
