// Package queue implements the TaskQueue port with a gocron scheduler for
// recurring jobs and an in-process worker pool for one-shot async tasks.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/ericfisherdev/appbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TaskQueue = (*Queue)(nil)

// defaultBuffer is the async task channel capacity. EnqueueAsync fails fast
// rather than blocking the caller when the buffer is full.
const defaultBuffer = 1024

type task struct {
	hook    string
	payload map[string]string
}

// Queue dispatches hooks to an explicit handler table. Handlers are registered
// once during startup, before Start; recurring schedules are tracked per hook
// name so each hook has at most one active periodic trigger.
type Queue struct {
	mu        sync.Mutex
	handlers  map[string]driven.TaskHandler
	recurring map[string]gocron.Job

	sched   gocron.Scheduler
	tasks   chan task
	workers int

	baseCtx context.Context
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// New creates a Queue with the given number of async workers.
func New(workers int, logger *slog.Logger) (*Queue, error) {
	if workers < 1 {
		workers = 1
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &Queue{
		handlers:  make(map[string]driven.TaskHandler),
		recurring: make(map[string]gocron.Job),
		sched:     sched,
		tasks:     make(chan task, defaultBuffer),
		workers:   workers,
		logger:    logger,
	}, nil
}

// Register binds a hook name to its handler. Registering the same hook twice
// replaces the handler; call before Start.
func (q *Queue) Register(hook string, handler driven.TaskHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[hook] = handler
}

// ScheduleRecurring registers a periodic trigger for the hook. It is a no-op
// when a schedule for the hook is already active, so repeated startup
// registration cannot produce duplicate triggers.
func (q *Queue) ScheduleRecurring(hook string, period, initialDelay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.recurring[hook]; ok {
		return nil
	}
	if _, ok := q.handlers[hook]; !ok {
		return fmt.Errorf("schedule %s: no handler registered", hook)
	}

	opts := []gocron.JobOption{gocron.WithName(hook)}
	if initialDelay > 0 {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartDateTime(time.Now().Add(initialDelay))))
	}

	job, err := q.sched.NewJob(
		gocron.DurationJob(period),
		gocron.NewTask(func() { q.run(hook, nil) }),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", hook, err)
	}

	q.recurring[hook] = job
	return nil
}

// RecurringHooks returns the sorted hook names with an active schedule.
func (q *Queue) RecurringHooks() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	hooks := make([]string, 0, len(q.recurring))
	for hook := range q.recurring {
		hooks = append(hooks, hook)
	}
	sort.Strings(hooks)
	return hooks
}

// EnqueueAsync queues one unit of work for out-of-band execution. It never
// blocks: a full buffer is an error for the caller to log. No deduplication
// is performed across enqueues.
func (q *Queue) EnqueueAsync(hook string, payload map[string]string) error {
	select {
	case q.tasks <- task{hook: hook, payload: payload}:
		return nil
	default:
		return fmt.Errorf("enqueue %s: queue full", hook)
	}
}

// Start launches the scheduler and the async workers. It returns immediately;
// workers drain the task channel until ctx is canceled.
func (q *Queue) Start(ctx context.Context) {
	q.baseCtx = ctx
	q.sched.Start()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}

	q.logger.Info("task queue started", "workers", q.workers)
}

// Shutdown stops the scheduler and waits for in-flight workers to finish.
// Start's context must be canceled before calling Shutdown.
func (q *Queue) Shutdown() error {
	err := q.sched.Shutdown()
	q.wg.Wait()
	return err
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.tasks:
			q.run(t.hook, t.payload)
		}
	}
}

// run invokes the handler for a hook. Handler errors are recorded and
// swallowed: a failing check or sync is the handler's state to track, not a
// queue failure.
func (q *Queue) run(hook string, payload map[string]string) {
	q.mu.Lock()
	handler := q.handlers[hook]
	q.mu.Unlock()

	if handler == nil {
		q.logger.Error("no handler for hook", "hook", hook)
		return
	}

	ctx := q.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	if err := handler(ctx, payload); err != nil {
		q.logger.Error("task failed", "hook", hook, "error", err)
		return
	}

	q.logger.Debug("task complete", "hook", hook, "duration", time.Since(start).Round(time.Millisecond))
}
