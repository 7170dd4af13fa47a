package driven

import (
	"context"
	"time"
)

// Hook names for the queue's handler table. Recurring jobs are keyed by hook
// name, so each of these can have at most one active schedule.
const (
	HookSyncAllConnections        = "sync-all-connections"
	HookHealthCheckAllConnections = "health-check-all-connections"
	HookHealthCheckAllRepos       = "health-check-all-repositories"
	HookHealthCheckConnection     = "health-check-single-connection"
	HookHealthCheckRepository     = "health-check-single-repository"
)

// Payload keys used by the one-shot health check hooks.
const (
	PayloadConnectionID = "connection_id"
	PayloadFullName     = "full_name"
)

// TaskHandler processes one unit of queued work. A handler error is logged by
// the queue and never retried within the pass.
type TaskHandler func(ctx context.Context, payload map[string]string) error

// TaskQueue defines the driven port for background work. ScheduleRecurring is
// idempotent per hook: a second call for an already-scheduled hook is a no-op,
// guaranteeing at most one active periodic trigger per hook. EnqueueAsync
// never blocks and performs no deduplication; callers that need dedup must
// provide it themselves.
type TaskQueue interface {
	ScheduleRecurring(hook string, period, initialDelay time.Duration) error
	EnqueueAsync(hook string, payload map[string]string) error
}
