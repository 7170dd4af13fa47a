package driven

import (
	"context"
	"time"
)

// UpdateCache defines the driven port for the host's cached "available
// update" state. Entries are grouped into namespaces (e.g. "plugins",
// "themes") so a webhook can drop a whole namespace at once. Invalidating an
// empty or already-invalidated namespace is a no-op.
type UpdateCache interface {
	Put(ctx context.Context, namespace, key, value string, ttl time.Duration) error
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Invalidate(ctx context.Context, namespace string) error
}
