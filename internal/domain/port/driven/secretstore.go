package driven

import (
	"context"
	"errors"
)

// ErrEncryptionKeyNotSet indicates the secret store was created without an
// encryption key. All reads and writes fail closed in that state.
var ErrEncryptionKeyNotSet = errors.New("encryption key not set")

// WebhookSecretStore defines the driven port for per-connection webhook
// shared secrets. Get returns ("", nil) when no secret is configured for the
// slug.
type WebhookSecretStore interface {
	Set(ctx context.Context, appSlug, secret string) error
	Get(ctx context.Context, appSlug string) (string, error)
	Delete(ctx context.Context, appSlug string) error
}
