package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/appbridge/internal/domain/model"
)

// ErrRepoNotFound indicates the requested repository does not exist.
var ErrRepoNotFound = errors.New("repository not found")

// RepoStore defines the driven port for repository persistence.
// Upsert converges to exactly one row per full name: an existing row has its
// sync fields (github_id, managing_app_id, is_private, html_url,
// last_synced_at) updated in place and its health fields left untouched.
// SetHealth returns ErrRepoNotFound when the row does not exist.
type RepoStore interface {
	Upsert(ctx context.Context, repo model.Repository) error
	GetByFullName(ctx context.Context, fullName string) (*model.Repository, error)
	ListAll(ctx context.Context) ([]model.Repository, error)
	SetHealth(ctx context.Context, fullName string, status model.HealthStatus, message string) error
}
