package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/appbridge/internal/domain/model"
)

// Sentinel errors returned by ConnectionStore implementations.
var (
	// ErrConnectionNotFound indicates the requested app connection does not exist.
	ErrConnectionNotFound = errors.New("app connection not found")

	// ErrConnectionAlreadyExists indicates a connection with the same slug already exists.
	ErrConnectionAlreadyExists = errors.New("app connection already exists")
)

// ConnectionStore defines the driven port for app connection persistence.
// Add returns ErrConnectionAlreadyExists on a duplicate slug. SetInstallationID
// and SetHealth return ErrConnectionNotFound when the row does not exist.
// ReplaceAccessibleRepos rewrites the connection's accessible repo set
// wholesale; the store must never merge it with a previous set.
type ConnectionStore interface {
	Add(ctx context.Context, conn model.AppConnection) error
	GetByID(ctx context.Context, id int64) (*model.AppConnection, error)
	GetBySlug(ctx context.Context, slug string) (*model.AppConnection, error)
	ListAll(ctx context.Context) ([]model.AppConnection, error)
	SetInstallationID(ctx context.Context, id int64, installationID int64) error
	SetHealth(ctx context.Context, id int64, status model.HealthStatus, message string) error
	ReplaceAccessibleRepos(ctx context.Context, id int64, fullNames []string) error
}
