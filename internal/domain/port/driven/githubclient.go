package driven

import (
	"context"

	"github.com/ericfisherdev/appbridge/internal/domain/model"
)

// GitHubClient defines the driven port for the authenticated GitHub API
// surface of a single app connection. How the client authenticates is the
// adapter's concern; callers only see the installation-scoped view.
type GitHubClient interface {
	// ListAccessibleRepos returns every repository the connection's
	// installation can access, following pagination until exhausted.
	// The adapter bounds the page count; exceeding the bound is an error.
	ListAccessibleRepos(ctx context.Context) ([]model.Repository, error)

	// Probe performs one lightweight authenticated request to verify the
	// connection is usable.
	Probe(ctx context.Context) error

	// ProbeRepository performs one lightweight authenticated request
	// against a single repository ("owner/name").
	ProbeRepository(ctx context.Context, fullName string) error
}
