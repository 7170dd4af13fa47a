package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ericfisherdev/appbridge/internal/domain/model"
	"github.com/ericfisherdev/appbridge/internal/domain/port/driven"
)

// HealthService runs single-entity health checks and fans out the recurring
// all-entity passes. A failed outbound probe is not a task failure: it is
// recorded on the entity as health_status=error and the task completes, so
// the queue's view stays "check ran" while the entity's view stays "target
// unhealthy".
type HealthService struct {
	provider  *GitHubClientProvider
	connStore driven.ConnectionStore
	repoStore driven.RepoStore
	queue     driven.TaskQueue
}

// NewHealthService creates a new HealthService with all required dependencies.
func NewHealthService(
	provider *GitHubClientProvider,
	connStore driven.ConnectionStore,
	repoStore driven.RepoStore,
	queue driven.TaskQueue,
) *HealthService {
	return &HealthService{
		provider:  provider,
		connStore: connStore,
		repoStore: repoStore,
		queue:     queue,
	}
}

// CheckConnection probes a single app connection and writes the outcome back.
func (s *HealthService) CheckConnection(ctx context.Context, connectionID int64) error {
	conn, err := s.connStore.GetByID(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("load connection %d: %w", connectionID, err)
	}
	if conn == nil {
		slog.Warn("health check for unknown connection", "connection_id", connectionID)
		return nil
	}

	status, message := model.HealthOK, "connection reachable"

	client := s.provider.For(conn.Slug)
	switch {
	case client == nil:
		status, message = model.HealthWarn, "no github client configured"
	case conn.InstallationID == nil:
		status, message = model.HealthWarn, "no installation bound"
	default:
		if err := client.Probe(ctx); err != nil {
			status, message = model.HealthError, err.Error()
		}
	}

	if err := s.connStore.SetHealth(ctx, conn.ID, status, message); err != nil {
		return fmt.Errorf("record connection health: %w", err)
	}

	slog.Debug("connection health recorded", "connection", conn.Slug, "status", string(status))
	return nil
}

// CheckRepository probes a single repository through its managing
// connection's client and writes the outcome back.
func (s *HealthService) CheckRepository(ctx context.Context, fullName string) error {
	repo, err := s.repoStore.GetByFullName(ctx, fullName)
	if err != nil {
		return fmt.Errorf("load repository %s: %w", fullName, err)
	}
	if repo == nil {
		slog.Warn("health check for unknown repository", "repo", fullName)
		return nil
	}

	client, err := s.clientForRepo(ctx, repo)
	if err != nil {
		return err
	}

	status, message := model.HealthOK, "repository reachable"
	if client == nil {
		status, message = model.HealthWarn, "no github client configured"
	} else if err := client.ProbeRepository(ctx, fullName); err != nil {
		status, message = model.HealthError, err.Error()
	}

	if err := s.repoStore.SetHealth(ctx, fullName, status, message); err != nil {
		return fmt.Errorf("record repository health: %w", err)
	}

	slog.Debug("repository health recorded", "repo", fullName, "status", string(status))
	return nil
}

// FanOutConnections enqueues one async connection check per app connection.
// It performs no checks inline.
func (s *HealthService) FanOutConnections(ctx context.Context) error {
	conns, err := s.connStore.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list connections: %w", err)
	}

	for _, conn := range conns {
		payload := map[string]string{driven.PayloadConnectionID: strconv.FormatInt(conn.ID, 10)}
		if err := s.queue.EnqueueAsync(driven.HookHealthCheckConnection, payload); err != nil {
			slog.Error("connection check enqueue failed", "connection", conn.Slug, "error", err)
		}
	}

	slog.Info("connection health fan-out complete", "connections", len(conns))
	return nil
}

// FanOutRepositories enqueues one async repository check per known
// repository. It performs no checks inline.
func (s *HealthService) FanOutRepositories(ctx context.Context) error {
	repos, err := s.repoStore.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list repositories: %w", err)
	}

	for _, repo := range repos {
		payload := map[string]string{driven.PayloadFullName: repo.FullName}
		if err := s.queue.EnqueueAsync(driven.HookHealthCheckRepository, payload); err != nil {
			slog.Error("repository check enqueue failed", "repo", repo.FullName, "error", err)
		}
	}

	slog.Info("repository health fan-out complete", "repositories", len(repos))
	return nil
}

// clientForRepo resolves the client of the repository's managing connection.
// A missing managing connection degrades to the provider fallback.
func (s *HealthService) clientForRepo(ctx context.Context, repo *model.Repository) (driven.GitHubClient, error) {
	conn, err := s.connStore.GetByID(ctx, repo.ManagingAppID)
	if err != nil {
		return nil, fmt.Errorf("load managing connection %d: %w", repo.ManagingAppID, err)
	}
	if conn == nil {
		return s.provider.For(""), nil
	}
	return s.provider.For(conn.Slug), nil
}
