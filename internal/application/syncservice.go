package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/appbridge/internal/domain/model"
	"github.com/ericfisherdev/appbridge/internal/domain/port/driven"
)

// SyncService orchestrates per-connection repository discovery: it pages
// through each installation's accessible repositories, upserts them into the
// local registry, replaces the connection's accessible repo set wholesale,
// and fans out one async health check per repository.
type SyncService struct {
	provider  *GitHubClientProvider
	connStore driven.ConnectionStore
	repoStore driven.RepoStore
	queue     driven.TaskQueue
}

// NewSyncService creates a new SyncService with all required dependencies.
func NewSyncService(
	provider *GitHubClientProvider,
	connStore driven.ConnectionStore,
	repoStore driven.RepoStore,
	queue driven.TaskQueue,
) *SyncService {
	return &SyncService{
		provider:  provider,
		connStore: connStore,
		repoStore: repoStore,
		queue:     queue,
	}
}

// Run syncs every app connection. A failure in one connection's sync is
// logged and does not abort the remaining connections.
func (s *SyncService) Run(ctx context.Context) error {
	start := time.Now()

	conns, err := s.connStore.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list connections: %w", err)
	}

	if len(conns) == 0 {
		slog.Warn("no app connections configured, nothing to sync")
		return nil
	}

	var syncErrors int
	for _, conn := range conns {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := s.syncOne(ctx, conn); err != nil {
			slog.Error("connection sync failed", "connection", conn.Slug, "error", err)
			syncErrors++
		}
	}

	slog.Info("sync cycle complete",
		"connections", len(conns),
		"errors", syncErrors,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return nil
}

// syncOne is the core discovery logic for a single app connection. The
// accessible repo set is replaced only after every upsert for this pass has
// completed, and health checks are fanned out only after the replacement, so
// a check never runs for a repository the connection does not yet list.
func (s *SyncService) syncOne(ctx context.Context, conn model.AppConnection) error {
	if conn.InstallationID == nil {
		slog.Info("connection has no installation yet, skipping sync", "connection", conn.Slug)
		return nil
	}

	client := s.provider.For(conn.Slug)
	if client == nil {
		return fmt.Errorf("no github client for connection %s", conn.Slug)
	}

	records, err := client.ListAccessibleRepos(ctx)
	if err != nil {
		return fmt.Errorf("fetch accessible repos: %w", err)
	}

	if len(records) == 0 {
		// A valid terminal state: the installation manages nothing.
		if err := s.connStore.ReplaceAccessibleRepos(ctx, conn.ID, nil); err != nil {
			return fmt.Errorf("clear accessible repos: %w", err)
		}
		slog.Info("connection has no accessible repos", "connection", conn.Slug)
		return nil
	}

	now := time.Now().UTC()
	fullNames := make([]string, 0, len(records))

	for _, record := range records {
		record.ManagingAppID = conn.ID
		record.LastSyncedAt = now

		if err := s.repoStore.Upsert(ctx, record); err != nil {
			slog.Error("repository upsert failed", "connection", conn.Slug, "repo", record.FullName, "error", err)
			continue
		}

		fullNames = append(fullNames, record.FullName)
	}

	if err := s.connStore.ReplaceAccessibleRepos(ctx, conn.ID, fullNames); err != nil {
		return fmt.Errorf("replace accessible repos: %w", err)
	}

	var enqueued int
	for _, fullName := range fullNames {
		payload := map[string]string{driven.PayloadFullName: fullName}
		if err := s.queue.EnqueueAsync(driven.HookHealthCheckRepository, payload); err != nil {
			slog.Error("health check enqueue failed", "repo", fullName, "error", err)
			continue
		}
		enqueued++
	}

	slog.Info("connection synced",
		"connection", conn.Slug,
		"fetched", len(records),
		"accessible", len(fullNames),
		"checks_enqueued", enqueued,
	)

	return nil
}
