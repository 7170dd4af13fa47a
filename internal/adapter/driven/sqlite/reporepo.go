package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/appbridge/internal/domain/model"
	"github.com/ericfisherdev/appbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoStore = (*RepoRepo)(nil)

// RepoRepo is the SQLite implementation of the RepoStore port interface.
type RepoRepo struct {
	db *DB
}

// NewRepoRepo creates a new RepoRepo backed by the given DB.
func NewRepoRepo(db *DB) *RepoRepo {
	return &RepoRepo{db: db}
}

// Upsert creates or updates a repository keyed by full name. An existing row
// keeps its id and health columns; the sync fields are overwritten in place,
// so a re-sync under a different app rebinds managing_app_id (last sync wins).
func (r *RepoRepo) Upsert(ctx context.Context, repo model.Repository) error {
	const query = `
		INSERT INTO repositories (full_name, github_id, managing_app_id, is_private, html_url, last_synced_at, health_status, health_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(full_name) DO UPDATE SET
			github_id = excluded.github_id,
			managing_app_id = excluded.managing_app_id,
			is_private = excluded.is_private,
			html_url = excluded.html_url,
			last_synced_at = excluded.last_synced_at
	`

	lastSyncedAt := repo.LastSyncedAt
	if lastSyncedAt.IsZero() {
		lastSyncedAt = time.Now().UTC()
	}

	status := repo.HealthStatus
	if status == "" {
		status = model.HealthUnknown
	}

	isPrivate := 0
	if repo.IsPrivate {
		isPrivate = 1
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		repo.FullName, repo.GitHubID, repo.ManagingAppID, isPrivate,
		repo.HTMLURL, lastSyncedAt, string(status), repo.HealthMessage,
	)
	if err != nil {
		return fmt.Errorf("upsert repository %s: %w", repo.FullName, err)
	}

	return nil
}

// GetByFullName retrieves a repository by its full name. Returns nil, nil if
// the repository does not exist.
func (r *RepoRepo) GetByFullName(ctx context.Context, fullName string) (*model.Repository, error) {
	const query = `
		SELECT id, full_name, github_id, managing_app_id, is_private, html_url, last_synced_at, health_status, health_message
		FROM repositories WHERE full_name = ?
	`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, fullName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", fullName, err)
	}

	return repo, nil
}

// ListAll returns all repositories ordered by full name.
func (r *RepoRepo) ListAll(ctx context.Context) ([]model.Repository, error) {
	const query = `
		SELECT id, full_name, github_id, managing_app_id, is_private, html_url, last_synced_at, health_status, health_message
		FROM repositories ORDER BY full_name
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return repos, nil
}

// SetHealth records the outcome of the most recent repository health check.
func (r *RepoRepo) SetHealth(ctx context.Context, fullName string, status model.HealthStatus, message string) error {
	const query = `UPDATE repositories SET health_status = ?, health_message = ? WHERE full_name = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, string(status), message, fullName)
	if err != nil {
		return fmt.Errorf("set health for repository %s: %w", fullName, err)
	}

	return requireRow(result, driven.ErrRepoNotFound)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRepository(s scanner) (*model.Repository, error) {
	var repo model.Repository
	var isPrivate int
	var lastSyncedAt string
	var status string

	err := s.Scan(&repo.ID, &repo.FullName, &repo.GitHubID, &repo.ManagingAppID,
		&isPrivate, &repo.HTMLURL, &lastSyncedAt, &status, &repo.HealthMessage)
	if err != nil {
		return nil, err
	}

	repo.IsPrivate = isPrivate != 0
	repo.HealthStatus = model.HealthStatus(status)

	repo.LastSyncedAt, err = parseTime(lastSyncedAt)
	if err != nil {
		return nil, fmt.Errorf("parse last_synced_at: %w", err)
	}

	return &repo, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
