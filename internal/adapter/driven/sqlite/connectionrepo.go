package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/appbridge/internal/domain/model"
	"github.com/ericfisherdev/appbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ConnectionStore = (*ConnectionRepo)(nil)

// ConnectionRepo is the SQLite implementation of the ConnectionStore port
// interface. The accessible repo set lives in the connection_repos table and
// is rewritten in a single transaction on each replacement.
type ConnectionRepo struct {
	db *DB
}

// NewConnectionRepo creates a new ConnectionRepo backed by the given DB.
func NewConnectionRepo(db *DB) *ConnectionRepo {
	return &ConnectionRepo{db: db}
}

// Add inserts a new app connection. Returns ErrConnectionAlreadyExists if a
// connection with the same slug exists.
func (r *ConnectionRepo) Add(ctx context.Context, conn model.AppConnection) error {
	const query = `
		INSERT INTO app_connections (slug, installation_id, health_status, health_message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	status := conn.HealthStatus
	if status == "" {
		status = model.HealthUnknown
	}

	createdAt := conn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		conn.Slug, nullableInstallation(conn.InstallationID), string(status), conn.HealthMessage, createdAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("add connection %s: %w", conn.Slug, driven.ErrConnectionAlreadyExists)
		}
		return fmt.Errorf("add connection %s: %w", conn.Slug, err)
	}

	return nil
}

// GetByID retrieves a connection by id. Returns nil, nil if it does not exist.
func (r *ConnectionRepo) GetByID(ctx context.Context, id int64) (*model.AppConnection, error) {
	const query = `
		SELECT id, slug, installation_id, health_status, health_message, created_at
		FROM app_connections WHERE id = ?
	`
	return r.getOne(ctx, query, id)
}

// GetBySlug retrieves a connection by slug. Returns nil, nil if it does not exist.
func (r *ConnectionRepo) GetBySlug(ctx context.Context, slug string) (*model.AppConnection, error) {
	const query = `
		SELECT id, slug, installation_id, health_status, health_message, created_at
		FROM app_connections WHERE slug = ?
	`
	return r.getOne(ctx, query, slug)
}

func (r *ConnectionRepo) getOne(ctx context.Context, query string, arg any) (*model.AppConnection, error) {
	conn, err := scanConnection(r.db.Reader.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	if conn.AccessibleRepos, err = r.accessibleRepos(ctx, conn.ID); err != nil {
		return nil, err
	}

	return conn, nil
}

// ListAll returns all app connections ordered by slug, each with its
// accessible repo set loaded.
func (r *ConnectionRepo) ListAll(ctx context.Context) ([]model.AppConnection, error) {
	const query = `
		SELECT id, slug, installation_id, health_status, health_message, created_at
		FROM app_connections ORDER BY slug
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []model.AppConnection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, *conn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}

	for i := range conns {
		if conns[i].AccessibleRepos, err = r.accessibleRepos(ctx, conns[i].ID); err != nil {
			return nil, err
		}
	}

	return conns, nil
}

// SetInstallationID assigns the connection's GitHub installation id.
// The write is last-wins; replaying the same value is a no-op by construction.
func (r *ConnectionRepo) SetInstallationID(ctx context.Context, id int64, installationID int64) error {
	const query = `UPDATE app_connections SET installation_id = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, installationID, id)
	if err != nil {
		return fmt.Errorf("set installation id for connection %d: %w", id, err)
	}

	return requireRow(result, driven.ErrConnectionNotFound)
}

// SetHealth records the outcome of the most recent connection health check.
func (r *ConnectionRepo) SetHealth(ctx context.Context, id int64, status model.HealthStatus, message string) error {
	const query = `UPDATE app_connections SET health_status = ?, health_message = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, string(status), message, id)
	if err != nil {
		return fmt.Errorf("set health for connection %d: %w", id, err)
	}

	return requireRow(result, driven.ErrConnectionNotFound)
}

// ReplaceAccessibleRepos atomically replaces the connection's accessible repo
// set. It deletes the existing rows and inserts the new names in order within
// one transaction, so readers never observe a partial union of two syncs.
func (r *ConnectionRepo) ReplaceAccessibleRepos(ctx context.Context, id int64, fullNames []string) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	const deleteQuery = `DELETE FROM connection_repos WHERE connection_id = ?`
	if _, err := tx.ExecContext(ctx, deleteQuery, id); err != nil {
		return fmt.Errorf("clear accessible repos for connection %d: %w", id, err)
	}

	const insertQuery = `INSERT INTO connection_repos (connection_id, position, full_name) VALUES (?, ?, ?)`
	for i, fullName := range fullNames {
		if _, err := tx.ExecContext(ctx, insertQuery, id, i, fullName); err != nil {
			return fmt.Errorf("insert accessible repo %s for connection %d: %w", fullName, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit accessible repos for connection %d: %w", id, err)
	}

	return nil
}

// accessibleRepos loads the ordered repo set for one connection.
func (r *ConnectionRepo) accessibleRepos(ctx context.Context, id int64) ([]string, error) {
	const query = `SELECT full_name FROM connection_repos WHERE connection_id = ? ORDER BY position`

	rows, err := r.db.Reader.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("list accessible repos for connection %d: %w", id, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan accessible repo: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accessible repos: %w", err)
	}

	return names, nil
}

func scanConnection(s scanner) (*model.AppConnection, error) {
	var conn model.AppConnection
	var installationID sql.NullInt64
	var status string
	var createdAt string

	err := s.Scan(&conn.ID, &conn.Slug, &installationID, &status, &conn.HealthMessage, &createdAt)
	if err != nil {
		return nil, err
	}

	if installationID.Valid {
		conn.InstallationID = &installationID.Int64
	}
	conn.HealthStatus = model.HealthStatus(status)

	conn.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &conn, nil
}

func nullableInstallation(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// requireRow maps a zero-row update to the given sentinel error.
func requireRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
