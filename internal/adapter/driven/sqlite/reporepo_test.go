package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/appbridge/internal/domain/model"
	"github.com/ericfisherdev/appbridge/internal/domain/port/driven"
)

func makeRepo(fullName string, managingAppID int64) model.Repository {
	return model.Repository{
		FullName:      fullName,
		GitHubID:      101,
		ManagingAppID: managingAppID,
		IsPrivate:     true,
		HTMLURL:       "https://github.com/" + fullName,
		LastSyncedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRepoRepo_Upsert_Creates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepoRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, makeRepo("octo/widgets", 1)))

	got, err := repo.GetByFullName(ctx, "octo/widgets")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "octo/widgets", got.FullName)
	assert.Equal(t, int64(101), got.GitHubID)
	assert.Equal(t, int64(1), got.ManagingAppID)
	assert.True(t, got.IsPrivate)
	assert.Equal(t, "https://github.com/octo/widgets", got.HTMLURL)
	assert.Equal(t, model.HealthUnknown, got.HealthStatus)
}

func TestRepoRepo_Upsert_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepoRepo(db)
	ctx := context.Background()

	r := makeRepo("octo/widgets", 1)
	require.NoError(t, repo.Upsert(ctx, r))

	r.LastSyncedAt = r.LastSyncedAt.Add(time.Hour)
	r.IsPrivate = false
	require.NoError(t, repo.Upsert(ctx, r))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "upsert must converge to one row per full name")

	assert.False(t, all[0].IsPrivate)
	assert.Equal(t, r.LastSyncedAt, all[0].LastSyncedAt.UTC())
}

func TestRepoRepo_Upsert_RebindsManagingApp(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepoRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, makeRepo("octo/widgets", 1)))

	// A later sync under a different connection takes over management.
	require.NoError(t, repo.Upsert(ctx, makeRepo("octo/widgets", 2)))

	got, err := repo.GetByFullName(ctx, "octo/widgets")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ManagingAppID)
}

func TestRepoRepo_Upsert_PreservesHealth(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepoRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, makeRepo("octo/widgets", 1)))
	require.NoError(t, repo.SetHealth(ctx, "octo/widgets", model.HealthOK, "reachable"))

	require.NoError(t, repo.Upsert(ctx, makeRepo("octo/widgets", 1)))

	got, err := repo.GetByFullName(ctx, "octo/widgets")
	require.NoError(t, err)
	assert.Equal(t, model.HealthOK, got.HealthStatus)
	assert.Equal(t, "reachable", got.HealthMessage)
}

func TestRepoRepo_SetHealth_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepoRepo(db)

	err := repo.SetHealth(context.Background(), "octo/missing", model.HealthError, "boom")
	assert.ErrorIs(t, err, driven.ErrRepoNotFound)
}

func TestRepoRepo_GetByFullName_Missing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepoRepo(db)

	got, err := repo.GetByFullName(context.Background(), "octo/missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepoRepo_ListAll_Ordered(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepoRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, makeRepo("octo/zeta", 1)))
	require.NoError(t, repo.Upsert(ctx, makeRepo("octo/alpha", 1)))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "octo/alpha", all[0].FullName)
	assert.Equal(t, "octo/zeta", all[1].FullName)
}
