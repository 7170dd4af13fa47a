package sqlite

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/appbridge/internal/domain/port/driven"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestSecretRepo_SetAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecretRepo(db, testKey())
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "app-1", "hunter2"))

	got, err := repo.Get(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	// Stored value must not be the plaintext.
	var stored string
	err = db.Reader.QueryRowContext(ctx, `SELECT value FROM webhook_secrets WHERE app_slug = ?`, "app-1").Scan(&stored)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", stored)
}

func TestSecretRepo_Set_Replaces(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecretRepo(db, testKey())
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "app-1", "old"))
	require.NoError(t, repo.Set(ctx, "app-1", "new"))

	got, err := repo.Get(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestSecretRepo_Get_Missing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecretRepo(db, testKey())

	got, err := repo.Get(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSecretRepo_NoKey_FailsClosed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecretRepo(db, nil)
	ctx := context.Background()

	err := repo.Set(ctx, "app-1", "hunter2")
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	_, err = repo.Get(ctx, "app-1")
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)
}

func TestSecretRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSecretRepo(db, testKey())
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "app-1", "hunter2"))
	require.NoError(t, repo.Delete(ctx, "app-1"))

	got, err := repo.Get(ctx, "app-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
