package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/appbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.WebhookSecretStore = (*SecretRepo)(nil)

// SecretRepo is the SQLite implementation of the WebhookSecretStore port
// interface. Secret values are encrypted with AES-256-GCM before write and
// decrypted after read. Without a key every operation fails closed with
// ErrEncryptionKeyNotSet, which the webhook path surfaces as a 401.
type SecretRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewSecretRepo creates a new SecretRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable secret storage entirely.
func NewSecretRepo(db *DB, key []byte) *SecretRepo {
	return &SecretRepo{db: db, key: key}
}

// Set stores or replaces the webhook secret for the given app slug.
func (r *SecretRepo) Set(ctx context.Context, appSlug, secret string) error {
	encrypted, err := r.encrypt(secret)
	if err != nil {
		return err
	}

	const query = `INSERT OR REPLACE INTO webhook_secrets (app_slug, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`
	if _, err := r.db.Writer.ExecContext(ctx, query, appSlug, encrypted); err != nil {
		return fmt.Errorf("set webhook secret %q: %w", appSlug, err)
	}
	return nil
}

// Get retrieves the plaintext webhook secret for the given app slug.
// Returns ("", nil) if no secret is configured for that slug.
func (r *SecretRepo) Get(ctx context.Context, appSlug string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT value FROM webhook_secrets WHERE app_slug = ?`
	var encrypted string
	err := r.db.Reader.QueryRowContext(ctx, query, appSlug).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get webhook secret %q: %w", appSlug, err)
	}

	secret, err := r.decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypt webhook secret %q: %w", appSlug, err)
	}
	return secret, nil
}

// Delete removes the webhook secret for the given app slug.
func (r *SecretRepo) Delete(ctx context.Context, appSlug string) error {
	const query = `DELETE FROM webhook_secrets WHERE app_slug = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, appSlug); err != nil {
		return fmt.Errorf("delete webhook secret %q: %w", appSlug, err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
func (r *SecretRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *SecretRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
