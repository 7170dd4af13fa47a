// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConnectionSeed is one app connection declared in APPBRIDGE_CONNECTIONS.
// InstallationID is nil when the entry names only a slug; the id then arrives
// later via an installation webhook.
type ConnectionSeed struct {
	Slug           string
	InstallationID *int64
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken         string
	SyncInterval        time.Duration
	HealthCheckInterval time.Duration
	HealthCheckDelay    time.Duration
	QueueWorkers        int
	ListenAddr          string
	DBPath              string
	EncryptionKey       []byte
	Connections         []ConnectionSeed
	ConnectionTokens    map[string]string
	WebhookSecrets      map[string]string
}

// HasGitHubCredentials returns true when a GitHub token is configured. Used
// by the composition root to decide whether to create a real GitHub client at
// startup or start with a nil client in the provider.
func (c *Config) HasGitHubCredentials() bool {
	return c.GitHubToken != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// APPBRIDGE_GITHUB_TOKEN is optional; without it the service starts but sync and
// health checks record a warning until a client is available.
// APPBRIDGE_ENCRYPTION_KEY (base64, 32 bytes decoded) is optional; without it
// webhook secrets cannot be stored or read and webhook deliveries fail closed.
// Optional variables with defaults: APPBRIDGE_SYNC_INTERVAL (1h),
// APPBRIDGE_HEALTH_CHECK_INTERVAL (24h), APPBRIDGE_HEALTH_CHECK_DELAY (15m),
// APPBRIDGE_QUEUE_WORKERS (4), APPBRIDGE_LISTEN_ADDR (127.0.0.1:8080),
// APPBRIDGE_DB_PATH (appbridge.db).
// APPBRIDGE_CONNECTIONS is a comma-separated list of "slug" or
// "slug:installation_id" entries seeded into the registry at startup.
// APPBRIDGE_CONNECTION_TOKENS ("slug=token,...") gives a connection its own
// GitHub token instead of the shared one. APPBRIDGE_WEBHOOK_SECRETS
// ("slug=secret,...") seeds the per-connection webhook shared secrets; it
// requires APPBRIDGE_ENCRYPTION_KEY since secrets are encrypted at rest.
func Load() (*Config, error) {
	token := os.Getenv("APPBRIDGE_GITHUB_TOKEN")

	syncInterval, err := durationEnv("APPBRIDGE_SYNC_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	healthInterval, err := durationEnv("APPBRIDGE_HEALTH_CHECK_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	healthDelay, err := durationEnv("APPBRIDGE_HEALTH_CHECK_DELAY", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	queueWorkers := 4
	if v, ok := os.LookupEnv("APPBRIDGE_QUEUE_WORKERS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("APPBRIDGE_QUEUE_WORKERS has invalid value %q: must be a positive integer", v)
		}
		queueWorkers = parsed
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("APPBRIDGE_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "appbridge.db"
	if v, ok := os.LookupEnv("APPBRIDGE_DB_PATH"); ok {
		dbPath = v
	}

	var encryptionKey []byte
	if v, ok := os.LookupEnv("APPBRIDGE_ENCRYPTION_KEY"); ok && v != "" {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("APPBRIDGE_ENCRYPTION_KEY is not valid base64: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("APPBRIDGE_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
		}
		encryptionKey = key
	}

	connections, err := parseConnections(os.Getenv("APPBRIDGE_CONNECTIONS"))
	if err != nil {
		return nil, err
	}

	connectionTokens, err := parsePairs("APPBRIDGE_CONNECTION_TOKENS", os.Getenv("APPBRIDGE_CONNECTION_TOKENS"))
	if err != nil {
		return nil, err
	}

	webhookSecrets, err := parsePairs("APPBRIDGE_WEBHOOK_SECRETS", os.Getenv("APPBRIDGE_WEBHOOK_SECRETS"))
	if err != nil {
		return nil, err
	}
	if len(webhookSecrets) > 0 && encryptionKey == nil {
		return nil, fmt.Errorf("APPBRIDGE_WEBHOOK_SECRETS requires APPBRIDGE_ENCRYPTION_KEY to be set")
	}

	return &Config{
		GitHubToken:         token,
		SyncInterval:        syncInterval,
		HealthCheckInterval: healthInterval,
		HealthCheckDelay:    healthDelay,
		QueueWorkers:        queueWorkers,
		ListenAddr:          listenAddr,
		DBPath:              dbPath,
		EncryptionKey:       encryptionKey,
		Connections:         connections,
		ConnectionTokens:    connectionTokens,
		WebhookSecrets:      webhookSecrets,
	}, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", name, v, err)
	}
	return parsed, nil
}

// parsePairs reads a comma-separated list of "slug=value" entries. Values
// may themselves contain "=" but not ",".
func parsePairs(name, raw string) (map[string]string, error) {
	pairs := map[string]string{}
	if raw == "" {
		return pairs, nil
	}

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		slug, value, ok := strings.Cut(entry, "=")
		slug = strings.TrimSpace(slug)
		if !ok || slug == "" || value == "" {
			return nil, fmt.Errorf("%s entry %q is not of the form slug=value", name, entry)
		}
		if _, dup := pairs[slug]; dup {
			return nil, fmt.Errorf("%s lists slug %q more than once", name, slug)
		}

		pairs[slug] = value
	}

	return pairs, nil
}

func parseConnections(raw string) ([]ConnectionSeed, error) {
	seeds := []ConnectionSeed{}
	if raw == "" {
		return seeds, nil
	}

	seen := make(map[string]bool)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		slug, idStr, hasID := strings.Cut(entry, ":")
		slug = strings.TrimSpace(slug)
		if slug == "" {
			return nil, fmt.Errorf("APPBRIDGE_CONNECTIONS entry %q has an empty slug", entry)
		}
		if seen[slug] {
			return nil, fmt.Errorf("APPBRIDGE_CONNECTIONS lists slug %q more than once", slug)
		}
		seen[slug] = true

		seed := ConnectionSeed{Slug: slug}
		if hasID {
			id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("APPBRIDGE_CONNECTIONS entry %q has invalid installation id: %w", entry, err)
			}
			seed.InstallationID = &id
		}

		seeds = append(seeds, seed)
	}

	return seeds, nil
}
