package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/appbridge/internal/adapter/driven/github"
	"github.com/ericfisherdev/appbridge/internal/adapter/driven/queue"
	sqliteadapter "github.com/ericfisherdev/appbridge/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/appbridge/internal/adapter/driving/http"
	"github.com/ericfisherdev/appbridge/internal/application"
	"github.com/ericfisherdev/appbridge/internal/config"
	"github.com/ericfisherdev/appbridge/internal/domain/model"
	"github.com/ericfisherdev/appbridge/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"sync_interval", cfg.SyncInterval,
		"health_check_interval", cfg.HealthCheckInterval,
		"connections", len(cfg.Connections),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	connStore := sqliteadapter.NewConnectionRepo(db)
	repoStore := sqliteadapter.NewRepoRepo(db)
	secretStore := sqliteadapter.NewSecretRepo(db, cfg.EncryptionKey)
	updateCache := sqliteadapter.NewCacheRepo(db)

	// 6. Create GitHub client (may be nil if no token configured).
	var ghClient *githubadapter.Client
	if cfg.HasGitHubCredentials() {
		ghClient = githubadapter.NewClient(cfg.GitHubToken, "default")
		slog.Info("github client created")
	} else {
		slog.Warn("no github token configured, sync is inactive until one is provided")
	}
	provider := application.NewGitHubClientProvider(ghClient)
	for slug, token := range cfg.ConnectionTokens {
		provider.Set(slug, githubadapter.NewClient(token, slug))
		slog.Info("dedicated github client created", "connection", slug)
	}

	// 7. Seed app connections and their webhook secrets from configuration.
	if err := seedConnections(ctx, connStore, cfg.Connections); err != nil {
		return err
	}
	for slug, secret := range cfg.WebhookSecrets {
		if err := secretStore.Set(ctx, slug, secret); err != nil {
			return err
		}
	}
	if len(cfg.WebhookSecrets) > 0 {
		slog.Info("webhook secrets seeded", "connections", len(cfg.WebhookSecrets))
	}

	// 8. Create services.
	taskQueue, err := queue.New(cfg.QueueWorkers, slog.Default())
	if err != nil {
		return err
	}

	syncSvc := application.NewSyncService(provider, connStore, repoStore, taskQueue)
	healthSvc := application.NewHealthService(provider, connStore, repoStore, taskQueue)
	webhookSvc := application.NewWebhookService(connStore, secretStore, updateCache)

	// 9. Register queue handlers and the recurring schedules.
	taskQueue.Register(driven.HookSyncAllConnections, func(ctx context.Context, _ map[string]string) error {
		return syncSvc.Run(ctx)
	})
	taskQueue.Register(driven.HookHealthCheckAllConnections, func(ctx context.Context, _ map[string]string) error {
		return healthSvc.FanOutConnections(ctx)
	})
	taskQueue.Register(driven.HookHealthCheckAllRepos, func(ctx context.Context, _ map[string]string) error {
		return healthSvc.FanOutRepositories(ctx)
	})
	taskQueue.Register(driven.HookHealthCheckConnection, func(ctx context.Context, payload map[string]string) error {
		id, err := strconv.ParseInt(payload[driven.PayloadConnectionID], 10, 64)
		if err != nil {
			return errors.New("connection check task missing connection_id")
		}
		return healthSvc.CheckConnection(ctx, id)
	})
	taskQueue.Register(driven.HookHealthCheckRepository, func(ctx context.Context, payload map[string]string) error {
		fullName := payload[driven.PayloadFullName]
		if fullName == "" {
			return errors.New("repository check task missing full_name")
		}
		return healthSvc.CheckRepository(ctx, fullName)
	})

	if err := taskQueue.ScheduleRecurring(driven.HookSyncAllConnections, cfg.SyncInterval, 0); err != nil {
		return err
	}
	if err := taskQueue.ScheduleRecurring(driven.HookHealthCheckAllConnections, cfg.HealthCheckInterval, cfg.HealthCheckDelay); err != nil {
		return err
	}
	if err := taskQueue.ScheduleRecurring(driven.HookHealthCheckAllRepos, cfg.HealthCheckInterval, cfg.HealthCheckDelay); err != nil {
		return err
	}

	taskQueue.Start(ctx)
	slog.Info("schedules registered", "hooks", taskQueue.RecurringHooks())

	// 10. Create HTTP handler and serve.
	apiHandler := httphandler.NewHandler(connStore, repoStore, updateCache, webhookSvc, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	// 11. Block until shutdown signal, then drain.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	if err := taskQueue.Shutdown(); err != nil {
		slog.Error("task queue shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// seedConnections registers the configured app connections, tolerating rows
// that already exist from a previous run. A seed that carries an installation
// id rebinds it on every start, so config remains the source of truth for
// statically declared installations.
func seedConnections(ctx context.Context, connStore driven.ConnectionStore, seeds []config.ConnectionSeed) error {
	for _, seed := range seeds {
		conn, err := connStore.GetBySlug(ctx, seed.Slug)
		if err != nil {
			return err
		}

		if conn == nil {
			newConn := model.AppConnection{Slug: seed.Slug, InstallationID: seed.InstallationID}
			if err := connStore.Add(ctx, newConn); err != nil && !errors.Is(err, driven.ErrConnectionAlreadyExists) {
				return err
			}
			conn, err = connStore.GetBySlug(ctx, seed.Slug)
			if err != nil {
				return err
			}
			if conn == nil {
				return errors.New("seeded connection " + seed.Slug + " not found after insert")
			}
			slog.Info("connection seeded", "slug", seed.Slug)
		}

		if seed.InstallationID != nil {
			if err := connStore.SetInstallationID(ctx, conn.ID, *seed.InstallationID); err != nil {
				return err
			}
		}
	}
	return nil
}
