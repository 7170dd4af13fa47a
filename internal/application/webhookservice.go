package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/appbridge/internal/domain/model"
	"github.com/ericfisherdev/appbridge/internal/domain/port/driven"
)

// Validation errors surfaced by WebhookService.Process. The HTTP adapter maps
// the first two to 400 and the rest to 401/400 per their kind; none of them is
// ever downgraded to a warning.
var (
	// ErrMissingPayload indicates the request carried no body.
	ErrMissingPayload = errors.New("missing webhook payload")

	// ErrMissingSignature indicates the signature header was absent.
	ErrMissingSignature = errors.New("missing webhook signature")

	// ErrSecretNotConfigured indicates no shared secret exists for the target
	// app. Requests fail closed in this state.
	ErrSecretNotConfigured = errors.New("webhook secret not configured")

	// ErrSignatureMismatch indicates the payload HMAC did not match.
	ErrSignatureMismatch = errors.New("webhook signature mismatch")

	// ErrMalformedPayload indicates the body was not valid JSON.
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// ReleaseListener receives release/published events after validation.
type ReleaseListener func(event model.ReleaseEvent)

// WebhookService validates and applies inbound GitHub webhook events,
// bypassing the scheduled sync path for low-latency reconciliation.
type WebhookService struct {
	connStore driven.ConnectionStore
	secrets   driven.WebhookSecretStore
	cache     driven.UpdateCache

	mu        sync.RWMutex
	listeners []ReleaseListener
}

// NewWebhookService creates a new WebhookService with all required dependencies.
func NewWebhookService(
	connStore driven.ConnectionStore,
	secrets driven.WebhookSecretStore,
	cache driven.UpdateCache,
) *WebhookService {
	return &WebhookService{
		connStore: connStore,
		secrets:   secrets,
		cache:     cache,
	}
}

// OnReleasePublished registers a listener notified for every validated
// release/published event.
func (s *WebhookService) OnReleasePublished(listener ReleaseListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// webhookPayload is the subset of the event body the reconciler acts on.
type webhookPayload struct {
	Action       string `json:"action"`
	Installation *struct {
		ID int64 `json:"id"`
	} `json:"installation"`
}

// Process validates one signed webhook request and applies it. The signature
// is checked over the raw body bytes, before any JSON interpretation, using a
// constant-time comparison. Replaying a valid payload is safe: the
// installation-id write is last-wins and cache invalidation of an empty
// namespace is a no-op.
func (s *WebhookService) Process(ctx context.Context, appSlug, eventType, signature string, body []byte) error {
	if len(body) == 0 {
		return ErrMissingPayload
	}
	if signature == "" {
		return ErrMissingSignature
	}

	secret, err := s.secrets.Get(ctx, appSlug)
	if err != nil {
		// Includes the no-encryption-key state: fail closed, never open.
		slog.Error("webhook secret lookup failed", "app", appSlug, "error", err)
		return ErrSecretNotConfigured
	}
	if secret == "" {
		return ErrSecretNotConfigured
	}

	if err := gh.ValidateSignature(signature, body, []byte(secret)); err != nil {
		return ErrSignatureMismatch
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ErrMalformedPayload
	}

	switch {
	case eventType == "installation" && payload.Installation != nil && payload.Installation.ID != 0:
		return s.applyInstallation(ctx, appSlug, payload.Installation.ID)
	case eventType == "release" && payload.Action == "published":
		return s.applyReleasePublished(ctx, appSlug, payload.Action, body)
	default:
		// Accepted and acknowledged, no state change.
		slog.Debug("webhook event ignored", "app", appSlug, "event", eventType, "action", payload.Action)
		return nil
	}
}

// applyInstallation binds the claimed installation id to the target app
// connection. The write trusts signature validity alone and does not verify
// prior ownership of the installation; this supports first-time installation
// binding and is a reviewed trust decision.
func (s *WebhookService) applyInstallation(ctx context.Context, appSlug string, installationID int64) error {
	conn, err := s.connStore.GetBySlug(ctx, appSlug)
	if err != nil {
		return fmt.Errorf("load connection %s: %w", appSlug, err)
	}
	if conn == nil {
		slog.Warn("installation event for unknown connection", "app", appSlug, "installation_id", installationID)
		return nil
	}

	if err := s.connStore.SetInstallationID(ctx, conn.ID, installationID); err != nil {
		return fmt.Errorf("set installation id for %s: %w", appSlug, err)
	}

	slog.Info("installation bound", "app", appSlug, "installation_id", installationID)
	return nil
}

// applyReleasePublished drops the cached update state for plugins and themes
// broadly (not scoped to the event's repository) and notifies listeners.
func (s *WebhookService) applyReleasePublished(ctx context.Context, appSlug, action string, body []byte) error {
	for _, namespace := range []string{"plugins", "themes"} {
		if err := s.cache.Invalidate(ctx, namespace); err != nil {
			return fmt.Errorf("invalidate %s cache: %w", namespace, err)
		}
	}

	event := model.ReleaseEvent{
		AppSlug: appSlug,
		Action:  action,
		Payload: json.RawMessage(body),
	}

	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}

	slog.Info("release published, update caches invalidated", "app", appSlug, "listeners", len(listeners))
	return nil
}
