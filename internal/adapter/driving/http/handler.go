// Package httphandler is the HTTP driving adapter: it receives GitHub
// webhook deliveries and serves a small read-only REST API over the
// connection and repository registries.
package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/appbridge/internal/application"
	"github.com/ericfisherdev/appbridge/internal/domain/port/driven"
)

// maxWebhookBody caps how much of a webhook body is read. GitHub caps
// deliveries at 25 MB; anything larger is not a legitimate delivery.
const maxWebhookBody = 25 << 20

// Handler is the HTTP driving adapter.
type Handler struct {
	connStore   driven.ConnectionStore
	repoStore   driven.RepoStore
	updateCache driven.UpdateCache
	webhookSvc  *application.WebhookService
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	connStore driven.ConnectionStore,
	repoStore driven.RepoStore,
	updateCache driven.UpdateCache,
	webhookSvc *application.WebhookService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		connStore:   connStore,
		repoStore:   repoStore,
		updateCache: updateCache,
		webhookSvc:  webhookSvc,
		logger:      logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/webhook/{app}", h.ReceiveWebhook)
	mux.HandleFunc("GET /api/v1/connections", h.ListConnections)
	mux.HandleFunc("GET /api/v1/repos", h.ListRepos)
	mux.HandleFunc("GET /api/v1/updates/{namespace}/{key}", h.GetUpdate)
	mux.HandleFunc("PUT /api/v1/updates/{namespace}/{key}", h.PutUpdate)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ReceiveWebhook handles one GitHub webhook delivery addressed to the app
// connection named in the URL path. The raw body is read before any parsing
// so the signature is verified over exactly the bytes GitHub signed.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	appSlug := r.PathValue("app")
	eventType := r.Header.Get("X-GitHub-Event")
	signature := r.Header.Get("X-Hub-Signature-256")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	err = h.webhookSvc.Process(r.Context(), appSlug, eventType, signature, body)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, messageResponse{Message: "event processed"})
	case errors.Is(err, application.ErrMissingPayload),
		errors.Is(err, application.ErrMissingSignature),
		errors.Is(err, application.ErrMalformedPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrSecretNotConfigured),
		errors.Is(err, application.ErrSignatureMismatch):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		h.logger.Error("webhook processing failed", "app", appSlug, "event", eventType, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// ListConnections returns all app connections.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.connStore.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list connections", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ConnectionResponse, 0, len(conns))
	for _, conn := range conns {
		resp = append(resp, toConnectionResponse(conn))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListRepos returns all tracked repositories.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.repoStore.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list repositories", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RepoResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toRepoResponse(repo))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetUpdate returns one cached update-state entry. Expired or absent entries
// are a 404, so the host treats any non-200 as "recheck upstream".
func (h *Handler) GetUpdate(w http.ResponseWriter, r *http.Request) {
	namespace := r.PathValue("namespace")
	key := r.PathValue("key")

	value, ok, err := h.updateCache.Get(r.Context(), namespace, key)
	if err != nil {
		h.logger.Error("failed to read update cache", "namespace", namespace, "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no cached update state")
		return
	}

	writeJSON(w, http.StatusOK, UpdateResponse{Namespace: namespace, Key: key, Value: value})
}

// PutUpdate stores one update-state entry on behalf of the host. A zero or
// absent TTL means the entry lives until the namespace is invalidated.
func (h *Handler) PutUpdate(w http.ResponseWriter, r *http.Request) {
	namespace := r.PathValue("namespace")
	key := r.PathValue("key")

	var req UpdateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Value == "" {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}

	var ttl time.Duration
	if req.TTL != "" {
		parsed, err := time.ParseDuration(req.TTL)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid ttl")
			return
		}
		ttl = parsed
	}

	if err := h.updateCache.Put(r.Context(), namespace, key, req.Value, ttl); err != nil {
		h.logger.Error("failed to write update cache", "namespace", namespace, "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "update state cached"})
}

// Health is a liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
