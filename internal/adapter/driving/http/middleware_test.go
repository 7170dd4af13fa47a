package httphandler

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingMiddleware_WebhookFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/app-1", strings.NewReader("{}"))
	req.Header.Set("X-GitHub-Event", "release")
	req.Header.Set("X-GitHub-Delivery", "72d3162e-cc78-11e3")

	rec := httptest.NewRecorder()
	loggingMiddleware(logger, next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	line := buf.String()
	assert.Contains(t, line, "status=202")
	assert.Contains(t, line, "bytes=2")
	assert.Contains(t, line, "event=release")
	assert.Contains(t, line, "delivery=72d3162e-cc78-11e3")
}

func TestLoggingMiddleware_NonWebhookOmitsDeliveryFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	loggingMiddleware(logger, next).ServeHTTP(rec, req)

	line := buf.String()
	assert.NotContains(t, line, "event=")
	assert.NotContains(t, line, "delivery=")
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/repos", nil)
	rec := httptest.NewRecorder()
	recoveryMiddleware(logger, next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
	assert.Contains(t, buf.String(), "panic recovered")
}
