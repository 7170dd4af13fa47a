package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/appbridge/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// messageResponse is the standard acknowledgement body.
type messageResponse struct {
	Message string `json:"message"`
}

// UpdateRequest is the body of a PUT to the update-state cache. TTL is an
// optional Go duration string ("24h"); empty means no expiry.
type UpdateRequest struct {
	Value string `json:"value"`
	TTL   string `json:"ttl,omitempty"`
}

// UpdateResponse is one cached update-state entry.
type UpdateResponse struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

// ConnectionResponse is the JSON representation of an app connection.
type ConnectionResponse struct {
	ID              int64    `json:"id"`
	Slug            string   `json:"slug"`
	InstallationID  *int64   `json:"installation_id"`
	HealthStatus    string   `json:"health_status"`
	HealthMessage   string   `json:"health_message,omitempty"`
	AccessibleRepos []string `json:"accessible_repos"`
	CreatedAt       string   `json:"created_at"`
}

// RepoResponse is the JSON representation of a tracked repository.
type RepoResponse struct {
	FullName      string `json:"full_name"`
	GitHubID      int64  `json:"github_id"`
	ManagingAppID int64  `json:"managing_app_id"`
	IsPrivate     bool   `json:"is_private"`
	HTMLURL       string `json:"html_url"`
	LastSyncedAt  string `json:"last_synced_at,omitempty"`
	HealthStatus  string `json:"health_status"`
	HealthMessage string `json:"health_message,omitempty"`
}

func toConnectionResponse(conn model.AppConnection) ConnectionResponse {
	repos := conn.AccessibleRepos
	if repos == nil {
		repos = []string{}
	}

	return ConnectionResponse{
		ID:              conn.ID,
		Slug:            conn.Slug,
		InstallationID:  conn.InstallationID,
		HealthStatus:    string(conn.HealthStatus),
		HealthMessage:   conn.HealthMessage,
		AccessibleRepos: repos,
		CreatedAt:       conn.CreatedAt.Format(time.RFC3339),
	}
}

func toRepoResponse(repo model.Repository) RepoResponse {
	resp := RepoResponse{
		FullName:      repo.FullName,
		GitHubID:      repo.GitHubID,
		ManagingAppID: repo.ManagingAppID,
		IsPrivate:     repo.IsPrivate,
		HTMLURL:       repo.HTMLURL,
		HealthStatus:  string(repo.HealthStatus),
		HealthMessage: repo.HealthMessage,
	}
	if !repo.LastSyncedAt.IsZero() {
		resp.LastSyncedAt = repo.LastSyncedAt.Format(time.RFC3339)
	}
	return resp
}
