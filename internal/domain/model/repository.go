package model

import "time"

// Repository is a GitHub repository discovered under some app connection.
// FullName ("owner/name") is the unique key; ManagingAppID points at the
// connection whose most recent sync saw the repository (last sync wins).
type Repository struct {
	ID            int64
	FullName      string
	GitHubID      int64
	ManagingAppID int64
	IsPrivate     bool
	HTMLURL       string
	LastSyncedAt  time.Time
	HealthStatus  HealthStatus
	HealthMessage string
}
