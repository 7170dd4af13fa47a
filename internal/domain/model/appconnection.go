package model

import "time"

// AppConnection binds the host application to one configured GitHub App
// installation. InstallationID is nil until the first installation webhook
// arrives or the connection is seeded with one at startup.
type AppConnection struct {
	ID             int64
	Slug           string
	InstallationID *int64
	HealthStatus   HealthStatus
	HealthMessage  string

	// AccessibleRepos is the ordered set of repository full names this
	// connection currently manages. It is replaced wholesale on every
	// successful sync and never merged with earlier results.
	AccessibleRepos []string

	CreatedAt time.Time
}
