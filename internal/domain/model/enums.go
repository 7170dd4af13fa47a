package model

// HealthStatus represents the last recorded outcome of a health check for an
// app connection or repository.
type HealthStatus string

const (
	HealthUnknown HealthStatus = "unknown"
	HealthOK      HealthStatus = "ok"
	HealthWarn    HealthStatus = "warn"
	HealthError   HealthStatus = "error"
)
