// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Auth attempt results.
const (
	AuthSuccess      = "success"
	AuthNotFound     = "not_found"
	AuthInactive     = "inactive"
	AuthExpired      = "expired"
	AuthUserInactive = "user_inactive"
)

// Login attempt results.
const (
	LoginSuccess     = "success"
	LoginFailure     = "failure"
	LoginRateLimited = "rate_limited"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Token lifecycle metrics
	IncTokenIssued()
	IncTokenRefreshed()
	IncTokenDeactivated()

	// Authentication metrics
	IncAuthAttempt(result string)
	IncAuthCacheHit()
	IncAuthCacheMiss()
	ObserveAuthDuration(duration time.Duration)

	// Account metrics
	IncLoginAttempt(result string)
	IncUserCreated()

	// Audit stream metrics
	IncAuditEventPublished(status string) // status: "success" or "dropped"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
