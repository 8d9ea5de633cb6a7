package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	TokensIssued      uint64
	TokensRefreshed   uint64
	TokensDeactivated uint64

	AuthSuccess      uint64
	AuthNotFound     uint64
	AuthInactive     uint64
	AuthExpired      uint64
	AuthUserInactive uint64

	AuthCacheHits       uint64
	AuthCacheMisses     uint64
	AuthDurationCount   uint64
	AuthDurationTotalNs int64

	LoginSuccess     uint64
	LoginFailure     uint64
	LoginRateLimited uint64
	UsersCreated     uint64

	AuditEventsPublished uint64
	AuditEventsDropped   uint64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint
// and is used directly in tests.
type InMemoryRecorder struct {
	tokensIssued      atomic.Uint64
	tokensRefreshed   atomic.Uint64
	tokensDeactivated atomic.Uint64

	authSuccess      atomic.Uint64
	authNotFound     atomic.Uint64
	authInactive     atomic.Uint64
	authExpired      atomic.Uint64
	authUserInactive atomic.Uint64

	authCacheHits       atomic.Uint64
	authCacheMisses     atomic.Uint64
	authDurationCount   atomic.Uint64
	authDurationTotalNs atomic.Int64

	loginSuccess     atomic.Uint64
	loginFailure     atomic.Uint64
	loginRateLimited atomic.Uint64
	usersCreated     atomic.Uint64

	auditPublished atomic.Uint64
	auditDropped   atomic.Uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		TokensIssued:         m.tokensIssued.Load(),
		TokensRefreshed:      m.tokensRefreshed.Load(),
		TokensDeactivated:    m.tokensDeactivated.Load(),
		AuthSuccess:          m.authSuccess.Load(),
		AuthNotFound:         m.authNotFound.Load(),
		AuthInactive:         m.authInactive.Load(),
		AuthExpired:          m.authExpired.Load(),
		AuthUserInactive:     m.authUserInactive.Load(),
		AuthCacheHits:        m.authCacheHits.Load(),
		AuthCacheMisses:      m.authCacheMisses.Load(),
		AuthDurationCount:    m.authDurationCount.Load(),
		AuthDurationTotalNs:  m.authDurationTotalNs.Load(),
		LoginSuccess:         m.loginSuccess.Load(),
		LoginFailure:         m.loginFailure.Load(),
		LoginRateLimited:     m.loginRateLimited.Load(),
		UsersCreated:         m.usersCreated.Load(),
		AuditEventsPublished: m.auditPublished.Load(),
		AuditEventsDropped:   m.auditDropped.Load(),
	}
}

// IncTokenIssued increments the issued token counter.
func (m *InMemoryRecorder) IncTokenIssued() { m.tokensIssued.Add(1) }

// IncTokenRefreshed increments the refreshed token counter.
func (m *InMemoryRecorder) IncTokenRefreshed() { m.tokensRefreshed.Add(1) }

// IncTokenDeactivated increments the deactivated token counter.
func (m *InMemoryRecorder) IncTokenDeactivated() { m.tokensDeactivated.Add(1) }

// IncAuthAttempt increments the counter for an authentication result.
// Unknown results are ignored.
func (m *InMemoryRecorder) IncAuthAttempt(result string) {
	switch result {
	case AuthSuccess:
		m.authSuccess.Add(1)
	case AuthNotFound:
		m.authNotFound.Add(1)
	case AuthInactive:
		m.authInactive.Add(1)
	case AuthExpired:
		m.authExpired.Add(1)
	case AuthUserInactive:
		m.authUserInactive.Add(1)
	}
}

// IncAuthCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncAuthCacheHit() { m.authCacheHits.Add(1) }

// IncAuthCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncAuthCacheMiss() { m.authCacheMisses.Add(1) }

// ObserveAuthDuration records token lookup duration.
func (m *InMemoryRecorder) ObserveAuthDuration(duration time.Duration) {
	m.authDurationCount.Add(1)
	m.authDurationTotalNs.Add(duration.Nanoseconds())
}

// IncLoginAttempt increments the counter for a login result.
func (m *InMemoryRecorder) IncLoginAttempt(result string) {
	switch result {
	case LoginSuccess:
		m.loginSuccess.Add(1)
	case LoginFailure:
		m.loginFailure.Add(1)
	case LoginRateLimited:
		m.loginRateLimited.Add(1)
	}
}

// IncUserCreated increments the created user counter.
func (m *InMemoryRecorder) IncUserCreated() { m.usersCreated.Add(1) }

// IncAuditEventPublished increments the audit publish counter for status.
func (m *InMemoryRecorder) IncAuditEventPublished(status string) {
	switch status {
	case "success":
		m.auditPublished.Add(1)
	case "dropped":
		m.auditDropped.Add(1)
	}
}
