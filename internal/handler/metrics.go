package handler

import (
	"fmt"
	"net/http"

	"github.com/tokenapi/tokenapi/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "tokenapi_tokens_total{event=\"issued\"} %d\n", snap.TokensIssued)
	writeMetric(w, "tokenapi_tokens_total{event=\"refreshed\"} %d\n", snap.TokensRefreshed)
	writeMetric(w, "tokenapi_tokens_total{event=\"deactivated\"} %d\n", snap.TokensDeactivated)

	writeMetric(w, "tokenapi_auth_attempts_total{result=\"success\"} %d\n", snap.AuthSuccess)
	writeMetric(w, "tokenapi_auth_attempts_total{result=\"not_found\"} %d\n", snap.AuthNotFound)
	writeMetric(w, "tokenapi_auth_attempts_total{result=\"inactive\"} %d\n", snap.AuthInactive)
	writeMetric(w, "tokenapi_auth_attempts_total{result=\"expired\"} %d\n", snap.AuthExpired)
	writeMetric(w, "tokenapi_auth_attempts_total{result=\"user_inactive\"} %d\n", snap.AuthUserInactive)

	writeMetric(w, "tokenapi_auth_cache_hits_total %d\n", snap.AuthCacheHits)
	writeMetric(w, "tokenapi_auth_cache_misses_total %d\n", snap.AuthCacheMisses)
	writeMetric(w, "tokenapi_auth_duration_seconds_count %d\n", snap.AuthDurationCount)
	writeMetric(w, "tokenapi_auth_duration_seconds_sum %.6f\n", float64(snap.AuthDurationTotalNs)/1e9)

	writeMetric(w, "tokenapi_login_attempts_total{result=\"success\"} %d\n", snap.LoginSuccess)
	writeMetric(w, "tokenapi_login_attempts_total{result=\"failure\"} %d\n", snap.LoginFailure)
	writeMetric(w, "tokenapi_login_attempts_total{result=\"rate_limited\"} %d\n", snap.LoginRateLimited)

	writeMetric(w, "tokenapi_users_created_total %d\n", snap.UsersCreated)

	writeMetric(w, "tokenapi_audit_events_published_total{status=\"success\"} %d\n", snap.AuditEventsPublished)
	writeMetric(w, "tokenapi_audit_events_published_total{status=\"dropped\"} %d\n", snap.AuditEventsDropped)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
