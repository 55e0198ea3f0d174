package metrics

import (
	"database/sql"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "projecthub_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "projecthub_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	projectIDsAllocated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "projecthub_project_ids_allocated_total",
		Help: "Count of project sequence values handed out",
	})

	projectOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "projecthub_project_operations_total",
		Help: "Count of project operations by operation and result",
	}, []string{"operation", "result"})

	authFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "projecthub_auth_failures_total",
		Help: "Count of rejected authentication attempts by reason",
	}, []string{"reason"})

	storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "projecthub_store_errors_total",
		Help: "Count of backing store failures by operation",
	}, []string{"operation"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveProjectIDAllocated counts one minted project id.
func ObserveProjectIDAllocated() {
	projectIDsAllocated.Inc()
}

// ObserveProjectOperation counts a project create/update/delete by result.
func ObserveProjectOperation(operation, result string) {
	projectOperations.WithLabelValues(operation, result).Inc()
}

// ObserveAuthFailure records a rejected request at the authentication gate or login.
func ObserveAuthFailure(reason string) {
	authFailures.WithLabelValues(reason).Inc()
}

// ObserveStoreError records a store failure surfaced to a caller.
func ObserveStoreError(operation string) {
	storeErrors.WithLabelValues(operation).Inc()
}

// RegisterDBStats exports the Postgres pool statistics (go_sql_* with db_name="projecthub").
// Registering the same pool twice is a no-op.
func RegisterDBStats(db *sql.DB) {
	err := prometheus.Register(collectors.NewDBStatsCollector(db, "projecthub"))
	var already prometheus.AlreadyRegisteredError
	if err != nil && !errors.As(err, &already) {
		panic(err)
	}
}
