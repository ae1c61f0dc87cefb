// Package metrics provides a simple Prometheus-compatible metrics endpoint.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds runtime metrics for the plan engine
type Metrics struct {
	// Mutation pipeline
	MutationsApplied   atomic.Int64
	MutationsRejected  atomic.Int64
	VersionConflicts   atomic.Int64
	ValidationTimeouts atomic.Int64

	// Fan-out
	BroadcastEvents  atomic.Int64
	SubscriberLags   atomic.Int64
	SnapshotsWritten atomic.Int64

	// Export
	Exports      atomic.Int64
	ExportErrors atomic.Int64

	// Timing (last mutation duration in ms)
	LastMutationDurationMs atomic.Int64

	startTime time.Time
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Global returns the global metrics instance
func Global() *Metrics {
	globalOnce.Do(func() {
		global = &Metrics{
			startTime: time.Now(),
		}
	})
	return global
}

// RecordMutation records a processed mutation request
func (m *Metrics) RecordMutation(accepted bool, durationMs int64) {
	if accepted {
		m.MutationsApplied.Add(1)
	} else {
		m.MutationsRejected.Add(1)
	}
	m.LastMutationDurationMs.Store(durationMs)
}

// RecordConflict records a stale-version rejection
func (m *Metrics) RecordConflict() {
	m.VersionConflicts.Add(1)
}

// RecordValidationTimeout records a validation deadline overrun
func (m *Metrics) RecordValidationTimeout() {
	m.ValidationTimeouts.Add(1)
}

// RecordBroadcast records delivered events and lagging subscribers
func (m *Metrics) RecordBroadcast(delivered, lagged int) {
	m.BroadcastEvents.Add(int64(delivered))
	m.SubscriberLags.Add(int64(lagged))
}

// RecordSnapshot records a persisted progress snapshot
func (m *Metrics) RecordSnapshot() {
	m.SnapshotsWritten.Add(1)
}

// RecordExport records an export attempt
func (m *Metrics) RecordExport(success bool) {
	m.Exports.Add(1)
	if !success {
		m.ExportErrors.Add(1)
	}
}

// Handler returns an HTTP handler for /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	counters := []struct {
		name  string
		help  string
		value func() int64
	}{
		{"actionplan_mutations_applied_total", "Total accepted mutations", m.MutationsApplied.Load},
		{"actionplan_mutations_rejected_total", "Total rejected mutations", m.MutationsRejected.Load},
		{"actionplan_version_conflicts_total", "Total stale-version rejections", m.VersionConflicts.Load},
		{"actionplan_validation_timeouts_total", "Total validation deadline overruns", m.ValidationTimeouts.Load},
		{"actionplan_broadcast_events_total", "Total events fanned out to subscribers", m.BroadcastEvents.Load},
		{"actionplan_subscriber_lags_total", "Total slow-subscriber gap markers", m.SubscriberLags.Load},
		{"actionplan_snapshots_written_total", "Total progress snapshots persisted", m.SnapshotsWritten.Load},
		{"actionplan_exports_total", "Total export requests", m.Exports.Load},
		{"actionplan_export_errors_total", "Total failed exports", m.ExportErrors.Load},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		uptime := time.Since(m.startTime).Seconds()
		fmt.Fprintf(w, "# HELP actionplan_uptime_seconds Time since the engine started\n")
		fmt.Fprintf(w, "# TYPE actionplan_uptime_seconds gauge\n")
		fmt.Fprintf(w, "actionplan_uptime_seconds %.2f\n\n", uptime)

		for _, c := range counters {
			fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
			fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
			fmt.Fprintf(w, "%s %d\n\n", c.name, c.value())
		}

		fmt.Fprintf(w, "# HELP actionplan_last_mutation_duration_ms Last mutation duration\n")
		fmt.Fprintf(w, "# TYPE actionplan_last_mutation_duration_ms gauge\n")
		fmt.Fprintf(w, "actionplan_last_mutation_duration_ms %d\n", m.LastMutationDurationMs.Load())
	}
}

// Server wraps the metrics HTTP server
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics server on the given address
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", Global().Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Server{
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start starts the metrics server in background
func (s *Server) Start() error {
	go s.srv.ListenAndServe()
	return nil
}

// Stop gracefully shuts down the metrics server
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
