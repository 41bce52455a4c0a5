// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	SessionsStarted  prometheus.Counter
	SessionsRejected *prometheus.CounterVec // by reason
	SessionsStopped  *prometheus.CounterVec // by cause
	IDsRecorded      prometheus.Counter
	EditsProcessed   prometheus.Counter
	RenderFailures   *prometheus.CounterVec // by surface operation
	ListOps          *prometheus.CounterVec // by list, op

	// Histograms (seconds)
	SessionDuration prometheus.Observer
	ReportSize      prometheus.Observer

	// Gauges
	ActiveSessionsGauge prometheus.Gauge
	GatewayUpGauge      prometheus.Gauge // 1=connected,0=disconnected
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "recorder_sessions_started_total", Help: "Number of recording sessions started"})
		SessionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{Name: "recorder_sessions_rejected_total", Help: "Number of start requests rejected"}, []string{"reason"})
		SessionsStopped = promauto.NewCounterVec(prometheus.CounterOpts{Name: "recorder_sessions_stopped_total", Help: "Number of recording sessions stopped"}, []string{"cause"})
		IDsRecorded = promauto.NewCounter(prometheus.CounterOpts{Name: "recorder_ids_recorded_total", Help: "Number of distinct ids added to sessions"})
		EditsProcessed = promauto.NewCounter(prometheus.CounterOpts{Name: "recorder_edits_processed_total", Help: "Number of message edits applied to active sessions"})
		RenderFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "recorder_render_failures_total", Help: "Number of swallowed report surface failures"}, []string{"op"})
		ListOps = promauto.NewCounterVec(prometheus.CounterOpts{Name: "id_list_operations_total", Help: "Release and evolve list operations by kind"}, []string{"list", "op"})
		SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "recorder_session_duration_seconds", Help: "Recording session lifetime seconds", Buckets: []float64{30, 60, 120, 300, 600, 1800, 3600}})
		ReportSize = promauto.NewHistogram(prometheus.HistogramOpts{Name: "recorder_report_ids", Help: "Distinct ids per final report", Buckets: []float64{0, 10, 50, 100, 200, 500, 1000, 5000}})
		ActiveSessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "recorder_active_sessions", Help: "Current number of active recording sessions"})
		GatewayUpGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "discord_gateway_up", Help: "Discord gateway connected=1 disconnected=0"})
	})
}

// SessionStarted bumps the started counter and the active gauge.
func SessionStarted() {
	if SessionsStarted != nil {
		SessionsStarted.Inc()
	}
	if ActiveSessionsGauge != nil {
		ActiveSessionsGauge.Inc()
	}
}

// SessionRejected records a refused start request.
func SessionRejected(reason string) {
	if SessionsRejected != nil {
		SessionsRejected.WithLabelValues(reason).Inc()
	}
}

// SessionStopped records a terminal transition with its lifetime and report size.
func SessionStopped(cause string, lifetime time.Duration, ids int) {
	if SessionsStopped != nil {
		SessionsStopped.WithLabelValues(cause).Inc()
	}
	if ActiveSessionsGauge != nil {
		ActiveSessionsGauge.Dec()
	}
	if SessionDuration != nil {
		SessionDuration.Observe(lifetime.Seconds())
	}
	if ReportSize != nil {
		ReportSize.Observe(float64(ids))
	}
}

// EditApplied records one processed edit and the number of ids it added.
func EditApplied(added int) {
	if EditsProcessed != nil {
		EditsProcessed.Inc()
	}
	if IDsRecorded != nil && added > 0 {
		IDsRecorded.Add(float64(added))
	}
}

// RenderFailed counts a swallowed surface error.
func RenderFailed(op string) {
	if RenderFailures != nil {
		RenderFailures.WithLabelValues(op).Inc()
	}
}

// ListOp counts an operation on a per-user id list ("release" or "evolve").
func ListOp(list, op string) {
	if ListOps != nil {
		ListOps.WithLabelValues(list, op).Inc()
	}
}

// SetGatewayUp sets gauge to 1 if connected else 0.
func SetGatewayUp(up bool) {
	if GatewayUpGauge != nil {
		if up {
			GatewayUpGauge.Set(1)
		} else {
			GatewayUpGauge.Set(0)
		}
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
