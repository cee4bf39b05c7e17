package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	chatRequestsTotal *prometheus.CounterVec

	completionTotal    *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec

	activeSessions       prometheus.Gauge
	sessionsTotal        prometheus.Counter
	sessionsEvictedTotal prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			chatRequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chat_requests_total",
					Help: "Total chat requests by outcome.",
				},
				[]string{"status"},
			),
			completionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "completion_total",
					Help: "Total completion gateway calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			completionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "completion_duration_seconds",
					Help:    "Completion gateway call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current active session count.",
				},
			),
			sessionsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_total",
					Help: "Total sessions created.",
				},
			),
			sessionsEvictedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_evicted_total",
					Help: "Total sessions evicted by the idle sweep.",
				},
			),
		}

		prometheus.MustRegister(
			m.chatRequestsTotal,
			m.completionTotal,
			m.completionDuration,
			m.activeSessions,
			m.sessionsTotal,
			m.sessionsEvictedTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordChatRequest(status string) {
	m := getMetrics()
	m.chatRequestsTotal.WithLabelValues(status).Inc()
}

func RecordCompletion(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.completionTotal.WithLabelValues(provider, status).Inc()
	m.completionDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func SetActiveSessions(count int) {
	m := getMetrics()
	m.activeSessions.Set(float64(count))
}

func RecordSessionCreated() {
	m := getMetrics()
	m.sessionsTotal.Inc()
}

func RecordSweep(evicted int) {
	m := getMetrics()
	m.sessionsEvictedTotal.Add(float64(evicted))
}
