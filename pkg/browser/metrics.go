package browser

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coinrelay",
		Name:      "browser_sessions_opened_total",
		Help:      "Browser sessions successfully started.",
	})
	metricSessionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coinrelay",
		Name:      "browser_session_failures_total",
		Help:      "Browser sessions that failed to start.",
	})
	metricSessionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coinrelay",
		Name:      "browser_sessions_closed_total",
		Help:      "Browser sessions torn down.",
	})
	metricActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "coinrelay",
		Name:      "browser_sessions_active",
		Help:      "Browser sessions currently open.",
	})
	metricOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coinrelay",
		Name:      "browser_operations_total",
		Help:      "Browser driver operations by kind and result.",
	}, []string{"op", "result"})
)

// RecordSessionOpened tracks a successful session start.
func RecordSessionOpened() {
	metricSessionsOpened.Inc()
	metricActiveSessions.Inc()
}

// RecordSessionFailed tracks a session that never started.
func RecordSessionFailed() {
	metricSessionsFailed.Inc()
}

// RecordSessionClosed tracks session teardown.
func RecordSessionClosed() {
	metricSessionsClosed.Inc()
	metricActiveSessions.Dec()
}

// RecordOperation tracks one driver operation outcome.
func RecordOperation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metricOperations.WithLabelValues(op, result).Inc()
}
