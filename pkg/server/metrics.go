package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coinrelay",
		Name:      "requests_total",
		Help:      "API requests by provider and outcome.",
	}, []string{"provider", "outcome"})

	metricWorkflowDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "coinrelay",
		Name:      "workflow_duration_seconds",
		Help:      "Wall-clock duration of one full workflow run.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"provider"})
)

func recordRequest(providerName, outcome string) {
	metricRequests.WithLabelValues(providerName, outcome).Inc()
}

func observeWorkflowDuration(providerName string, d time.Duration) {
	metricWorkflowDuration.WithLabelValues(providerName).Observe(d.Seconds())
}
