// Package metrics exports verification run counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dev/bravebird/ui-verification-go/pkg/models"
	"dev/bravebird/ui-verification-go/pkg/verify"
)

var (
	metricRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ui_verification",
		Name:      "runs_total",
		Help:      "Completed verification runs by driver and status.",
	}, []string{"driver", "status"})
	metricStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ui_verification",
		Name:      "step_duration_seconds",
		Help:      "Duration of scenario steps.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"driver", "step", "status"})
	metricActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ui_verification",
		Name:      "runs_active",
		Help:      "Verification runs currently holding a browser session.",
	})
)

// StepObserver records step durations for driver. Use one observer per run.
func StepObserver(driver string) verify.StepObserver {
	active := false
	return func(sr models.StepResult) {
		metricStepDuration.WithLabelValues(driver, string(sr.Name), string(sr.Status)).
			Observe(float64(sr.Duration) / 1000)
		switch sr.Name {
		case models.StepAcquireSession:
			if sr.Status == models.StatusSuccess {
				active = true
				metricActiveRuns.Inc()
			}
		case models.StepReleaseSession:
			if active {
				active = false
				metricActiveRuns.Dec()
			}
		}
	}
}

// ObserveRun counts a finished run
func ObserveRun(result models.VerificationResult) {
	metricRuns.WithLabelValues(result.Driver, string(result.Status)).Inc()
}

// Handler serves the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.Handler()
}
