// Package metrics exposes Prometheus instrumentation for the provisioner.
// The invocation model is short-lived batch work, so metrics are registered
// on an explicit registry and optionally pushed to a gateway at the end of
// a run instead of being scraped.
package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/constants"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/pkg/api"
)

var (
	reconciliationsTotal    *prometheus.CounterVec
	deploymentFailuresTotal *prometheus.CounterVec
	pollAttemptsTotal       *prometheus.CounterVec
	invocationsTotal        *prometheus.CounterVec
	convergenceDuration     prometheus.Histogram

	// initOnce ensures InitMetrics only executes once for thread safety.
	initOnce sync.Once
	initErr  error
)

// InitMetrics registers all provisioner metrics with the provided registry.
// Safe to call multiple times; only the first call's registry is used.
func InitMetrics(registry prometheus.Registerer) error {
	initOnce.Do(func() {
		reconciliationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: constants.MetricReconciliationsTotal,
				Help: "Total number of endpoint reconciliations by action taken",
			},
			[]string{constants.LabelEndpoint, constants.LabelAction},
		)
		deploymentFailuresTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: constants.MetricDeploymentFailuresTotal,
				Help: "Total number of fatal deployment errors by kind",
			},
			[]string{constants.LabelEndpoint, constants.LabelKind},
		)
		pollAttemptsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: constants.MetricPollAttemptsTotal,
				Help: "Total number of endpoint status queries during readiness waits",
			},
			[]string{constants.LabelEndpoint},
		)
		invocationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: constants.MetricInvocationsTotal,
				Help: "Total number of provisioner invocations by outcome",
			},
			[]string{constants.LabelOutcome},
		)
		convergenceDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: constants.MetricConvergenceDurationSecond,
				Help: "Observed time from reconciliation to endpoint readiness",
				// Convergence takes minutes; buckets from 30s to ~32m.
				Buckets: prometheus.ExponentialBuckets(30, 2, 7),
			},
		)

		for _, c := range []prometheus.Collector{
			reconciliationsTotal,
			deploymentFailuresTotal,
			pollAttemptsTotal,
			invocationsTotal,
			convergenceDuration,
		} {
			if err := registry.Register(c); err != nil {
				initErr = fmt.Errorf("failed to register provisioner metrics: %w", err)
				return
			}
		}
	})
	return initErr
}

// RecordReconciliation counts a completed reconciliation by action.
func RecordReconciliation(endpointName string, action api.Action) {
	if reconciliationsTotal != nil {
		reconciliationsTotal.WithLabelValues(endpointName, string(action)).Inc()
	}
}

// RecordFailure counts a fatal deployment error by kind.
func RecordFailure(endpointName string, kind api.ErrorKind) {
	if deploymentFailuresTotal != nil {
		deploymentFailuresTotal.WithLabelValues(endpointName, string(kind)).Inc()
	}
}

// RecordPollAttempt counts one endpoint status query.
func RecordPollAttempt(endpointName string) {
	if pollAttemptsTotal != nil {
		pollAttemptsTotal.WithLabelValues(endpointName).Inc()
	}
}

// RecordInvocation counts a finished invocation by outcome.
func RecordInvocation(outcome api.Outcome) {
	if invocationsTotal != nil {
		invocationsTotal.WithLabelValues(string(outcome)).Inc()
	}
}

// ObserveConvergence records how long an endpoint took to become ready.
func ObserveConvergence(seconds float64) {
	if convergenceDuration != nil {
		convergenceDuration.Observe(seconds)
	}
}

// Push delivers the registry's current state to a push gateway. Invocations
// are too short-lived to scrape, so this runs once at the end of a run.
func Push(gatewayURL, job string, registry *prometheus.Registry) error {
	if gatewayURL == "" {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(registry).Add(); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
