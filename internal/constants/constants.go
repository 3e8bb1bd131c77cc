// Package constants provides centralized constant definitions for the
// endpoint provisioner.
package constants

import "time"

// Naming
const (
	// DefaultVariantName is the traffic variant a configuration binds when
	// the caller does not ask for anything else. Every endpoint managed by
	// this provisioner routes all traffic through a single variant.
	DefaultVariantName = "AllTraffic"

	// DefaultVariantWeight is the initial traffic weight of the single
	// variant.
	DefaultVariantWeight = 1.0

	// ConfigNameSuffix and ModelNameSuffix are the infixes of derived
	// resource names: "<endpoint>-config-<token>" and
	// "<package>-model-<version>".
	ConfigNameSuffix = "config"
	ModelNameSuffix  = "model"
)

// Polling
const (
	// DefaultPollInterval between endpoint status queries. Well below
	// typical convergence time (minutes) so readiness is observed promptly
	// without hammering the control plane.
	DefaultPollInterval = 30 * time.Second

	// DefaultExecutionBudget is the wall-clock budget of one invocation.
	DefaultExecutionBudget = 15 * time.Minute

	// DefaultSafetyBuffer is subtracted from the budget when computing the
	// polling deadline, so the invocation always returns control before it
	// is forcibly terminated by its host.
	DefaultSafetyBuffer = 60 * time.Second
)

// Autoscaling defaults, matching the platform's conservative baseline:
// hold one instance, allow bursting to two, track ten invocations per
// instance, and damp oscillation with five-minute cooldowns.
const (
	DefaultMinCapacity = 1
	DefaultMaxCapacity = 2
	DefaultTargetValue = 10.0

	DefaultScaleInCooldown  = 5 * time.Minute
	DefaultScaleOutCooldown = 5 * time.Minute
)

// Rollout defaults for in-place endpoint updates.
const (
	DefaultRolloutMaxBatchPercent      = 50
	DefaultRolloutWaitInterval         = 11 * time.Minute
	DefaultRolloutRollbackBatchPercent = 50
	DefaultRolloutMaxExecutionTimeout  = 32 * time.Minute
)

// Prometheus metric and label names.
const (
	MetricReconciliationsTotal      = "endpoint_provisioner_reconciliations_total"
	MetricDeploymentFailuresTotal   = "endpoint_provisioner_deployment_failures_total"
	MetricPollAttemptsTotal         = "endpoint_provisioner_poll_attempts_total"
	MetricInvocationsTotal          = "endpoint_provisioner_invocations_total"
	MetricConvergenceDurationSecond = "endpoint_provisioner_convergence_duration_seconds"

	LabelAction   = "action"
	LabelEndpoint = "endpoint"
	LabelKind     = "kind"
	LabelOutcome  = "outcome"
)
