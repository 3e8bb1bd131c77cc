/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package controlplane

import "time"

// EndpointStatus is the platform-reported status of a serving endpoint.
// The vocabulary is platform-defined; the provisioner only depends on the
// three classes returned by StatusClass.
type EndpointStatus string

const (
	StatusCreating     EndpointStatus = "Creating"
	StatusUpdating     EndpointStatus = "Updating"
	StatusInService    EndpointStatus = "InService"
	StatusFailed       EndpointStatus = "Failed"
	StatusDeleting     EndpointStatus = "Deleting"
	StatusRollingBack  EndpointStatus = "RollingBack"
	StatusOutOfService EndpointStatus = "OutOfService"
)

// StatusClass partitions endpoint statuses for the readiness gate.
type StatusClass int

const (
	// ClassPending: the endpoint is still converging. Keep polling.
	ClassPending StatusClass = iota
	// ClassReady: the endpoint serves traffic.
	ClassReady
	// ClassTerminalFailure: the platform gave up. The status does not
	// regress out of this class; polling stops immediately.
	ClassTerminalFailure
)

// StatusClassOf maps a platform status to its readiness class. Unknown
// statuses are treated as pending: the platform may grow vocabulary, and
// waiting out the budget is safer than declaring failure.
func StatusClassOf(status EndpointStatus) StatusClass {
	switch status {
	case StatusInService:
		return ClassReady
	case StatusFailed, StatusOutOfService:
		return ClassTerminalFailure
	default:
		return ClassPending
	}
}

// ConfigurationSpec is the immutable binding of a serving model to sizing
// and traffic weight. Configurations are write-once: a new model version or
// sizing always produces a new configuration, old ones are superseded, never
// mutated.
type ConfigurationSpec struct {
	Name                 string  `json:"name"`
	ModelName            string  `json:"model_name"`
	InstanceType         string  `json:"instance_type"`
	InitialInstanceCount int     `json:"initial_instance_count"`
	VariantName          string  `json:"variant_name"`
	VariantWeight        float64 `json:"variant_weight"`
}

// EndpointState is the observed state of an endpoint.
type EndpointState struct {
	Status EndpointStatus `json:"status"`

	// ConfigName is the configuration the endpoint is currently bound to.
	ConfigName string `json:"config_name"`

	// FailureReason carries the platform's explanation when Status is in
	// the terminal-failure class.
	FailureReason string `json:"failure_reason,omitempty"`
}

// RolloutPolicy shapes an in-place endpoint update: the platform replaces
// capacity in batches and rolls back on failure.
type RolloutPolicy struct {
	// MaxBatchPercent of capacity replaced per rolling batch.
	MaxBatchPercent int `json:"max_batch_percent"`

	// WaitInterval between batches.
	WaitInterval time.Duration `json:"wait_interval"`

	// RollbackBatchPercent of capacity restored per batch on rollback.
	RollbackBatchPercent int `json:"rollback_batch_percent"`

	// MaxExecutionTimeout bounds the whole rolling update on the platform
	// side.
	MaxExecutionTimeout time.Duration `json:"max_execution_timeout"`
}

// PolicySpec is a target-tracking scaling policy on a scalable target.
// The predefined metric is the platform's per-instance invocation load.
type PolicySpec struct {
	PolicyName string `json:"policy_name"`

	// ResourceID identifies the (endpoint, variant) pair the policy
	// attaches to.
	ResourceID string `json:"resource_id"`

	TargetValue float64 `json:"target_value"`

	// Equal cooldowns in both directions avoid capacity flapping under
	// bursty load.
	ScaleInCooldown  time.Duration `json:"scale_in_cooldown"`
	ScaleOutCooldown time.Duration `json:"scale_out_cooldown"`
}
