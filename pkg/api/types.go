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

// Package api defines the invocation surface of the endpoint provisioner:
// the structured deployment request consumed per deployment event, the
// structured result produced at the end of a run, and the error taxonomy
// shared by all components.
package api

// ModelReference identifies an approved, deployable model artifact.
// It is produced upstream (model packaging/approval is out of scope) and
// consumed once per deployment. Immutable.
type ModelReference struct {
	// PackageRef is the opaque identifier of the versioned model package
	// (e.g. a registry ARN or a package path).
	PackageRef string `json:"package_ref"`

	// Version is the stable version token of the package. It is required:
	// the serving model name is derived from it so that the same model
	// version always maps to the same compute-layer handle.
	Version string `json:"version"`
}

// Action describes what the reconciler did to the endpoint.
type Action string

const (
	// ActionCreated means the endpoint did not exist and was created.
	ActionCreated Action = "Created"

	// ActionUpdated means the endpoint existed and was re-pointed to a
	// new configuration.
	ActionUpdated Action = "Updated"

	// ActionNoChangeNeeded means the endpoint existed and its live
	// configuration already binds the requested model version and sizing.
	ActionNoChangeNeeded Action = "NoChangeNeeded"
)

// Phase is a state of the composed deployment state machine.
type Phase string

const (
	PhaseNotDeployed           Phase = "NotDeployed"
	PhaseDeploying             Phase = "Deploying"
	PhaseAwaitingReadiness     Phase = "AwaitingReadiness"
	PhaseReady                 Phase = "Ready"
	PhaseAutoscalingConfigured Phase = "AutoscalingConfigured"

	// PhaseFailed is terminal: a control-plane rejection or a
	// platform-reported endpoint failure.
	PhaseFailed Phase = "Failed"

	// PhaseTimedOut is not terminal. The endpoint keeps converging on the
	// platform side; a later invocation resumes from here as if from
	// PhaseDeploying.
	PhaseTimedOut Phase = "TimedOut"
)

// Outcome summarizes a finished invocation.
type Outcome string

const (
	OutcomeSucceeded Outcome = "Succeeded"

	// OutcomeTimedOut means the time budget ran out while the endpoint was
	// still converging. Not a failure: callers should not alert on it.
	OutcomeTimedOut Outcome = "TimedOut"

	OutcomeFailed Outcome = "Failed"
)

// DeploymentRequest is the single structured input of one provisioner
// invocation.
type DeploymentRequest struct {
	// InvocationID correlates log lines and results for one run. Assigned
	// by the provisioner when empty.
	InvocationID string `json:"invocation_id,omitempty"`

	ModelReference ModelReference `json:"model_reference"`

	// EndpointName is the stable identity of the logical deployment.
	EndpointName string `json:"endpoint_name"`

	InstanceType         string `json:"instance_type"`
	InitialInstanceCount int    `json:"initial_instance_count"`

	// Autoscaling bounds and target, registered once the endpoint is ready.
	MinCapacity int     `json:"min_capacity"`
	MaxCapacity int     `json:"max_capacity"`
	TargetValue float64 `json:"target_value"`
}

// DeploymentResult is the single structured output of one invocation.
type DeploymentResult struct {
	InvocationID string `json:"invocation_id"`
	EndpointName string `json:"endpoint_name"`

	// Action taken by the reconciler, empty when reconciliation never ran
	// to completion.
	Action Action `json:"action,omitempty"`

	// Phase the state machine stopped in.
	Phase Phase `json:"phase"`

	Outcome Outcome `json:"outcome"`

	// ConfigurationName is the serving configuration created during this
	// run. Recorded even on failure: configurations are write-once and
	// never cleaned up here, so the name is the audit handle.
	ConfigurationName string `json:"configuration_name,omitempty"`

	ServingModelName string `json:"serving_model_name,omitempty"`

	ErrorKind   ErrorKind `json:"error_kind,omitempty"`
	ErrorDetail string    `json:"error_detail,omitempty"`
}
