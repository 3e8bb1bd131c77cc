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

// Package controlplane defines the contract with the external serving
// control plane: create/describe/update primitives for models, endpoint
// configurations and endpoints, plus the scalable-target/scaling-policy
// pair. State transitions on the control plane are eventually consistent;
// callers observe convergence through DescribeEndpoint.
//
// Clients are handed to components explicitly (constructor injection).
// There is no package-level, lazily initialized client.
package controlplane

import "context"

// Client is the endpoint-side control-plane contract.
//
// All mutating calls are plain request/response: they return once the
// control plane accepted (or rejected) the request, not once the resource
// converged. Conflicts are reported as structured errors satisfying
// IsConflict, never as generic failures.
type Client interface {
	// CreateModel registers the compute-layer model handle for a packaged
	// model artifact. Conflict means the handle already exists, which is
	// expected when the same model version is deployed repeatedly.
	CreateModel(ctx context.Context, name, packageRef string) error

	// CreateConfiguration creates an immutable serving configuration.
	CreateConfiguration(ctx context.Context, cfg ConfigurationSpec) error

	// DescribeConfiguration returns the spec of an existing configuration.
	DescribeConfiguration(ctx context.Context, name string) (ConfigurationSpec, error)

	// CreateEndpoint creates an endpoint bound to configName. Conflict
	// means an endpoint with this name already exists.
	CreateEndpoint(ctx context.Context, name, configName string) error

	// UpdateEndpoint re-points an existing endpoint to configName,
	// rolling capacity per the policy.
	UpdateEndpoint(ctx context.Context, name, configName string, rollout RolloutPolicy) error

	// DescribeEndpoint returns the observed endpoint state.
	DescribeEndpoint(ctx context.Context, name string) (EndpointState, error)
}

// AutoscalingClient is the elastic-capacity contract. Registration is
// idempotent on the control-plane side: re-registering an existing target
// or policy with compatible settings yields a conflict, which callers map
// to success.
type AutoscalingClient interface {
	// RegisterScalableTarget declares capacity bounds for the resource.
	RegisterScalableTarget(ctx context.Context, resourceID string, minCapacity, maxCapacity int) error

	// PutScalingPolicy attaches a target-tracking policy to a registered
	// scalable target.
	PutScalingPolicy(ctx context.Context, policy PolicySpec) error
}
