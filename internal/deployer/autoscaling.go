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

package deployer

import (
	"context"
	"fmt"
	"time"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/constants"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/controlplane"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/pkg/api"
)

// Registrar registers elastic capacity for a ready endpoint: a scalable
// target carrying the capacity bounds, then a target-tracking policy on
// the per-instance invocation load.
//
// Gating is the caller's job: the Registrar assumes the endpoint already
// passed the readiness gate and does not re-check its status. Registration
// is blind (no read of live capacity first), so it is safe to run on
// every deployment, at the cost of overwriting a manual capacity override.
type Registrar struct {
	client controlplane.AutoscalingClient

	scaleInCooldown  time.Duration
	scaleOutCooldown time.Duration
}

// RegistrarOption customizes a Registrar.
type RegistrarOption func(*Registrar)

// WithCooldowns sets the scale-in/scale-out cooldown windows.
func WithCooldowns(scaleIn, scaleOut time.Duration) RegistrarOption {
	return func(r *Registrar) {
		r.scaleInCooldown = scaleIn
		r.scaleOutCooldown = scaleOut
	}
}

// NewRegistrar creates a Registrar for the given autoscaling control plane.
func NewRegistrar(client controlplane.AutoscalingClient, opts ...RegistrarOption) (*Registrar, error) {
	if client == nil {
		return nil, fmt.Errorf("autoscaling client cannot be nil")
	}
	r := &Registrar{
		client:           client,
		scaleInCooldown:  constants.DefaultScaleInCooldown,
		scaleOutCooldown: constants.DefaultScaleOutCooldown,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RegisterAutoscaling registers the scalable target and scaling policy for
// an (endpoint, variant) pair. "Already configured" conflicts from either
// call are success: registration re-runs on every deployment of an
// endpoint and must never require manual cleanup.
func (r *Registrar) RegisterAutoscaling(ctx context.Context, endpointName, variantName string, minCapacity, maxCapacity int, targetValue float64) error {
	logger := ctrl.LoggerFrom(ctx).WithValues("endpoint", endpointName)

	if endpointName == "" {
		return api.NewDeploymentError(api.KindMissingParameter,
			"endpoint name cannot be empty", nil)
	}
	if variantName == "" {
		variantName = constants.DefaultVariantName
	}
	if minCapacity < 1 || maxCapacity < minCapacity {
		return api.NewDeploymentError(api.KindMissingParameter,
			fmt.Sprintf("invalid capacity bounds [%d, %d]", minCapacity, maxCapacity), nil)
	}
	if targetValue <= 0 {
		return api.NewDeploymentError(api.KindMissingParameter,
			fmt.Sprintf("target value must be positive, got %v", targetValue), nil)
	}

	resourceID := ScalingResourceID(endpointName, variantName)

	err := r.client.RegisterScalableTarget(ctx, resourceID, minCapacity, maxCapacity)
	switch {
	case err == nil:
		logger.Info("Registered scalable target", "resourceID", resourceID,
			"minCapacity", minCapacity, "maxCapacity", maxCapacity)
	case controlplane.IsConflict(err):
		logger.Info("Scalable target already registered", "resourceID", resourceID)
	default:
		return api.NewDeploymentError(api.KindPlatformRejection,
			fmt.Sprintf("registering scalable target %q", resourceID), err)
	}

	policy := controlplane.PolicySpec{
		PolicyName:       ScalingPolicyName(endpointName),
		ResourceID:       resourceID,
		TargetValue:      targetValue,
		ScaleInCooldown:  r.scaleInCooldown,
		ScaleOutCooldown: r.scaleOutCooldown,
	}
	err = r.client.PutScalingPolicy(ctx, policy)
	switch {
	case err == nil:
		logger.Info("Attached target-tracking scaling policy",
			"policy", policy.PolicyName, "targetValue", targetValue)
	case controlplane.IsConflict(err):
		logger.Info("Scaling policy already attached", "policy", policy.PolicyName)
	default:
		return api.NewDeploymentError(api.KindPlatformRejection,
			fmt.Sprintf("attaching scaling policy %q", policy.PolicyName), err)
	}

	return nil
}
