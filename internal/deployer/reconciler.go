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

	"k8s.io/utils/clock"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/constants"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/controlplane"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/pkg/api"
)

// ReconciliationResult reports what one reconciliation did.
type ReconciliationResult struct {
	EndpointName string
	Action       api.Action

	// ConfigurationName created during this reconciliation. Set even for
	// ActionNoChangeNeeded: the superseded configuration stays behind as
	// accepted orphaned state.
	ConfigurationName string

	ServingModelName string

	// Status of the endpoint as of the issued request. The reconciler does
	// not wait for convergence; readiness is the Poller's concern.
	Status controlplane.EndpointStatus
}

// Reconciler drives an endpoint toward a desired model version and sizing.
// It is pure request/response: every call issues the create/update requests
// and returns immediately, leaving convergence to the Poller.
type Reconciler struct {
	client  controlplane.Client
	clock   clock.PassiveClock
	rollout controlplane.RolloutPolicy

	variantName   string
	variantWeight float64
}

// ReconcilerOption customizes a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithClock replaces the wall clock used for configuration name tokens.
func WithClock(c clock.PassiveClock) ReconcilerOption {
	return func(r *Reconciler) {
		r.clock = c
	}
}

// WithRolloutPolicy sets the rolling-update policy applied on endpoint
// updates.
func WithRolloutPolicy(p controlplane.RolloutPolicy) ReconcilerOption {
	return func(r *Reconciler) {
		r.rollout = p
	}
}

// NewReconciler creates a Reconciler talking to the given control plane.
func NewReconciler(client controlplane.Client, opts ...ReconcilerOption) (*Reconciler, error) {
	if client == nil {
		return nil, fmt.Errorf("control plane client cannot be nil")
	}
	r := &Reconciler{
		client: client,
		clock:  clock.RealClock{},
		rollout: controlplane.RolloutPolicy{
			MaxBatchPercent:      constants.DefaultRolloutMaxBatchPercent,
			WaitInterval:         constants.DefaultRolloutWaitInterval,
			RollbackBatchPercent: constants.DefaultRolloutRollbackBatchPercent,
			MaxExecutionTimeout:  constants.DefaultRolloutMaxExecutionTimeout,
		},
		variantName:   constants.DefaultVariantName,
		variantWeight: constants.DefaultVariantWeight,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Reconcile ensures a serving configuration for modelRef exists and that
// endpointName serves it. An existing endpoint is updated in place; an
// endpoint already serving the requested model version and sizing is left
// alone. Conflicts from the control plane are the expected idempotent
// branches, every other rejection is fatal and propagates.
func (r *Reconciler) Reconcile(ctx context.Context, modelRef api.ModelReference, endpointName, instanceType string, initialCount int) (ReconciliationResult, error) {
	logger := ctrl.LoggerFrom(ctx).WithValues("endpoint", endpointName)

	if endpointName == "" {
		return ReconciliationResult{}, api.NewDeploymentError(api.KindMissingParameter,
			"endpoint name cannot be empty", nil)
	}
	if instanceType == "" {
		return ReconciliationResult{}, api.NewDeploymentError(api.KindMissingParameter,
			"instance type cannot be empty", nil)
	}
	if initialCount < 1 {
		return ReconciliationResult{}, api.NewDeploymentError(api.KindMissingParameter,
			fmt.Sprintf("initial instance count must be at least 1, got %d", initialCount), nil)
	}

	modelName, err := ServingModelName(modelRef)
	if err != nil {
		return ReconciliationResult{}, err
	}

	// The model handle is content-addressed by version, so a conflict here
	// means this model version was already registered. Expected on every
	// redeploy of the same version.
	if err := r.client.CreateModel(ctx, modelName, modelRef.PackageRef); err != nil {
		if !controlplane.IsConflict(err) {
			return ReconciliationResult{}, api.NewDeploymentError(api.KindPlatformRejection,
				fmt.Sprintf("creating serving model %q", modelName), err)
		}
		logger.V(1).Info("Serving model already registered", "model", modelName)
	} else {
		logger.Info("Registered serving model", "model", modelName)
	}

	configName := ConfigurationName(endpointName, r.clock.Now())
	cfg := controlplane.ConfigurationSpec{
		Name:                 configName,
		ModelName:            modelName,
		InstanceType:         instanceType,
		InitialInstanceCount: initialCount,
		VariantName:          r.variantName,
		VariantWeight:        r.variantWeight,
	}
	// The name is fresh, so this create is expected to succeed. Tolerate a
	// conflict anyway (two invocations within the same token granularity
	// produce identical specs), everything else is fatal.
	if err := r.client.CreateConfiguration(ctx, cfg); err != nil && !controlplane.IsConflict(err) {
		return ReconciliationResult{}, api.NewDeploymentError(api.KindPlatformRejection,
			fmt.Sprintf("creating endpoint configuration %q", configName), err)
	}
	logger.Info("Created endpoint configuration", "configuration", configName, "model", modelName)

	result := ReconciliationResult{
		EndpointName:      endpointName,
		ConfigurationName: configName,
		ServingModelName:  modelName,
	}

	err = r.client.CreateEndpoint(ctx, endpointName, configName)
	switch {
	case err == nil:
		logger.Info("Created endpoint", "configuration", configName)
		result.Action = api.ActionCreated
		result.Status = controlplane.StatusCreating
		return result, nil

	case controlplane.IsConflict(err):
		return r.reconcileExisting(ctx, result, cfg)

	default:
		return ReconciliationResult{}, api.NewDeploymentError(api.KindPlatformRejection,
			fmt.Sprintf("creating endpoint %q", endpointName), err)
	}
}

// reconcileExisting handles the create-conflict branch: the endpoint name
// is taken, so either the live binding already matches the desired model
// and sizing, or the endpoint is re-pointed to the new configuration.
func (r *Reconciler) reconcileExisting(ctx context.Context, result ReconciliationResult, desired controlplane.ConfigurationSpec) (ReconciliationResult, error) {
	logger := ctrl.LoggerFrom(ctx).WithValues("endpoint", result.EndpointName)

	state, err := r.client.DescribeEndpoint(ctx, result.EndpointName)
	if err != nil {
		return ReconciliationResult{}, api.NewDeploymentError(api.KindPlatformRejection,
			fmt.Sprintf("describing existing endpoint %q", result.EndpointName), err)
	}

	if r.upToDate(ctx, state.ConfigName, desired) {
		logger.Info("Endpoint already serves the requested model version and sizing",
			"configuration", state.ConfigName, "status", state.Status)
		result.Action = api.ActionNoChangeNeeded
		result.Status = state.Status
		return result, nil
	}

	if err := r.client.UpdateEndpoint(ctx, result.EndpointName, result.ConfigurationName, r.rollout); err != nil {
		return ReconciliationResult{}, api.NewDeploymentError(api.KindPlatformRejection,
			fmt.Sprintf("updating endpoint %q to configuration %q", result.EndpointName, result.ConfigurationName), err)
	}
	logger.Info("Updated endpoint", "previousConfiguration", state.ConfigName,
		"configuration", result.ConfigurationName)
	result.Action = api.ActionUpdated
	result.Status = controlplane.StatusUpdating
	return result, nil
}

// upToDate reports whether the endpoint's live configuration already binds
// the desired model and sizing. Configuration names always differ (fresh
// token per reconciliation), so the comparison reads the bound spec.
// Any describe failure counts as "not up to date": updating in place is
// idempotent where skipping an update is not.
func (r *Reconciler) upToDate(ctx context.Context, boundConfig string, desired controlplane.ConfigurationSpec) bool {
	if boundConfig == "" {
		return false
	}
	current, err := r.client.DescribeConfiguration(ctx, boundConfig)
	if err != nil {
		ctrl.LoggerFrom(ctx).V(1).Info("Cannot describe bound configuration, assuming update is needed",
			"configuration", boundConfig, "error", err.Error())
		return false
	}
	return current.ModelName == desired.ModelName &&
		current.InstanceType == desired.InstanceType &&
		current.InitialInstanceCount == desired.InitialInstanceCount
}
