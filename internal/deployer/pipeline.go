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

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/constants"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/metrics"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/pkg/api"
)

// PipelineConfig carries the invocation-level settings of the composed
// deployment pipeline.
type PipelineConfig struct {
	// ExecutionBudget is the caller's wall-clock budget; SafetyBuffer is
	// reserved headroom so the pipeline returns control before the host
	// terminates it. The readiness deadline is now + budget - buffer,
	// computed once at the start of the wait.
	ExecutionBudget time.Duration
	SafetyBuffer    time.Duration

	// Autoscaling defaults applied when the request leaves the
	// corresponding fields unset.
	VariantName string
	MinCapacity int
	MaxCapacity int
	TargetValue float64
}

// Pipeline composes the Reconciler, the readiness Poller and the
// autoscaling Registrar into the deployment state machine:
//
//	NotDeployed → Deploying → AwaitingReadiness → Ready → AutoscalingConfigured
//
// Failed is terminal; TimedOut is resumable: a later invocation picks the
// endpoint up again while the platform keeps converging in the background.
// The whole pipeline runs synchronously within one invocation; the only
// suspension point is the Poller's sleep-and-recheck loop.
type Pipeline struct {
	reconciler *Reconciler
	poller     *Poller
	registrar  *Registrar
	clock      PollClock
	cfg        PipelineConfig
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineClock replaces the clock used for deadline computation.
func WithPipelineClock(c PollClock) PipelineOption {
	return func(p *Pipeline) {
		p.clock = c
	}
}

// NewPipeline wires the three components together.
func NewPipeline(reconciler *Reconciler, poller *Poller, registrar *Registrar, cfg PipelineConfig, opts ...PipelineOption) (*Pipeline, error) {
	if reconciler == nil || poller == nil || registrar == nil {
		return nil, fmt.Errorf("reconciler, poller and registrar are all required")
	}
	if cfg.ExecutionBudget <= 0 {
		cfg.ExecutionBudget = constants.DefaultExecutionBudget
	}
	if cfg.SafetyBuffer < 0 || cfg.SafetyBuffer >= cfg.ExecutionBudget {
		return nil, fmt.Errorf("safety buffer %v leaves no room in execution budget %v",
			cfg.SafetyBuffer, cfg.ExecutionBudget)
	}
	if cfg.VariantName == "" {
		cfg.VariantName = constants.DefaultVariantName
	}
	p := &Pipeline{
		reconciler: reconciler,
		poller:     poller,
		registrar:  registrar,
		clock:      poller.clock,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run executes one deployment invocation end to end. Fatal errors are
// returned alongside a result describing where the state machine stopped;
// a timed-out wait is a non-error result so callers do not alert on slow
// convergence.
func (p *Pipeline) Run(ctx context.Context, req api.DeploymentRequest) (api.DeploymentResult, error) {
	invocationID := req.InvocationID
	if invocationID == "" {
		invocationID = uuid.NewString()
	}
	logger := ctrl.LoggerFrom(ctx).WithValues(
		"invocationID", invocationID, "endpoint", req.EndpointName)
	ctx = log.IntoContext(ctx, logger)

	result := api.DeploymentResult{
		InvocationID: invocationID,
		EndpointName: req.EndpointName,
		Phase:        api.PhaseNotDeployed,
	}

	minCapacity, maxCapacity, targetValue := p.capacityFor(req)

	logger.Info("Starting endpoint deployment",
		"model", req.ModelReference.PackageRef, "version", req.ModelReference.Version,
		"budget", p.cfg.ExecutionBudget.String())

	result.Phase = api.PhaseDeploying
	rec, err := p.reconciler.Reconcile(ctx, req.ModelReference, req.EndpointName,
		req.InstanceType, req.InitialInstanceCount)
	if err != nil {
		return p.fail(logger, result, err)
	}
	result.Action = rec.Action
	result.ConfigurationName = rec.ConfigurationName
	result.ServingModelName = rec.ServingModelName
	metrics.RecordReconciliation(req.EndpointName, rec.Action)

	// The deadline is computed once, from the budget this invocation was
	// given, not re-read from any ambient host state.
	waitStart := p.clock.Now()
	deadline := waitStart.Add(p.cfg.ExecutionBudget - p.cfg.SafetyBuffer)

	result.Phase = api.PhaseAwaitingReadiness
	outcome, err := p.poller.WaitUntilReady(ctx, req.EndpointName, deadline)
	if err != nil {
		return p.fail(logger, result, err)
	}
	if outcome == OutcomeTimedOut {
		result.Phase = api.PhaseTimedOut
		result.Outcome = api.OutcomeTimedOut
		metrics.RecordInvocation(api.OutcomeTimedOut)
		logger.Info("Deployment still converging at end of budget; resume on next invocation")
		return result, nil
	}

	result.Phase = api.PhaseReady
	metrics.ObserveConvergence(p.clock.Now().Sub(waitStart).Seconds())

	if err := p.registrar.RegisterAutoscaling(ctx, req.EndpointName, p.cfg.VariantName,
		minCapacity, maxCapacity, targetValue); err != nil {
		return p.fail(logger, result, err)
	}

	result.Phase = api.PhaseAutoscalingConfigured
	result.Outcome = api.OutcomeSucceeded
	metrics.RecordInvocation(api.OutcomeSucceeded)
	logger.Info("Endpoint deployed and autoscaling configured", "action", result.Action)
	return result, nil
}

// capacityFor merges the request's autoscaling fields with the configured
// defaults.
func (p *Pipeline) capacityFor(req api.DeploymentRequest) (minCapacity, maxCapacity int, targetValue float64) {
	minCapacity = req.MinCapacity
	if minCapacity == 0 {
		minCapacity = p.cfg.MinCapacity
	}
	maxCapacity = req.MaxCapacity
	if maxCapacity == 0 {
		maxCapacity = p.cfg.MaxCapacity
	}
	targetValue = req.TargetValue
	if targetValue == 0 {
		targetValue = p.cfg.TargetValue
	}
	return minCapacity, maxCapacity, targetValue
}

// fail finalizes a result for a fatal error: the state machine parks in
// Failed and the error kind is surfaced for the external scheduler to act
// on.
func (p *Pipeline) fail(logger logr.Logger, result api.DeploymentResult, err error) (api.DeploymentResult, error) {
	result.Phase = api.PhaseFailed
	result.Outcome = api.OutcomeFailed
	result.ErrorKind = api.KindOf(err)
	result.ErrorDetail = api.DetailOf(err)
	metrics.RecordFailure(result.EndpointName, result.ErrorKind)
	metrics.RecordInvocation(api.OutcomeFailed)
	logger.Error(err, "Deployment failed", "kind", string(result.ErrorKind))
	return result, err
}
