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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/controlplane"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/controlplane/fake"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/pkg/api"
)

var _ = Describe("Deployment pipeline", func() {
	var (
		cp       *fake.ControlPlane
		clk      *scriptedClock
		pipeline *Pipeline
		ctx      context.Context
		start    time.Time
	)

	newPipeline := func(cfg PipelineConfig) *Pipeline {
		reconciler, err := NewReconciler(cp, WithClock(clocktesting.NewFakeClock(start)))
		Expect(err).NotTo(HaveOccurred())
		poller, err := NewPoller(cp,
			WithPollClock(clk),
			WithPollInterval(30*time.Second),
			WithDescribeBackoff(fastBackoff),
		)
		Expect(err).NotTo(HaveOccurred())
		registrar, err := NewRegistrar(cp)
		Expect(err).NotTo(HaveOccurred())
		p, err := NewPipeline(reconciler, poller, registrar, cfg)
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	request := func() api.DeploymentRequest {
		return api.DeploymentRequest{
			InvocationID:         "inv-42",
			ModelReference:       api.ModelReference{PackageRef: "navigation", Version: "3"},
			EndpointName:         "ep-1",
			InstanceType:         "gpu.large",
			InitialInstanceCount: 1,
		}
	}

	BeforeEach(func() {
		cp = fake.New()
		start = time.Unix(1700000000, 0)
		clk = newScriptedClock(start)
		ctx = context.Background()
		pipeline = newPipeline(PipelineConfig{
			ExecutionBudget: 15 * time.Minute,
			SafetyBuffer:    time.Minute,
			MinCapacity:     1,
			MaxCapacity:     2,
			TargetValue:     10.0,
		})
	})

	It("walks a fresh endpoint through to autoscaling", func() {
		cp.ScriptStatuses(
			controlplane.EndpointState{Status: controlplane.StatusCreating},
			controlplane.EndpointState{Status: controlplane.StatusInService},
		)

		result, err := pipeline.Run(ctx, request())
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Outcome).To(Equal(api.OutcomeSucceeded))
		Expect(result.Phase).To(Equal(api.PhaseAutoscalingConfigured))
		Expect(result.Action).To(Equal(api.ActionCreated))
		Expect(result.InvocationID).To(Equal("inv-42"))
		Expect(result.ServingModelName).To(Equal("navigation-model-3"))

		Expect(cp.CallCount(fake.OpRegisterTarget)).To(Equal(1))
		Expect(cp.CallCount(fake.OpPutScalingPolicy)).To(Equal(1))

		policy, ok := cp.Policy("ep-1-scaling-policy")
		Expect(ok).To(BeTrue())
		Expect(policy.TargetValue).To(Equal(10.0))
	})

	It("assigns an invocation ID when the request carries none", func() {
		cp.ScriptStatuses(controlplane.EndpointState{Status: controlplane.StatusInService})

		req := request()
		req.InvocationID = ""
		result, err := pipeline.Run(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.InvocationID).NotTo(BeEmpty())
	})

	It("prefers the request's capacity bounds over the configured defaults", func() {
		cp.ScriptStatuses(controlplane.EndpointState{Status: controlplane.StatusInService})

		req := request()
		req.MinCapacity = 2
		req.MaxCapacity = 8
		req.TargetValue = 25.0
		_, err := pipeline.Run(ctx, req)
		Expect(err).NotTo(HaveOccurred())

		policy, ok := cp.Policy("ep-1-scaling-policy")
		Expect(ok).To(BeTrue())
		Expect(policy.TargetValue).To(Equal(25.0))
	})

	It("returns TimedOut without error and skips autoscaling", func() {
		cp.ScriptStatuses(controlplane.EndpointState{Status: controlplane.StatusCreating})

		result, err := pipeline.Run(ctx, request())
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Outcome).To(Equal(api.OutcomeTimedOut))
		Expect(result.Phase).To(Equal(api.PhaseTimedOut))
		Expect(result.Action).To(Equal(api.ActionCreated))
		Expect(cp.CallCount(fake.OpRegisterTarget)).To(BeZero())
		Expect(cp.CallCount(fake.OpPutScalingPolicy)).To(BeZero())
	})

	It("resumes a timed-out deployment on the next invocation", func() {
		cp.ScriptStatuses(controlplane.EndpointState{Status: controlplane.StatusCreating})

		first, err := pipeline.Run(ctx, request())
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Outcome).To(Equal(api.OutcomeTimedOut))

		// The endpoint finished converging in the meantime. The second
		// invocation finds nothing to change and completes the tail.
		cp.ScriptStatuses(controlplane.EndpointState{Status: controlplane.StatusInService})

		second, err := pipeline.Run(ctx, request())
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Outcome).To(Equal(api.OutcomeSucceeded))
		Expect(second.Action).To(Equal(api.ActionNoChangeNeeded))
		Expect(cp.CallCount(fake.OpRegisterTarget)).To(Equal(1))
	})

	It("fails the invocation when reconciliation is rejected", func() {
		cp.InjectError(fake.OpCreateConfiguration, &controlplane.APIError{
			Code: controlplane.CodeValidation, Message: "instance type not offered", HTTPStatus: 400,
		})

		result, err := pipeline.Run(ctx, request())
		Expect(err).To(HaveOccurred())

		Expect(result.Outcome).To(Equal(api.OutcomeFailed))
		Expect(result.Phase).To(Equal(api.PhaseFailed))
		Expect(result.ErrorKind).To(Equal(api.KindPlatformRejection))
		Expect(cp.CallCount(fake.OpDescribeEndpoint)).To(BeZero())
	})

	It("fails the invocation on a terminal endpoint status", func() {
		cp.ScriptStatuses(
			controlplane.EndpointState{Status: controlplane.StatusCreating},
			controlplane.EndpointState{Status: controlplane.StatusFailed, FailureReason: "insufficient capacity"},
		)

		result, err := pipeline.Run(ctx, request())
		Expect(err).To(HaveOccurred())

		Expect(result.Outcome).To(Equal(api.OutcomeFailed))
		Expect(result.ErrorKind).To(Equal(api.KindConvergenceFailure))
		Expect(result.ErrorDetail).To(Equal("insufficient capacity"))
		Expect(cp.CallCount(fake.OpRegisterTarget)).To(BeZero())
	})

	It("fails the invocation when autoscaling registration is rejected", func() {
		cp.ScriptStatuses(controlplane.EndpointState{Status: controlplane.StatusInService})
		cp.InjectError(fake.OpRegisterTarget, &controlplane.APIError{
			Code: controlplane.CodeValidation, Message: "unsupported dimension", HTTPStatus: 400,
		})

		result, err := pipeline.Run(ctx, request())
		Expect(err).To(HaveOccurred())

		Expect(result.Outcome).To(Equal(api.OutcomeFailed))
		Expect(result.Phase).To(Equal(api.PhaseFailed))
		Expect(result.ErrorKind).To(Equal(api.KindPlatformRejection))
	})

	It("rejects malformed requests before touching the control plane", func() {
		req := request()
		req.EndpointName = ""

		result, err := pipeline.Run(ctx, req)
		Expect(err).To(HaveOccurred())

		Expect(result.Outcome).To(Equal(api.OutcomeFailed))
		Expect(result.ErrorKind).To(Equal(api.KindMissingParameter))
		Expect(cp.CallCount(fake.OpCreateModel)).To(BeZero())
	})
})
