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

package e2eemulated

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/controlplane/httpapi"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/deployer"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/pkg/api"
)

// newPipeline assembles a production pipeline against the emulator, with a
// short poll interval so convergence takes milliseconds instead of minutes.
func newPipeline(budget time.Duration) *deployer.Pipeline {
	client, err := httpapi.NewClient(controlPlaneURL())
	Expect(err).NotTo(HaveOccurred())

	reconciler, err := deployer.NewReconciler(client)
	Expect(err).NotTo(HaveOccurred())
	poller, err := deployer.NewPoller(client, deployer.WithPollInterval(10*time.Millisecond))
	Expect(err).NotTo(HaveOccurred())
	registrar, err := deployer.NewRegistrar(client)
	Expect(err).NotTo(HaveOccurred())

	pipeline, err := deployer.NewPipeline(reconciler, poller, registrar, deployer.PipelineConfig{
		ExecutionBudget: budget,
		SafetyBuffer:    budget / 10,
		MinCapacity:     1,
		MaxCapacity:     4,
		TargetValue:     10.0,
	})
	Expect(err).NotTo(HaveOccurred())
	return pipeline
}

var _ = Describe("Endpoint deployment against the emulated control plane", Ordered, func() {
	var pipeline *deployer.Pipeline

	request := func(endpoint, version string) api.DeploymentRequest {
		return api.DeploymentRequest{
			ModelReference:       api.ModelReference{PackageRef: "model-registry/navigation", Version: version},
			EndpointName:         endpoint,
			InstanceType:         "gpu.large",
			InitialInstanceCount: 1,
		}
	}

	BeforeAll(func() {
		pipeline = newPipeline(30 * time.Second)
	})

	It("creates a fresh endpoint and registers autoscaling", func() {
		result, err := pipeline.Run(context.Background(), request("nav-endpoint", "1"))
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Outcome).To(Equal(api.OutcomeSucceeded))
		Expect(result.Phase).To(Equal(api.PhaseAutoscalingConfigured))
		Expect(result.Action).To(Equal(api.ActionCreated))
		Expect(result.ServingModelName).To(Equal("navigation-model-1"))

		policy, ok := emulator.policy("nav-endpoint-scaling-policy")
		Expect(ok).To(BeTrue())
		Expect(policy.ResourceID).To(Equal("endpoint/nav-endpoint/variant/AllTraffic"))
		Expect(policy.TargetValue).To(Equal(10.0))
	})

	It("redeploys the same version without touching the endpoint", func() {
		result, err := pipeline.Run(context.Background(), request("nav-endpoint", "1"))
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Outcome).To(Equal(api.OutcomeSucceeded))
		Expect(result.Action).To(Equal(api.ActionNoChangeNeeded))
	})

	It("rolls the endpoint forward to a new model version", func() {
		before := emulator.endpointConfig("nav-endpoint")

		result, err := pipeline.Run(context.Background(), request("nav-endpoint", "2"))
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Outcome).To(Equal(api.OutcomeSucceeded))
		Expect(result.Action).To(Equal(api.ActionUpdated))
		Expect(result.ServingModelName).To(Equal("navigation-model-2"))
		Expect(emulator.endpointConfig("nav-endpoint")).NotTo(Equal(before))
	})

	It("surfaces a terminal convergence failure with the platform's reason", func() {
		failNextConvergence("insufficient accelerator capacity")

		result, err := pipeline.Run(context.Background(), request("doomed-endpoint", "1"))
		Expect(err).To(HaveOccurred())

		Expect(result.Outcome).To(Equal(api.OutcomeFailed))
		Expect(result.Phase).To(Equal(api.PhaseFailed))
		Expect(result.ErrorKind).To(Equal(api.KindConvergenceFailure))
		Expect(result.ErrorDetail).To(Equal("insufficient accelerator capacity"))
	})
})
