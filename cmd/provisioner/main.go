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

// The provisioner binary runs one deployment invocation: it reads a
// structured deployment request, reconciles the endpoint, waits for
// readiness within the execution budget and registers autoscaling.
//
// Exit codes: 0 for success and for a timed-out (resumable) wait, 1 for a
// fatal deployment error, 2 for invalid invocation input.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/config"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/controlplane/httpapi"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/deployer"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/logging"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/metrics"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/pkg/api"
)

const (
	exitOK           = 0
	exitFatal        = 1
	exitInvalidInput = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("provisioner", flag.ExitOnError)
	requestPath := fs.String("request", "-", "Path to the deployment request JSON, or - for stdin")
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return exitInvalidInput
	}

	logger := logging.NewLogger(cfg.DevLogging, cfg.Verbosity)
	logging.SetGlobal(logger)
	ctx := log.IntoContext(context.Background(), logger)

	req, err := readRequest(*requestPath)
	if err != nil {
		logger.Error(err, "Cannot read deployment request")
		return exitInvalidInput
	}

	registry := prometheus.NewRegistry()
	if err := metrics.InitMetrics(registry); err != nil {
		logger.Error(err, "Cannot initialize metrics")
		return exitFatal
	}

	client, err := httpapi.NewClient(cfg.ControlPlaneURL, httpapi.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		logger.Error(err, "Cannot build control plane client")
		return exitInvalidInput
	}

	pipeline, err := buildPipeline(client, cfg)
	if err != nil {
		logger.Error(err, "Cannot assemble deployment pipeline")
		return exitFatal
	}

	result, runErr := pipeline.Run(ctx, req)

	if err := metrics.Push(cfg.PushGatewayURL, cfg.MetricsJob, registry); err != nil {
		// Metrics delivery must never change a deployment outcome.
		logger.Error(err, "Failed to push metrics")
	}

	if err := writeResult(os.Stdout, result); err != nil {
		logger.Error(err, "Failed to write result")
		return exitFatal
	}

	switch {
	case runErr == nil:
		return exitOK
	case api.KindOf(runErr) == api.KindMissingParameter,
		api.KindOf(runErr) == api.KindInvalidModelReference:
		return exitInvalidInput
	default:
		return exitFatal
	}
}

func buildPipeline(client *httpapi.Client, cfg *config.Config) (*deployer.Pipeline, error) {
	reconciler, err := deployer.NewReconciler(client,
		deployer.WithRolloutPolicy(cfg.RolloutPolicy()))
	if err != nil {
		return nil, err
	}
	poller, err := deployer.NewPoller(client,
		deployer.WithPollInterval(cfg.PollInterval))
	if err != nil {
		return nil, err
	}
	registrar, err := deployer.NewRegistrar(client,
		deployer.WithCooldowns(cfg.Scaling.ScaleInCooldownDuration(), cfg.Scaling.ScaleOutCooldownDuration()))
	if err != nil {
		return nil, err
	}
	return deployer.NewPipeline(reconciler, poller, registrar, deployer.PipelineConfig{
		ExecutionBudget: cfg.ExecutionBudget,
		SafetyBuffer:    cfg.SafetyBuffer,
		VariantName:     cfg.Scaling.VariantName,
		MinCapacity:     cfg.Scaling.MinCapacity,
		MaxCapacity:     cfg.Scaling.MaxCapacity,
		TargetValue:     cfg.Scaling.TargetValue,
	})
}

func readRequest(path string) (api.DeploymentRequest, error) {
	var reader io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return api.DeploymentRequest{}, fmt.Errorf("failed to open request file: %w", err)
		}
		defer func() { _ = f.Close() }()
		reader = f
	}

	var req api.DeploymentRequest
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return api.DeploymentRequest{}, fmt.Errorf("failed to decode deployment request: %w", err)
	}
	return req, nil
}

func writeResult(w io.Writer, result api.DeploymentResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
