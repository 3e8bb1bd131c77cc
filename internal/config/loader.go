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

package config

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// flagBindings maps viper keys (= env var names) to pflag names.
var flagBindings = map[string]string{
	"CONTROL_PLANE_URL": "control-plane-url",
	"REQUEST_TIMEOUT":   "request-timeout",
	"POLL_INTERVAL":     "poll-interval",
	"EXECUTION_BUDGET":  "execution-budget",
	"SAFETY_BUFFER":     "safety-buffer",
	"POLICY_FILE":       "policy-file",
	"PUSH_GATEWAY_URL":  "push-gateway-url",
	"METRICS_JOB":       "metrics-job",
	"DEV_LOGGING":       "dev-logging",
	"V":                 "v",
}

// RegisterFlags declares the provisioner's operational flags on fs.
func RegisterFlags(fs *flag.FlagSet) {
	d := Default()
	fs.String("control-plane-url", "", "Base URL of the serving control plane HTTP API")
	fs.Duration("request-timeout", d.RequestTimeout, "Timeout for individual control plane requests")
	fs.Duration("poll-interval", d.PollInterval, "Interval between endpoint status queries")
	fs.Duration("execution-budget", d.ExecutionBudget, "Wall-clock budget for the whole invocation")
	fs.Duration("safety-buffer", d.SafetyBuffer, "Budget headroom reserved for returning control")
	fs.String("policy-file", "", "Path to a YAML file with scaling and rollout policy overrides")
	fs.String("push-gateway-url", "", "Push gateway to deliver end-of-run metrics to (disabled when empty)")
	fs.String("metrics-job", d.MetricsJob, "Job label used when pushing metrics")
	fs.Bool("dev-logging", false, "Use the human-readable development log encoder")
	fs.Int("v", 0, "Log verbosity level")
}

// Load builds the configuration with precedence flags > env > policy file >
// defaults and validates it (fail-fast). flagSet may be nil in tests that
// set no CLI flags.
func Load(flagSet *flag.FlagSet) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetDefault("CONTROL_PLANE_URL", "")
	v.SetDefault("REQUEST_TIMEOUT", cfg.RequestTimeout)
	v.SetDefault("POLL_INTERVAL", cfg.PollInterval)
	v.SetDefault("EXECUTION_BUDGET", cfg.ExecutionBudget)
	v.SetDefault("SAFETY_BUFFER", cfg.SafetyBuffer)
	v.SetDefault("POLICY_FILE", "")
	v.SetDefault("PUSH_GATEWAY_URL", "")
	v.SetDefault("METRICS_JOB", cfg.MetricsJob)
	v.SetDefault("DEV_LOGGING", false)
	v.SetDefault("V", 0)
	v.AutomaticEnv()

	if flagSet != nil {
		for key, name := range flagBindings {
			if f := flagSet.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %q: %w", name, err)
				}
			}
		}
	}

	cfg.ControlPlaneURL = v.GetString("CONTROL_PLANE_URL")
	cfg.RequestTimeout = v.GetDuration("REQUEST_TIMEOUT")
	cfg.PollInterval = v.GetDuration("POLL_INTERVAL")
	cfg.ExecutionBudget = v.GetDuration("EXECUTION_BUDGET")
	cfg.SafetyBuffer = v.GetDuration("SAFETY_BUFFER")
	cfg.PolicyFilePath = v.GetString("POLICY_FILE")
	cfg.PushGatewayURL = v.GetString("PUSH_GATEWAY_URL")
	cfg.MetricsJob = v.GetString("METRICS_JOB")
	cfg.DevLogging = v.GetBool("DEV_LOGGING")
	cfg.Verbosity = v.GetInt("V")

	if cfg.PolicyFilePath != "" {
		if err := applyPolicyFile(cfg, cfg.PolicyFilePath); err != nil {
			return nil, err
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// applyPolicyFile overlays scaling and rollout settings from a YAML file.
// Zero values in the file keep the defaults.
func applyPolicyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read policy file %q: %w", path, err)
	}
	var pf PolicyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return fmt.Errorf("failed to parse policy file %q: %w", path, err)
	}

	if pf.Scaling.VariantName != "" {
		cfg.Scaling.VariantName = pf.Scaling.VariantName
	}
	if pf.Scaling.MinCapacity != 0 {
		cfg.Scaling.MinCapacity = pf.Scaling.MinCapacity
	}
	if pf.Scaling.MaxCapacity != 0 {
		cfg.Scaling.MaxCapacity = pf.Scaling.MaxCapacity
	}
	if pf.Scaling.TargetValue != 0 {
		cfg.Scaling.TargetValue = pf.Scaling.TargetValue
	}
	if pf.Scaling.ScaleInCooldown != 0 {
		cfg.Scaling.ScaleInCooldown = pf.Scaling.ScaleInCooldown
	}
	if pf.Scaling.ScaleOutCooldown != 0 {
		cfg.Scaling.ScaleOutCooldown = pf.Scaling.ScaleOutCooldown
	}

	if pf.Rollout.MaxBatchPercent != 0 {
		cfg.Rollout.MaxBatchPercent = pf.Rollout.MaxBatchPercent
	}
	if pf.Rollout.WaitInterval != 0 {
		cfg.Rollout.WaitInterval = pf.Rollout.WaitInterval
	}
	if pf.Rollout.RollbackBatchPercent != 0 {
		cfg.Rollout.RollbackBatchPercent = pf.Rollout.RollbackBatchPercent
	}
	if pf.Rollout.MaxExecutionTimeout != 0 {
		cfg.Rollout.MaxExecutionTimeout = pf.Rollout.MaxExecutionTimeout
	}
	return nil
}
