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

// Package config loads and validates the provisioner configuration.
// Precedence: flags > environment > policy file > defaults.
package config

import (
	"fmt"
	"time"

	"github.com/prometheus/common/model"

	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/constants"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/controlplane"
)

// ScalingConfig holds autoscaling defaults applied when a deployment
// request leaves the corresponding field unset. Durations use the
// Prometheus notation ("5m", "30s") in the policy file.
type ScalingConfig struct {
	VariantName      string         `yaml:"variantName,omitempty"`
	MinCapacity      int            `yaml:"minCapacity,omitempty"`
	MaxCapacity      int            `yaml:"maxCapacity,omitempty"`
	TargetValue      float64        `yaml:"targetValue,omitempty"`
	ScaleInCooldown  model.Duration `yaml:"scaleInCooldown,omitempty"`
	ScaleOutCooldown model.Duration `yaml:"scaleOutCooldown,omitempty"`
}

// ScaleInCooldownDuration returns the scale-in cooldown as a time.Duration.
func (s ScalingConfig) ScaleInCooldownDuration() time.Duration {
	return time.Duration(s.ScaleInCooldown)
}

// ScaleOutCooldownDuration returns the scale-out cooldown as a time.Duration.
func (s ScalingConfig) ScaleOutCooldownDuration() time.Duration {
	return time.Duration(s.ScaleOutCooldown)
}

// RolloutConfig shapes in-place endpoint updates.
type RolloutConfig struct {
	MaxBatchPercent      int            `yaml:"maxBatchPercent,omitempty"`
	WaitInterval         model.Duration `yaml:"waitInterval,omitempty"`
	RollbackBatchPercent int            `yaml:"rollbackBatchPercent,omitempty"`
	MaxExecutionTimeout  model.Duration `yaml:"maxExecutionTimeout,omitempty"`
}

// PolicyFile is the YAML shape of the optional policy file.
type PolicyFile struct {
	Scaling ScalingConfig `yaml:"scaling,omitempty"`
	Rollout RolloutConfig `yaml:"rollout,omitempty"`
}

// Config is the complete provisioner configuration.
type Config struct {
	// ControlPlaneURL is the base URL of the control plane's HTTP API.
	// Required.
	ControlPlaneURL string

	// RequestTimeout bounds individual control-plane requests.
	RequestTimeout time.Duration

	// PollInterval between endpoint status queries.
	PollInterval time.Duration

	// ExecutionBudget is the wall-clock budget of one invocation.
	ExecutionBudget time.Duration

	// SafetyBuffer is subtracted from the budget when computing the
	// polling deadline, so control returns before the host kills the
	// invocation.
	SafetyBuffer time.Duration

	// PolicyFilePath points at an optional YAML policy file overriding
	// Scaling and Rollout.
	PolicyFilePath string

	Scaling ScalingConfig
	Rollout RolloutConfig

	// PushGatewayURL receives end-of-run metrics when set.
	PushGatewayURL string
	MetricsJob     string

	DevLogging bool
	Verbosity  int
}

// Default returns the configuration with all defaults applied.
func Default() *Config {
	return &Config{
		RequestTimeout:  30 * time.Second,
		PollInterval:    constants.DefaultPollInterval,
		ExecutionBudget: constants.DefaultExecutionBudget,
		SafetyBuffer:    constants.DefaultSafetyBuffer,
		Scaling: ScalingConfig{
			VariantName:      constants.DefaultVariantName,
			MinCapacity:      constants.DefaultMinCapacity,
			MaxCapacity:      constants.DefaultMaxCapacity,
			TargetValue:      constants.DefaultTargetValue,
			ScaleInCooldown:  model.Duration(constants.DefaultScaleInCooldown),
			ScaleOutCooldown: model.Duration(constants.DefaultScaleOutCooldown),
		},
		Rollout: RolloutConfig{
			MaxBatchPercent:      constants.DefaultRolloutMaxBatchPercent,
			WaitInterval:         model.Duration(constants.DefaultRolloutWaitInterval),
			RollbackBatchPercent: constants.DefaultRolloutRollbackBatchPercent,
			MaxExecutionTimeout:  model.Duration(constants.DefaultRolloutMaxExecutionTimeout),
		},
		MetricsJob: "endpoint-provisioner",
	}
}

// Validate checks the configuration for values that would make an
// invocation misbehave. Fail-fast: a broken configuration never reaches
// the control plane.
func Validate(cfg *Config) error {
	if cfg.ControlPlaneURL == "" {
		return fmt.Errorf("control plane URL is required")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", cfg.PollInterval)
	}
	if cfg.ExecutionBudget <= 0 {
		return fmt.Errorf("execution budget must be positive, got %v", cfg.ExecutionBudget)
	}
	if cfg.SafetyBuffer < 0 {
		return fmt.Errorf("safety buffer cannot be negative, got %v", cfg.SafetyBuffer)
	}
	if cfg.SafetyBuffer >= cfg.ExecutionBudget {
		return fmt.Errorf("safety buffer %v leaves no room in execution budget %v",
			cfg.SafetyBuffer, cfg.ExecutionBudget)
	}
	if cfg.Scaling.MinCapacity < 1 {
		return fmt.Errorf("minimum capacity must be at least 1, got %d", cfg.Scaling.MinCapacity)
	}
	if cfg.Scaling.MaxCapacity < cfg.Scaling.MinCapacity {
		return fmt.Errorf("maximum capacity %d below minimum capacity %d",
			cfg.Scaling.MaxCapacity, cfg.Scaling.MinCapacity)
	}
	if cfg.Scaling.TargetValue <= 0 {
		return fmt.Errorf("scaling target value must be positive, got %v", cfg.Scaling.TargetValue)
	}
	if cfg.Rollout.MaxBatchPercent < 1 || cfg.Rollout.MaxBatchPercent > 100 {
		return fmt.Errorf("rollout batch percent must be in [1, 100], got %d", cfg.Rollout.MaxBatchPercent)
	}
	return nil
}

// RolloutPolicy converts the rollout configuration to the control-plane
// request shape.
func (c *Config) RolloutPolicy() controlplane.RolloutPolicy {
	return controlplane.RolloutPolicy{
		MaxBatchPercent:      c.Rollout.MaxBatchPercent,
		WaitInterval:         time.Duration(c.Rollout.WaitInterval),
		RollbackBatchPercent: c.Rollout.RollbackBatchPercent,
		MaxExecutionTimeout:  time.Duration(c.Rollout.MaxExecutionTimeout),
	}
}
