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

// Package fake provides an in-memory, scriptable control plane for unit
// tests. It counts calls per operation, honors injected errors and plays
// back scripted endpoint status sequences.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/controlplane"
)

// Operation names used for call counting and error injection.
const (
	OpCreateModel           = "CreateModel"
	OpCreateConfiguration   = "CreateConfiguration"
	OpDescribeConfiguration = "DescribeConfiguration"
	OpCreateEndpoint        = "CreateEndpoint"
	OpUpdateEndpoint        = "UpdateEndpoint"
	OpDescribeEndpoint      = "DescribeEndpoint"
	OpRegisterTarget        = "RegisterScalableTarget"
	OpPutScalingPolicy      = "PutScalingPolicy"
)

type target struct {
	min, max int
}

// ControlPlane is a fake implementation of controlplane.Client and
// controlplane.AutoscalingClient.
//
// Behavior mirrors the real platform where the provisioner depends on it:
// creating an existing resource yields a structured conflict, describing a
// missing one yields not-found. Everything else is plain bookkeeping.
type ControlPlane struct {
	mu sync.Mutex

	models         map[string]string
	configurations map[string]controlplane.ConfigurationSpec
	endpoints      map[string]string
	targets        map[string]target
	policies       map[string]controlplane.PolicySpec

	// statusScript is played back by DescribeEndpoint, one entry per call,
	// the last entry repeating once the script is exhausted.
	statusScript []controlplane.EndpointState
	scriptPos    int

	// errs holds injected errors per operation, consumed one per call.
	errs map[string][]error

	calls map[string]int
}

// New returns an empty fake control plane.
func New() *ControlPlane {
	return &ControlPlane{
		models:         map[string]string{},
		configurations: map[string]controlplane.ConfigurationSpec{},
		endpoints:      map[string]string{},
		targets:        map[string]target{},
		policies:       map[string]controlplane.PolicySpec{},
		errs:           map[string][]error{},
		calls:          map[string]int{},
	}
}

// InjectError queues errors to be returned by the next calls of op, in order.
func (f *ControlPlane) InjectError(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = append(f.errs[op], errs...)
}

// ScriptStatuses sets the status sequence played back by DescribeEndpoint.
func (f *ControlPlane) ScriptStatuses(states ...controlplane.EndpointState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusScript = states
	f.scriptPos = 0
}

// SetEndpoint seeds an existing endpoint bound to configName.
func (f *ControlPlane) SetEndpoint(name, configName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endpoints[name] = configName
}

// SetConfiguration seeds an existing configuration.
func (f *ControlPlane) SetConfiguration(cfg controlplane.ConfigurationSpec) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configurations[cfg.Name] = cfg
}

// SetTarget seeds an already-registered scalable target.
func (f *ControlPlane) SetTarget(resourceID string, minCapacity, maxCapacity int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets[resourceID] = target{min: minCapacity, max: maxCapacity}
}

// CallCount returns how many times op was invoked.
func (f *ControlPlane) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// EndpointConfig returns the configuration an endpoint is bound to.
func (f *ControlPlane) EndpointConfig(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.endpoints[name]
	return cfg, ok
}

// Policy returns a stored scaling policy by name.
func (f *ControlPlane) Policy(name string) (controlplane.PolicySpec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.policies[name]
	return p, ok
}

// record bumps the call counter and pops an injected error, if any.
// Callers must hold f.mu.
func (f *ControlPlane) record(op string) error {
	f.calls[op]++
	if queue := f.errs[op]; len(queue) > 0 {
		err := queue[0]
		f.errs[op] = queue[1:]
		return err
	}
	return nil
}

func conflict(kind, name string) error {
	return &controlplane.APIError{
		Code:       controlplane.CodeConflict,
		Message:    fmt.Sprintf("%s %q already exists", kind, name),
		HTTPStatus: 409,
	}
}

func notFound(kind, name string) error {
	return &controlplane.APIError{
		Code:       controlplane.CodeNotFound,
		Message:    fmt.Sprintf("%s %q not found", kind, name),
		HTTPStatus: 404,
	}
}

func (f *ControlPlane) CreateModel(_ context.Context, name, packageRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpCreateModel); err != nil {
		return err
	}
	if _, ok := f.models[name]; ok {
		return conflict("model", name)
	}
	f.models[name] = packageRef
	return nil
}

func (f *ControlPlane) CreateConfiguration(_ context.Context, cfg controlplane.ConfigurationSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpCreateConfiguration); err != nil {
		return err
	}
	if _, ok := f.configurations[cfg.Name]; ok {
		return conflict("endpoint configuration", cfg.Name)
	}
	f.configurations[cfg.Name] = cfg
	return nil
}

func (f *ControlPlane) DescribeConfiguration(_ context.Context, name string) (controlplane.ConfigurationSpec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpDescribeConfiguration); err != nil {
		return controlplane.ConfigurationSpec{}, err
	}
	cfg, ok := f.configurations[name]
	if !ok {
		return controlplane.ConfigurationSpec{}, notFound("endpoint configuration", name)
	}
	return cfg, nil
}

func (f *ControlPlane) CreateEndpoint(_ context.Context, name, configName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpCreateEndpoint); err != nil {
		return err
	}
	if _, ok := f.endpoints[name]; ok {
		return conflict("endpoint", name)
	}
	f.endpoints[name] = configName
	return nil
}

func (f *ControlPlane) UpdateEndpoint(_ context.Context, name, configName string, _ controlplane.RolloutPolicy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpUpdateEndpoint); err != nil {
		return err
	}
	if _, ok := f.endpoints[name]; !ok {
		return notFound("endpoint", name)
	}
	f.endpoints[name] = configName
	return nil
}

func (f *ControlPlane) DescribeEndpoint(_ context.Context, name string) (controlplane.EndpointState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpDescribeEndpoint); err != nil {
		return controlplane.EndpointState{}, err
	}
	if len(f.statusScript) > 0 {
		state := f.statusScript[f.scriptPos]
		if f.scriptPos < len(f.statusScript)-1 {
			f.scriptPos++
		}
		if state.ConfigName == "" {
			state.ConfigName = f.endpoints[name]
		}
		return state, nil
	}
	configName, ok := f.endpoints[name]
	if !ok {
		return controlplane.EndpointState{}, notFound("endpoint", name)
	}
	return controlplane.EndpointState{Status: controlplane.StatusInService, ConfigName: configName}, nil
}

func (f *ControlPlane) RegisterScalableTarget(_ context.Context, resourceID string, minCapacity, maxCapacity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpRegisterTarget); err != nil {
		return err
	}
	if _, ok := f.targets[resourceID]; ok {
		return conflict("scalable target", resourceID)
	}
	f.targets[resourceID] = target{min: minCapacity, max: maxCapacity}
	return nil
}

func (f *ControlPlane) PutScalingPolicy(_ context.Context, policy controlplane.PolicySpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpPutScalingPolicy); err != nil {
		return err
	}
	f.policies[policy.PolicyName] = policy
	return nil
}
