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

// Package e2eemulated exercises the provisioner end to end against an
// in-process control plane emulator speaking the same HTTP JSON API as the
// real platform. Endpoints settle asynchronously: a created or updated
// endpoint stays pending for a configurable number of status queries
// before reporting InService, which makes the poller do real work.
package e2eemulated

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/controlplane"
)

// settleAfterQueries is how many status queries an endpoint stays pending
// before the emulator reports it InService.
const settleAfterQueries = 2

type emulatedEndpoint struct {
	status        controlplane.EndpointStatus
	configName    string
	failureReason string
	pendingReads  int
}

type controlPlaneEmulator struct {
	mu sync.Mutex

	models    map[string]string
	configs   map[string]controlplane.ConfigurationSpec
	endpoints map[string]*emulatedEndpoint
	targets   map[string]struct{}
	policies  map[string]controlplane.PolicySpec

	// failNext makes the next created or updated endpoint converge to
	// Failed with the given reason instead of InService.
	failNext string

	server *httptest.Server
}

var emulator *controlPlaneEmulator

func startEmulatedControlPlane() {
	emulator = &controlPlaneEmulator{
		models:    map[string]string{},
		configs:   map[string]controlplane.ConfigurationSpec{},
		endpoints: map[string]*emulatedEndpoint{},
		targets:   map[string]struct{}{},
		policies:  map[string]controlplane.PolicySpec{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/models", emulator.handleCreateModel)
	mux.HandleFunc("/endpoint-configs", emulator.handleCreateConfig)
	mux.HandleFunc("/endpoint-configs/", emulator.handleDescribeConfig)
	mux.HandleFunc("/endpoints", emulator.handleCreateEndpoint)
	mux.HandleFunc("/endpoints/", emulator.handleEndpointByName)
	mux.HandleFunc("/scalable-targets", emulator.handleRegisterTarget)
	mux.HandleFunc("/scaling-policies", emulator.handlePutPolicy)
	emulator.server = httptest.NewServer(mux)
}

func stopEmulatedControlPlane() {
	if emulator != nil && emulator.server != nil {
		emulator.server.Close()
	}
}

func controlPlaneURL() string {
	return emulator.server.URL
}

// failNextConvergence arms a terminal failure for the next endpoint
// create or update.
func failNextConvergence(reason string) {
	emulator.mu.Lock()
	defer emulator.mu.Unlock()
	emulator.failNext = reason
}

func writeError(w http.ResponseWriter, status int, code controlplane.ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    string(code),
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (e *controlPlaneEmulator) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name       string `json:"name"`
		PackageRef string `json:"package_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, controlplane.CodeValidation, err.Error())
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.models[body.Name]; ok {
		writeError(w, http.StatusConflict, controlplane.CodeConflict, "model "+body.Name+" already exists")
		return
	}
	e.models[body.Name] = body.PackageRef
	writeJSON(w, http.StatusCreated, nil)
}

func (e *controlPlaneEmulator) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg controlplane.ConfigurationSpec
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, controlplane.CodeValidation, err.Error())
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.configs[cfg.Name]; ok {
		writeError(w, http.StatusConflict, controlplane.CodeConflict, "endpoint configuration "+cfg.Name+" already exists")
		return
	}
	if _, ok := e.models[cfg.ModelName]; !ok {
		writeError(w, http.StatusBadRequest, controlplane.CodeValidation, "unknown model "+cfg.ModelName)
		return
	}
	e.configs[cfg.Name] = cfg
	writeJSON(w, http.StatusCreated, nil)
}

func (e *controlPlaneEmulator) handleDescribeConfig(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/endpoint-configs/")
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, ok := e.configs[name]
	if !ok {
		writeError(w, http.StatusNotFound, controlplane.CodeNotFound, "endpoint configuration "+name+" not found")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (e *controlPlaneEmulator) handleCreateEndpoint(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name       string `json:"name"`
		ConfigName string `json:"config_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, controlplane.CodeValidation, err.Error())
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.endpoints[body.Name]; ok {
		writeError(w, http.StatusConflict, controlplane.CodeConflict, "endpoint "+body.Name+" already exists")
		return
	}
	ep := &emulatedEndpoint{
		status:       controlplane.StatusCreating,
		configName:   body.ConfigName,
		pendingReads: settleAfterQueries,
	}
	if e.failNext != "" {
		ep.failureReason = e.failNext
		e.failNext = ""
	}
	e.endpoints[body.Name] = ep
	writeJSON(w, http.StatusCreated, nil)
}

func (e *controlPlaneEmulator) handleEndpointByName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/endpoints/")
	switch r.Method {
	case http.MethodGet:
		e.describeEndpoint(w, name)
	case http.MethodPut:
		e.updateEndpoint(w, r, name)
	default:
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
	}
}

func (e *controlPlaneEmulator) describeEndpoint(w http.ResponseWriter, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ep, ok := e.endpoints[name]
	if !ok {
		writeError(w, http.StatusNotFound, controlplane.CodeNotFound, "endpoint "+name+" not found")
		return
	}
	if controlplane.StatusClassOf(ep.status) == controlplane.ClassPending {
		if ep.pendingReads > 0 {
			ep.pendingReads--
		} else if ep.failureReason != "" {
			ep.status = controlplane.StatusFailed
		} else {
			ep.status = controlplane.StatusInService
		}
	}
	writeJSON(w, http.StatusOK, controlplane.EndpointState{
		Status:        ep.status,
		ConfigName:    ep.configName,
		FailureReason: ep.failureReason,
	})
}

func (e *controlPlaneEmulator) updateEndpoint(w http.ResponseWriter, r *http.Request, name string) {
	var body struct {
		ConfigName string                     `json:"config_name"`
		Rollout    controlplane.RolloutPolicy `json:"rollout"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, controlplane.CodeValidation, err.Error())
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ep, ok := e.endpoints[name]
	if !ok {
		writeError(w, http.StatusNotFound, controlplane.CodeNotFound, "endpoint "+name+" not found")
		return
	}
	ep.configName = body.ConfigName
	ep.status = controlplane.StatusUpdating
	ep.pendingReads = settleAfterQueries
	if e.failNext != "" {
		ep.failureReason = e.failNext
		e.failNext = ""
	}
	writeJSON(w, http.StatusOK, nil)
}

func (e *controlPlaneEmulator) handleRegisterTarget(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ResourceID  string `json:"resource_id"`
		MinCapacity int    `json:"min_capacity"`
		MaxCapacity int    `json:"max_capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, controlplane.CodeValidation, err.Error())
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.targets[body.ResourceID]; ok {
		writeError(w, http.StatusConflict, controlplane.CodeConflict, "scalable target "+body.ResourceID+" already exists")
		return
	}
	e.targets[body.ResourceID] = struct{}{}
	writeJSON(w, http.StatusCreated, nil)
}

func (e *controlPlaneEmulator) handlePutPolicy(w http.ResponseWriter, r *http.Request) {
	var policy controlplane.PolicySpec
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		writeError(w, http.StatusBadRequest, controlplane.CodeValidation, err.Error())
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies[policy.PolicyName] = policy
	writeJSON(w, http.StatusOK, nil)
}

func (e *controlPlaneEmulator) policy(name string) (controlplane.PolicySpec, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.policies[name]
	return p, ok
}

func (e *controlPlaneEmulator) endpointConfig(name string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ep, ok := e.endpoints[name]; ok {
		return ep.configName
	}
	return ""
}
