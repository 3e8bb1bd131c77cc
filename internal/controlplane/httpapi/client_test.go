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

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/controlplane"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsEmptyBaseURL(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
}

func TestCreateEndpointSendsExpectedRequest(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, c.CreateEndpoint(context.Background(), "ep-1", "ep-1-config-100"))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/endpoints", gotPath)
	assert.Equal(t, "ep-1", gotBody["name"])
	assert.Equal(t, "ep-1-config-100", gotBody["config_name"])
}

func TestUpdateEndpointSendsRolloutPolicy(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	rollout := controlplane.RolloutPolicy{
		MaxBatchPercent:      50,
		WaitInterval:         11 * time.Minute,
		RollbackBatchPercent: 50,
		MaxExecutionTimeout:  32 * time.Minute,
	}
	require.NoError(t, c.UpdateEndpoint(context.Background(), "ep-1", "ep-1-config-200", rollout))

	assert.Equal(t, "/endpoints/ep-1", gotPath)
	assert.Equal(t, "ep-1-config-200", gotBody["config_name"])
	assert.Contains(t, gotBody, "rollout")
}

func TestDescribeEndpointDecodesState(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/endpoints/ep-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"Creating","config_name":"ep-1-config-100"}`))
	})

	state, err := c.DescribeEndpoint(context.Background(), "ep-1")
	require.NoError(t, err)
	assert.Equal(t, controlplane.StatusCreating, state.Status)
	assert.Equal(t, "ep-1-config-100", state.ConfigName)
}

func TestDescribeConfigurationDecodesSpec(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/endpoint-configs/ep-1-config-100", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "ep-1-config-100",
			"model_name": "navigation-model-3",
			"instance_type": "gpu.large",
			"initial_instance_count": 2,
			"variant_name": "AllTraffic",
			"variant_weight": 1.0
		}`))
	})

	cfg, err := c.DescribeConfiguration(context.Background(), "ep-1-config-100")
	require.NoError(t, err)
	assert.Equal(t, "navigation-model-3", cfg.ModelName)
	assert.Equal(t, "gpu.large", cfg.InstanceType)
	assert.Equal(t, 2, cfg.InitialInstanceCount)
}

func TestStructuredRejectionBecomesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"ResourceConflict","message":"endpoint \"ep-1\" already exists"}`))
	})

	err := c.CreateEndpoint(context.Background(), "ep-1", "cfg")
	require.Error(t, err)
	assert.True(t, controlplane.IsConflict(err))

	var ae *controlplane.APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, controlplane.CodeConflict, ae.Code)
	assert.Equal(t, http.StatusConflict, ae.HTTPStatus)
}

func TestPlainTextRejectionFallsBackToStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "endpoint already exists", http.StatusConflict)
	})

	err := c.CreateEndpoint(context.Background(), "ep-1", "cfg")
	require.Error(t, err)
	// No structured code, so the predicate keys on the HTTP status.
	assert.True(t, controlplane.IsConflict(err))
}

func TestNotFoundRejection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"ResourceNotFound","message":"endpoint \"ep-9\" not found"}`))
	})

	_, err := c.DescribeEndpoint(context.Background(), "ep-9")
	require.Error(t, err)
	assert.True(t, controlplane.IsNotFound(err))
}

func TestServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.DescribeEndpoint(context.Background(), "ep-1")
	require.Error(t, err)
	assert.True(t, controlplane.IsTransient(err))
}

func TestRegisterScalableTargetSendsBounds(t *testing.T) {
	var gotBody map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/scalable-targets", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, c.RegisterScalableTarget(context.Background(), "endpoint/ep-1/variant/AllTraffic", 1, 4))
	assert.Equal(t, "endpoint/ep-1/variant/AllTraffic", gotBody["resource_id"])
	assert.Equal(t, float64(1), gotBody["min_capacity"])
	assert.Equal(t, float64(4), gotBody["max_capacity"])
}

func TestPutScalingPolicySendsSpec(t *testing.T) {
	var gotBody map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/scaling-policies", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	policy := controlplane.PolicySpec{
		PolicyName:       "ep-1-scaling-policy",
		ResourceID:       "endpoint/ep-1/variant/AllTraffic",
		TargetValue:      10.0,
		ScaleInCooldown:  5 * time.Minute,
		ScaleOutCooldown: 5 * time.Minute,
	}
	require.NoError(t, c.PutScalingPolicy(context.Background(), policy))
	assert.Equal(t, "ep-1-scaling-policy", gotBody["policy_name"])
	assert.Equal(t, 10.0, gotBody["target_value"])
}
