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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-d-incubation/inference-endpoint-provisioner/pkg/api"
)

func TestConfigurationName(t *testing.T) {
	now := time.Unix(1700000000, 0)
	assert.Equal(t, "navigation-endpoint-config-1700000000000000000", ConfigurationName("navigation-endpoint", now))

	// Successive tokens never collide.
	later := ConfigurationName("navigation-endpoint", now.Add(time.Nanosecond))
	assert.NotEqual(t, ConfigurationName("navigation-endpoint", now), later)
}

func TestServingModelName(t *testing.T) {
	tests := []struct {
		name    string
		ref     api.ModelReference
		want    string
		wantErr bool
	}{
		{
			name: "plain package name",
			ref:  api.ModelReference{PackageRef: "navigation", Version: "3"},
			want: "navigation-model-3",
		},
		{
			name: "registry path with numeric revision",
			ref:  api.ModelReference{PackageRef: "arn:model-package/navigation/3", Version: "3"},
			want: "navigation-model-3",
		},
		{
			name: "version with dots is slugged",
			ref:  api.ModelReference{PackageRef: "paligemma", Version: "v1.2"},
			want: "paligemma-model-v1-2",
		},
		{
			name: "uppercase is lowered",
			ref:  api.ModelReference{PackageRef: "Gemma3N", Version: "1"},
			want: "gemma3n-model-1",
		},
		{
			name:    "missing version",
			ref:     api.ModelReference{PackageRef: "navigation"},
			wantErr: true,
		},
		{
			name:    "unusable package reference",
			ref:     api.ModelReference{PackageRef: "///", Version: "1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ServingModelName(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, api.KindInvalidModelReference, api.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServingModelNameIsStablePerVersion(t *testing.T) {
	ref := api.ModelReference{PackageRef: "navigation", Version: "7"}
	a, err := ServingModelName(ref)
	require.NoError(t, err)
	b, err := ServingModelName(ref)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestScalingResourceID(t *testing.T) {
	assert.Equal(t, "endpoint/ep-1/variant/AllTraffic", ScalingResourceID("ep-1", "AllTraffic"))
	assert.Equal(t, "ep-1-scaling-policy", ScalingPolicyName("ep-1"))
}
