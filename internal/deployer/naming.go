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
	"fmt"
	"strings"
	"time"

	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/constants"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/pkg/api"
)

// ConfigurationName derives a fresh configuration name from the endpoint
// name and a monotonic token. Successive reconciliations of the same
// endpoint never collide, and the token makes configurations addressable
// in audit trails. Nanosecond resolution: back-to-back invocations must
// not reuse a name, since configurations are immutable once created.
func ConfigurationName(endpointName string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%d", endpointName, constants.ConfigNameSuffix, now.UnixNano())
}

// ServingModelName resolves a model reference to the compute-layer model
// handle. The name is stable per model version: deploying the same version
// twice derives the same handle, so the create call conflicts harmlessly.
func ServingModelName(ref api.ModelReference) (string, error) {
	if ref.Version == "" {
		return "", api.NewDeploymentError(api.KindInvalidModelReference,
			"model reference has no version", nil)
	}
	base := slug(packageBase(ref.PackageRef))
	if base == "" {
		return "", api.NewDeploymentError(api.KindInvalidModelReference,
			fmt.Sprintf("cannot derive a model name from package reference %q", ref.PackageRef), nil)
	}
	version := slug(ref.Version)
	if version == "" {
		return "", api.NewDeploymentError(api.KindInvalidModelReference,
			fmt.Sprintf("cannot derive a version token from %q", ref.Version), nil)
	}
	return fmt.Sprintf("%s-%s-%s", base, constants.ModelNameSuffix, version), nil
}

// ScalingResourceID computes the stable identifier of the scalable target
// for an (endpoint, variant) pair. Deterministic so repeated registrations
// address the same resource.
func ScalingResourceID(endpointName, variantName string) string {
	return fmt.Sprintf("endpoint/%s/variant/%s", endpointName, variantName)
}

// ScalingPolicyName names the target-tracking policy of an endpoint.
func ScalingPolicyName(endpointName string) string {
	return endpointName + "-scaling-policy"
}

// packageBase extracts the last path segment of an opaque package
// reference, tolerating registry ARNs and slash-separated package paths.
// A trailing numeric segment (a package revision) is skipped in favor of
// the segment before it.
func packageBase(packageRef string) string {
	trimmed := strings.Trim(packageRef, "/")
	if i := strings.LastIndex(trimmed, ":"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == "" || isNumeric(parts[i]) {
			continue
		}
		return parts[i]
	}
	return ""
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// slug lowercases s and keeps only alphanumerics and hyphens, the
// character set the control plane accepts in resource names.
func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == '.' || r == '_':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
