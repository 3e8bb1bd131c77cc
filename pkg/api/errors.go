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

package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a fatal deployment error. Conflicts are handled
// idempotently inside the pipeline and never surface as a kind; exceeding
// the time budget is an Outcome, not an error.
type ErrorKind string

const (
	// KindMissingParameter: caller input invalid. Not retried.
	KindMissingParameter ErrorKind = "MissingParameter"

	// KindInvalidModelReference: the model reference cannot be resolved to
	// a serving model name (missing version or package metadata). Not retried.
	KindInvalidModelReference ErrorKind = "InvalidModelReference"

	// KindPlatformRejection: any control-plane error other than the known
	// conflict shape. Surfaced verbatim, not retried by this subsystem.
	KindPlatformRejection ErrorKind = "PlatformRejection"

	// KindConvergenceFailure: the platform reported a terminal failure
	// status for the endpoint.
	KindConvergenceFailure ErrorKind = "ConvergenceFailure"
)

// DeploymentError is a fatal, classified pipeline error.
type DeploymentError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *DeploymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *DeploymentError) Unwrap() error {
	return e.Err
}

// NewDeploymentError builds a classified error wrapping an optional cause.
func NewDeploymentError(kind ErrorKind, detail string, err error) *DeploymentError {
	return &DeploymentError{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the ErrorKind from err. Unclassified errors report
// KindPlatformRejection, the catch-all for unexpected control-plane behavior.
func KindOf(err error) ErrorKind {
	var de *DeploymentError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindPlatformRejection
}

// DetailOf extracts the human-readable detail from err.
func DetailOf(err error) string {
	var de *DeploymentError
	if errors.As(err, &de) {
		return de.Detail
	}
	return err.Error()
}
