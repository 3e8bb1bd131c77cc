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

package controlplane

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is the machine-readable error code reported by the control
// plane. Matching happens on this field; message inspection is a fallback
// for responses that carry no code at all.
type ErrorCode string

const (
	CodeConflict   ErrorCode = "ResourceConflict"
	CodeNotFound   ErrorCode = "ResourceNotFound"
	CodeThrottled  ErrorCode = "ThrottlingError"
	CodeValidation ErrorCode = "ValidationError"
)

// APIError is a structured control-plane rejection.
type APIError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("control plane: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("control plane: status %d: %s", e.HTTPStatus, e.Message)
}

// IsConflict reports whether err is the control plane's structured
// "already exists" shape. The message fallback covers control planes that
// reject duplicates through a generic validation error without a distinct
// code, the way some managed platforms do.
func IsConflict(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.Code {
	case CodeConflict:
		return true
	case CodeValidation, "":
		return strings.Contains(strings.ToLower(ae.Message), "already exist") ||
			ae.HTTPStatus == http.StatusConflict
	default:
		return false
	}
}

// IsNotFound reports whether err means the resource does not exist.
func IsNotFound(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Code == CodeNotFound || ae.HTTPStatus == http.StatusNotFound
}

// IsTransient reports whether err is worth retrying: throttling or a
// server-side failure. Structured rejections (validation, conflict,
// not-found) are deterministic and never retried.
func IsTransient(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return false
	}
	if ae.Code == CodeThrottled {
		return true
	}
	switch ae.Code {
	case CodeConflict, CodeNotFound, CodeValidation:
		return false
	}
	return ae.HTTPStatus >= http.StatusInternalServerError ||
		ae.HTTPStatus == http.StatusTooManyRequests
}
