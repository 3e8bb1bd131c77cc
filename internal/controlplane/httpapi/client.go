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

// Package httpapi implements the controlplane contract over the control
// plane's HTTP JSON API. Rejections carry a JSON body {"code", "message"};
// the client surfaces them as *controlplane.APIError so callers match on
// the structured code rather than on message text.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/controlplane"
)

const defaultTimeout = 30 * time.Second

// Client talks to the control plane's HTTP API. It implements both
// controlplane.Client and controlplane.AutoscalingClient.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests and
// for callers that need custom transport settings.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		c.httpc = httpc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpc.Timeout = d
	}
}

// NewClient builds a client for the control plane at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("control plane base URL cannot be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid control plane base URL %q: %w", baseURL, err)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type createModelRequest struct {
	Name       string `json:"name"`
	PackageRef string `json:"package_ref"`
}

type createEndpointRequest struct {
	Name       string `json:"name"`
	ConfigName string `json:"config_name"`
}

type updateEndpointRequest struct {
	ConfigName string                     `json:"config_name"`
	Rollout    controlplane.RolloutPolicy `json:"rollout"`
}

type registerTargetRequest struct {
	ResourceID  string `json:"resource_id"`
	MinCapacity int    `json:"min_capacity"`
	MaxCapacity int    `json:"max_capacity"`
}

func (c *Client) CreateModel(ctx context.Context, name, packageRef string) error {
	return c.do(ctx, http.MethodPost, "/models", createModelRequest{Name: name, PackageRef: packageRef}, nil)
}

func (c *Client) CreateConfiguration(ctx context.Context, cfg controlplane.ConfigurationSpec) error {
	return c.do(ctx, http.MethodPost, "/endpoint-configs", cfg, nil)
}

func (c *Client) DescribeConfiguration(ctx context.Context, name string) (controlplane.ConfigurationSpec, error) {
	var cfg controlplane.ConfigurationSpec
	err := c.do(ctx, http.MethodGet, "/endpoint-configs/"+url.PathEscape(name), nil, &cfg)
	return cfg, err
}

func (c *Client) CreateEndpoint(ctx context.Context, name, configName string) error {
	return c.do(ctx, http.MethodPost, "/endpoints", createEndpointRequest{Name: name, ConfigName: configName}, nil)
}

func (c *Client) UpdateEndpoint(ctx context.Context, name, configName string, rollout controlplane.RolloutPolicy) error {
	return c.do(ctx, http.MethodPut, "/endpoints/"+url.PathEscape(name), updateEndpointRequest{ConfigName: configName, Rollout: rollout}, nil)
}

func (c *Client) DescribeEndpoint(ctx context.Context, name string) (controlplane.EndpointState, error) {
	var state controlplane.EndpointState
	err := c.do(ctx, http.MethodGet, "/endpoints/"+url.PathEscape(name), nil, &state)
	return state, err
}

func (c *Client) RegisterScalableTarget(ctx context.Context, resourceID string, minCapacity, maxCapacity int) error {
	return c.do(ctx, http.MethodPost, "/scalable-targets", registerTargetRequest{
		ResourceID:  resourceID,
		MinCapacity: minCapacity,
		MaxCapacity: maxCapacity,
	}, nil)
}

func (c *Client) PutScalingPolicy(ctx context.Context, policy controlplane.PolicySpec) error {
	return c.do(ctx, http.MethodPost, "/scaling-policies", policy, nil)
}

// do issues one request and decodes the response into out when non-nil.
// Non-2xx responses become *controlplane.APIError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building %s %s request: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s %s response: %w", method, path, err)
		}
	}
	return nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// decodeAPIError reads a rejection body. Bodies that are not the expected
// JSON shape still produce an APIError keyed on the HTTP status, so the
// IsConflict/IsNotFound predicates keep working on status alone.
func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil || (eb.Code == "" && eb.Message == "") {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &controlplane.APIError{Message: msg, HTTPStatus: resp.StatusCode}
	}
	return &controlplane.APIError{
		Code:       controlplane.ErrorCode(eb.Code),
		Message:    eb.Message,
		HTTPStatus: resp.StatusCode,
	}
}
