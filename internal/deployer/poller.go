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
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/constants"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/controlplane"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/internal/metrics"
	"github.com/llm-d-incubation/inference-endpoint-provisioner/pkg/api"
)

// ReadinessOutcome is the non-error result of a readiness wait.
type ReadinessOutcome string

const (
	// OutcomeReady: the endpoint reached the ready class.
	OutcomeReady ReadinessOutcome = "Ready"

	// OutcomeTimedOut: the deadline passed while the endpoint was still
	// pending. Not an error: the endpoint keeps converging on the platform
	// side and a later invocation can resume watching.
	OutcomeTimedOut ReadinessOutcome = "TimedOut"
)

// PollClock is the subset of a clock the poller needs. Satisfied by
// k8s.io/utils/clock.RealClock; tests substitute a scripted clock.
type PollClock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// DefaultDescribeBackoff retries a failed status query before the failure
// counts as fatal: 500ms, 1s, 2s, 4s with jitter. The whole sequence stays
// far below one poll interval.
var DefaultDescribeBackoff = wait.Backoff{
	Duration: 500 * time.Millisecond,
	Factor:   2.0,
	Jitter:   0.1,
	Steps:    4,
}

// Poller blocks until an endpoint converges, fails, or the caller's time
// budget runs out. It is the only component in the pipeline that sleeps;
// cancellation is purely deadline-driven.
type Poller struct {
	client   controlplane.Client
	clock    PollClock
	interval time.Duration
	backoff  wait.Backoff
}

// PollerOption customizes a Poller.
type PollerOption func(*Poller)

// WithPollClock replaces the clock used for deadline checks and sleeping.
func WithPollClock(c PollClock) PollerOption {
	return func(p *Poller) {
		p.clock = c
	}
}

// WithPollInterval sets the spacing between status queries.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		p.interval = d
	}
}

// WithDescribeBackoff sets the retry backoff around individual status
// queries.
func WithDescribeBackoff(b wait.Backoff) PollerOption {
	return func(p *Poller) {
		p.backoff = b
	}
}

// NewPoller creates a Poller for the given control plane.
func NewPoller(client controlplane.Client, opts ...PollerOption) (*Poller, error) {
	if client == nil {
		return nil, fmt.Errorf("control plane client cannot be nil")
	}
	p := &Poller{
		client:   client,
		clock:    clock.RealClock{},
		interval: constants.DefaultPollInterval,
		backoff:  DefaultDescribeBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// WaitUntilReady polls endpointName until it reaches the ready class, a
// terminal failure, or deadline. The status is queried at least once even
// with an expired deadline, so an endpoint that is already ready reports
// Ready regardless of remaining budget. Terminal classes short-circuit
// immediately: the platform does not regress out of them, so no confirming
// read is needed.
//
// A terminal platform failure returns a ConvergenceFailure error carrying
// the platform's reason. Exhausting the deadline returns OutcomeTimedOut
// and no error.
func (p *Poller) WaitUntilReady(ctx context.Context, endpointName string, deadline time.Time) (ReadinessOutcome, error) {
	logger := ctrl.LoggerFrom(ctx).WithValues("endpoint", endpointName)

	for {
		state, err := p.describeWithRetry(ctx, endpointName)
		if err != nil {
			return "", err
		}
		metrics.RecordPollAttempt(endpointName)

		switch controlplane.StatusClassOf(state.Status) {
		case controlplane.ClassReady:
			logger.Info("Endpoint is ready", "status", state.Status)
			return OutcomeReady, nil

		case controlplane.ClassTerminalFailure:
			logger.Info("Endpoint reached a terminal failure status",
				"status", state.Status, "reason", state.FailureReason)
			return "", api.NewDeploymentError(api.KindConvergenceFailure, state.FailureReason, nil)
		}

		if !p.clock.Now().Before(deadline) {
			logger.Info("Time budget exhausted while endpoint is still converging",
				"status", state.Status)
			return OutcomeTimedOut, nil
		}

		logger.V(1).Info("Endpoint still converging", "status", state.Status,
			"nextPollIn", p.interval.String())
		p.clock.Sleep(p.interval)
	}
}

// describeWithRetry queries the endpoint status, retrying throttled and
// server-side failures with bounded exponential backoff. Deterministic
// rejections and retry exhaustion are fatal.
func (p *Poller) describeWithRetry(ctx context.Context, endpointName string) (controlplane.EndpointState, error) {
	var state controlplane.EndpointState
	var lastErr error

	err := wait.ExponentialBackoffWithContext(ctx, p.backoff, func(ctx context.Context) (bool, error) {
		s, err := p.client.DescribeEndpoint(ctx, endpointName)
		if err != nil {
			if controlplane.IsTransient(err) {
				lastErr = err
				return false, nil // retry
			}
			return false, err
		}
		state = s
		return true, nil
	})
	if err != nil {
		if lastErr != nil {
			err = lastErr
		}
		return controlplane.EndpointState{}, api.NewDeploymentError(api.KindPlatformRejection,
			fmt.Sprintf("querying status of endpoint %q", endpointName), err)
	}
	return state, nil
}
