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

// Package deployer contains the deployment pipeline of the provisioner.
//
// Three components compose into one invocation. The Reconciler issues the
// create and update requests that drive an endpoint toward a desired model
// version and sizing, treating "already exists" conflicts as the expected
// idempotent branches. The Poller then blocks until the endpoint converges,
// fails terminally, or the invocation's time budget runs out. The Registrar
// finally attaches elastic capacity, a scalable target plus a
// target-tracking policy, to the ready endpoint.
//
// The Pipeline type sequences them and owns the state machine reported in
// the deployment result. Running out of budget is a resumable outcome, not
// an error: a later invocation of the same request picks up where this one
// stopped.
package deployer
