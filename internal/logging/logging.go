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

// Package logging configures the structured logger shared by all
// provisioner components. Components never hold a logger; they pull it
// from the context via ctrl.LoggerFrom, so one invocation carries one
// logger with its invocation-scoped fields.
package logging

import (
	"github.com/go-logr/logr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Verbosity levels used with logger.V(n).
const (
	INFO  = 0
	DEBUG = 1
	TRACE = 2
)

// NewLogger creates a Zap-backed logger. Dev mode switches to the
// human-readable console encoder; level is the highest V() that still
// emits.
func NewLogger(devMode bool, level int) logr.Logger {
	return zap.New(
		zap.UseDevMode(devMode),
		zap.Level(uberzap.NewAtomicLevelAt(zapcore.Level(-1*level))),
	)
}

// SetGlobal installs logger as the process-wide default used by
// ctrl.LoggerFrom when a context carries no logger.
func SetGlobal(logger logr.Logger) {
	log.SetLogger(logger)
}
