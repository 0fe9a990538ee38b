// Copyright 2025 Nguyen Nhat Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package harness

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFixtureNotRegistered is returned when a feature directory has no compiled registration
	ErrFixtureNotRegistered = errors.New("feature not registered")

	// ErrFixtureMalformed is returned when a registration cannot be run
	ErrFixtureMalformed = errors.New("feature malformed")

	// ErrDuplicateFeature is returned when two registrations claim the same directory
	ErrDuplicateFeature = errors.New("feature already registered")

	// ErrNoWorkflow is returned by the default executor when the feature registers no workflow
	ErrNoWorkflow = errors.New("feature has no workflow")

	// ErrAmbiguousWorkflow is returned by the default executor when more than one workflow is registered
	ErrAmbiguousWorkflow = errors.New("feature has more than one workflow and no custom executor")

	// ErrWorkerRunning is returned when starting a worker while another is live
	ErrWorkerRunning = errors.New("worker is currently running, cannot start a new one")

	// ErrWorkerFailed wraps the error a worker reported while a scenario was running
	ErrWorkerFailed = errors.New("worker failed")

	// ErrProxyControlUnset is returned by proxy operations when no control URI was configured
	ErrProxyControlUnset = errors.New("proxy control URI is not configured")
)

// FixtureLoadError reports a feature that could not be resolved or prepared.
type FixtureLoadError struct {
	Dir   string
	Cause error
}

func (e *FixtureLoadError) Error() string {
	return fmt.Sprintf("failed to load feature %s: %v", e.Dir, e.Cause)
}

func (e *FixtureLoadError) Unwrap() error {
	return e.Cause
}

func NewFixtureLoadError(dir string, cause error) *FixtureLoadError {
	return &FixtureLoadError{Dir: dir, Cause: cause}
}

// ConnectionError is fatal for the whole run: nothing can proceed without a client.
type ConnectionError struct {
	HostPort  string
	Namespace string
	Cause     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s (namespace=%s): %v", e.HostPort, e.Namespace, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

func NewConnectionError(hostPort, namespace string, cause error) *ConnectionError {
	return &ConnectionError{HostPort: hostPort, Namespace: namespace, Cause: cause}
}

// SkippedError signals that a feature cannot run in this environment.
type SkippedError struct {
	Reason string
}

func (e *SkippedError) Error() string {
	return fmt.Sprintf("feature skipped: %s", e.Reason)
}

func NewSkippedError(reason string) *SkippedError {
	return &SkippedError{Reason: reason}
}

// IsSkipped reports whether err carries a skip and returns its reason.
func IsSkipped(err error) (bool, string) {
	var skipErr *SkippedError
	if errors.As(err, &skipErr) {
		return true, skipErr.Reason
	}
	return false, ""
}

// AssertionError is an expectation mismatch raised by a feature. It is never retried.
type AssertionError struct {
	Message string
	// Frames are caller locations with library frames removed, innermost first.
	Frames []string
}

func (e *AssertionError) Error() string {
	return "assertion failed: " + e.Message
}

// Trace renders the filtered frames, one per line.
func (e *AssertionError) Trace() string {
	return strings.Join(e.Frames, "\n")
}

func NewAssertionError(message string, frames []string) *AssertionError {
	return &AssertionError{Message: message, Frames: frames}
}
