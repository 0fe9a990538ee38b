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
	"time"
)

// Status is the final state of one feature run.
type Status string

const (
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// Outcome is one feature's result as reported in summaries.
type Outcome struct {
	Name    string `json:"name"`
	Status  Status `json:"outcome"`
	Message string `json:"message"`

	Duration time.Duration `json:"-"`
	Err      error         `json:"-"`
}

// NewOutcome classifies the error a feature run returned.
func NewOutcome(name string, err error, duration time.Duration) Outcome {
	o := Outcome{Name: name, Status: StatusPassed, Duration: duration, Err: err}
	if err == nil {
		return o
	}
	if skipped, reason := IsSkipped(err); skipped {
		o.Status = StatusSkipped
		o.Message = reason
		return o
	}
	o.Status = StatusFailed
	o.Message = err.Error()
	return o
}

// Trace returns the filtered assertion frames of a failed outcome, if any.
func (o Outcome) Trace() string {
	var assertErr *AssertionError
	if errors.As(o.Err, &assertErr) {
		return assertErr.Trace()
	}
	return ""
}
