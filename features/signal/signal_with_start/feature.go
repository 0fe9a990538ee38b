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

package signal_with_start

import (
	"context"
	"fmt"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
	"github.com/ngnhng/features/harness/history"
)

const (
	SignalName  = "add"
	StartValue  = 1
	SignalValue = 42
)

func Feature() harness.Feature {
	return harness.Feature{
		Dir:             "signal/signal_with_start",
		Workflows:       Workflow,
		Execute:         Execute,
		ExpectRunResult: StartValue + SignalValue,
		CheckResult:     CheckResult,
	}
}

// Workflow adds every buffered "add" signal to its start value, blocking
// until at least one arrived.
func Workflow(ctx workflow.Context, start int) (int, error) {
	sum := start
	ch := workflow.GetSignalChannel(ctx, SignalName)
	var v int
	ch.Receive(ctx, &v)
	sum += v
	for ch.ReceiveAsync(&v) {
		sum += v
	}
	return sum, nil
}

func Execute(ctx context.Context, r *harness.Runner) (client.WorkflowRun, error) {
	opts := r.StartOptions()
	run, err := r.Client.SignalWithStartWorkflow(ctx, opts.ID, SignalName, SignalValue, opts, Workflow, StartValue)
	if err != nil {
		return nil, fmt.Errorf("signal with start %s: %w", opts.ID, err)
	}
	return run, nil
}

// CheckResult also confirms the signal was recorded exactly once.
func CheckResult(ctx context.Context, r *harness.Runner, run client.WorkflowRun) error {
	if err := r.CheckResultDefault(ctx, run); err != nil {
		return err
	}
	events, err := r.HistoryFetcher().Events(ctx, run.GetID(), run.GetRunID())
	if err != nil {
		return err
	}
	return r.CheckAssertion(r.Assert.Equal(1, history.CountEvents(events, enums.EVENT_TYPE_WORKFLOW_EXECUTION_SIGNALED)))
}
