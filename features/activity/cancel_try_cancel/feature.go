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

package cancel_try_cancel

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

const resultSignal = "activity-result"

// Activities signals the workflow with how its activity ended.
type Activities struct {
	Client client.Client
}

func Feature() harness.Feature {
	acts := &Activities{}
	return harness.Feature{
		Dir:        "activity/cancel_try_cancel",
		Workflows:  Workflow,
		Activities: acts,
		Execute: func(ctx context.Context, r *harness.Runner) (client.WorkflowRun, error) {
			acts.Client = r.Client
			return r.ExecuteDefault(ctx)
		},
	}
}

func Workflow(ctx workflow.Context) error {
	actCtx, actCancel := workflow.WithCancel(workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		ScheduleToCloseTimeout: time.Minute,
		HeartbeatTimeout:       5 * time.Second,
		RetryPolicy:            harness.RetryDisabled,
		WaitForCancellation:    false,
	}))
	var a *Activities
	fut := workflow.ExecuteActivity(actCtx, a.CancellableActivity)

	// Force a task turnover before cancelling.
	if err := workflow.Sleep(ctx, time.Millisecond); err != nil {
		return err
	}

	actCancel()
	if err := fut.Get(ctx, nil); !temporal.IsCanceledError(err) {
		return harness.AppErrorf("expected activity cancel error, got: %v", err)
	}

	var result string
	workflow.GetSignalChannel(ctx, resultSignal).Receive(ctx, &result)
	if result != "cancelled" {
		return harness.AppErrorf("expected activity to get cancelled, got: %v", result)
	}
	return nil
}

// CancellableActivity heartbeats for up to a minute and reports whether it
// saw the cancellation.
func (a *Activities) CancellableActivity(ctx context.Context) error {
	var result string
	for i := 0; i < 60 && result == ""; i++ {
		select {
		case <-time.After(time.Second):
			activity.RecordHeartbeat(ctx)
		case <-ctx.Done():
			result = "cancelled"
		}
	}
	if result == "" {
		result = "timeout"
	}
	wf := activity.GetInfo(ctx).WorkflowExecution
	return a.Client.SignalWorkflow(context.Background(), wf.ID, wf.RunID, resultSignal, result)
}
