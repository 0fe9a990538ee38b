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

package shutdown

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

func Feature() harness.Feature {
	return harness.Feature{
		Dir:        "activity/shutdown",
		Workflows:  Workflow,
		Activities: &Activities{},
		WorkerOptions: worker.Options{
			WorkerStopTimeout: time.Second,
		},
		Execute:         Execute,
		ExpectRunResult: "done",
	}
}

// Execute restarts the worker once the activities are in flight.
func Execute(ctx context.Context, r *harness.Runner) (client.WorkflowRun, error) {
	run, err := r.ExecuteDefault(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.WaitForActivityTaskScheduled(ctx, run, 5*time.Second); err != nil {
		return nil, err
	}
	if err := r.RestartWorker(); err != nil {
		return nil, err
	}
	return run, nil
}

func Workflow(ctx workflow.Context) (string, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		ScheduleToCloseTimeout: 300 * time.Millisecond,
		RetryPolicy:            &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	var a *Activities
	succeeds := workflow.ExecuteActivity(ctx, a.CancelSuccess)
	fails := workflow.ExecuteActivity(ctx, a.CancelFailure)
	ignores := workflow.ExecuteActivity(ctx, a.CancelIgnore)

	if err := succeeds.Get(ctx, nil); err != nil {
		return "", fmt.Errorf("expected activity to succeed, got %v", err)
	}
	if err := fails.Get(ctx, nil); err == nil || !strings.Contains(err.Error(), "worker is shutting down") {
		return "", fmt.Errorf("expected activity to fail with 'worker is shutting down', got %v", err)
	}
	if err := ignores.Get(ctx, nil); err == nil || !strings.Contains(err.Error(), "(type: ScheduleToClose)") {
		return "", fmt.Errorf("expected activity to fail with ScheduleToClose timeout, got %v", err)
	}
	return "done", nil
}

type Activities struct{}

func (a *Activities) CancelSuccess(ctx context.Context) error {
	<-activity.GetWorkerStopChannel(ctx)
	return nil
}

func (a *Activities) CancelFailure(ctx context.Context) error {
	<-activity.GetWorkerStopChannel(ctx)
	return errors.New("worker is shutting down")
}

func (a *Activities) CancelIgnore(context.Context) error {
	time.Sleep(15 * time.Second)
	return nil
}
