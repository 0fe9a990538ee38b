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

package async_accepted

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

// Disposition tells the update handler how to finish.
type Disposition int

const (
	Succeed Disposition = iota
	FailWithError
)

const (
	UpdateName     = "theUpdate"
	UpdateResult   = 123
	ShutdownSignal = "shutdown_signal"

	requestedSleep = 2 * time.Second
)

func Feature() harness.Feature {
	return harness.Feature{
		Dir:       "update/async_accepted",
		Workflows: Workflow,
		Execute:   Execute,
	}
}

func Execute(ctx context.Context, r *harness.Runner) (client.WorkflowRun, error) {
	if err := r.RequireAsyncAcceptedUpdateSupport(ctx); err != nil {
		return nil, err
	}
	run, err := r.ExecuteDefault(ctx)
	if err != nil {
		return nil, err
	}
	update := func(id string, disp Disposition) client.WorkflowUpdateHandle {
		handle, err := r.Client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
			UpdateID:     id,
			WorkflowID:   run.GetID(),
			RunID:        run.GetRunID(),
			UpdateName:   UpdateName,
			Args:         []any{requestedSleep, disp},
			WaitForStage: client.WorkflowUpdateStageAccepted,
		})
		r.Require.NoError(err)
		return handle
	}

	start := time.Now()
	original := update("update:1", Succeed)
	r.Require.Less(time.Since(start), requestedSleep, "accepting the update must not wait for its handler")

	// A second handle to the same update blocks until the handler is done.
	another := r.Client.GetWorkflowUpdateHandle(client.GetWorkflowUpdateHandleOptions{
		WorkflowID: run.GetID(),
		RunID:      run.GetRunID(),
		UpdateID:   original.UpdateID(),
	})
	var result int
	r.Require.NoError(another.Get(ctx, &result))
	r.Require.Equal(UpdateResult, result)

	result = 0
	r.Require.NoError(original.Get(ctx, &result))
	r.Require.Equal(UpdateResult, result)

	err = update("update:3", FailWithError).Get(ctx, nil)
	var appErr *temporal.ApplicationError
	r.Require.ErrorAs(err, &appErr, "error type was %T", err)

	last := update("update:4", Succeed)
	getCtx, cancel := context.WithTimeout(ctx, requestedSleep/10)
	defer cancel()
	err = last.Get(getCtx, nil)
	var deadlineErr *serviceerror.DeadlineExceeded
	r.Require.ErrorAs(err, &deadlineErr, "error type was %T", err)

	r.Require.NoError(r.Client.SignalWorkflow(ctx, run.GetID(), run.GetRunID(), ShutdownSignal, nil))
	if err := r.RequireNoUpdateRejectedEvents(ctx); err != nil {
		return nil, err
	}
	return run, ctx.Err()
}

// Workflow serves updates until it is told to shut down.
func Workflow(ctx workflow.Context) error {
	err := workflow.SetUpdateHandler(ctx, UpdateName,
		func(ctx workflow.Context, d time.Duration, disp Disposition) (int, error) {
			if disp == FailWithError {
				return 0, errors.New("update asked to fail")
			}
			if err := workflow.Sleep(ctx, d); err != nil {
				return 0, err
			}
			return UpdateResult, nil
		},
	)
	if err != nil {
		return err
	}
	workflow.GetSignalChannel(ctx, ShutdownSignal).Receive(ctx, nil)
	return ctx.Err()
}
