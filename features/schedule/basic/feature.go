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

package basic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

func Feature() harness.Feature {
	return harness.Feature{
		Dir:       "schedule/basic",
		Workflows: BasicScheduleWorkflow,
		Execute:   Execute,
	}
}

func BasicScheduleWorkflow(_ workflow.Context, arg string) (string, error) {
	return arg, nil
}

// Execute runs a schedule every two seconds, changes its argument through
// an update and waits for a run to complete with each argument.
func Execute(ctx context.Context, r *harness.Runner) (client.WorkflowRun, error) {
	if err := r.RequireScheduleSupport(ctx); err != nil {
		return nil, err
	}

	workflowID := uuid.Must(uuid.NewV4()).String()
	handle, err := r.Client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID:      uuid.Must(uuid.NewV4()).String(),
		Spec:    client.ScheduleSpec{Intervals: []client.ScheduleIntervalSpec{{Every: 2 * time.Second}}},
		Overlap: enums.SCHEDULE_OVERLAP_POLICY_BUFFER_ONE,
		Action: &client.ScheduleWorkflowAction{
			ID:        workflowID,
			Workflow:  BasicScheduleWorkflow,
			Args:      []any{"arg1"},
			TaskQueue: r.TaskQueue,
		},
	})
	r.Require.NoError(err)
	defer func() {
		if err := handle.Delete(context.WithoutCancel(ctx)); err != nil {
			r.Logger().Warn("failed deleting schedule", "schedule_id", handle.GetID(), "error", err)
		}
	}()

	desc, err := handle.Describe(ctx)
	r.Require.NoErrorf(err, "describe schedule %s (workflow id %s)", handle.GetID(), workflowID)
	action, ok := desc.Schedule.Action.(*client.ScheduleWorkflowAction)
	r.Require.True(ok, "unexpected action type %T", desc.Schedule.Action)
	r.Require.Equal(workflowID, action.ID)

	// Listing goes through visibility, which is eventually consistent.
	err = harness.RetryFor(ctx, 10, time.Second, func() (bool, error) {
		iter, err := r.Client.ScheduleClient().List(ctx, client.ScheduleListOptions{})
		r.Require.NoError(err)
		for iter.HasNext() {
			entry, err := iter.Next()
			r.Require.NoError(err)
			if entry.ID == handle.GetID() {
				return true, nil
			}
		}
		return false, nil
	})
	r.Require.NoError(err)

	r.Require.NoError(waitCompletedWith(ctx, r, workflowID, "arg1"))

	err = handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(in client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			schedule := in.Description.Schedule
			action, ok := schedule.Action.(*client.ScheduleWorkflowAction)
			if !ok {
				return nil, fmt.Errorf("unexpected action type %T", schedule.Action)
			}
			action.Args = []any{"arg2"}
			return &client.ScheduleUpdate{Schedule: &schedule}, nil
		},
	})
	r.Require.NoError(err)

	r.Require.NoError(waitCompletedWith(ctx, r, workflowID, "arg2"))
	return nil, nil
}

// waitCompletedWith polls scheduled runs, whose IDs carry the action ID plus
// a timestamp, until one completes with want.
func waitCompletedWith(ctx context.Context, r *harness.Runner, idPrefix, want string) error {
	return harness.RetryFor(ctx, 10, time.Second, func() (bool, error) {
		req := &workflowservice.ListWorkflowExecutionsRequest{
			Query: "WorkflowType = 'BasicScheduleWorkflow'",
		}
		for {
			resp, err := r.Client.ListWorkflow(ctx, req)
			if err != nil {
				return false, err
			}
			for _, exec := range resp.GetExecutions() {
				if !strings.HasPrefix(exec.GetExecution().GetWorkflowId(), idPrefix) {
					continue
				}
				if exec.GetStatus() != enums.WORKFLOW_EXECUTION_STATUS_COMPLETED {
					r.Require.Equal(enums.WORKFLOW_EXECUTION_STATUS_RUNNING, exec.GetStatus())
					continue
				}
				var result string
				run := r.Client.GetWorkflow(ctx, exec.GetExecution().GetWorkflowId(), exec.GetExecution().GetRunId())
				if err := run.Get(ctx, &result); err != nil {
					return false, err
				}
				if result == want {
					return true, nil
				}
			}
			if req.NextPageToken = resp.GetNextPageToken(); len(req.NextPageToken) == 0 {
				return false, nil
			}
		}
	})
}
