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

package trigger

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

func Feature() harness.Feature {
	return harness.Feature{
		Dir:       "schedule/trigger",
		Workflows: Workflow,
		Execute:   Execute,
	}
}

func Workflow(_ workflow.Context, arg string) (string, error) { return arg, nil }

// Execute triggers a paused schedule twice and expects two actions.
func Execute(ctx context.Context, r *harness.Runner) (client.WorkflowRun, error) {
	if err := r.RequireScheduleSupport(ctx); err != nil {
		return nil, err
	}

	handle, err := r.Client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID:   uuid.Must(uuid.NewV4()).String(),
		Spec: client.ScheduleSpec{Intervals: []client.ScheduleIntervalSpec{{Every: time.Minute}}},
		Action: &client.ScheduleWorkflowAction{
			ID:        uuid.Must(uuid.NewV4()).String(),
			Workflow:  Workflow,
			Args:      []any{"arg1"},
			TaskQueue: r.TaskQueue,
		},
		Paused: true,
	})
	r.Require.NoError(err)
	defer func() {
		if err := handle.Delete(context.WithoutCancel(ctx)); err != nil {
			r.Logger().Warn("failed deleting schedule", "schedule_id", handle.GetID(), "error", err)
		}
	}()

	r.Require.NoError(handle.Trigger(ctx, client.ScheduleTriggerOptions{}))
	// Back-to-back triggers within the same second collapse into one.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(2 * time.Second):
	}
	r.Require.NoError(handle.Trigger(ctx, client.ScheduleTriggerOptions{}))

	err = r.DoUntilEventually(ctx, 100*time.Millisecond, 5*time.Second, func() bool {
		desc, err := handle.Describe(ctx)
		r.Require.NoError(err)
		return desc.Info.NumActions == 2
	})
	return nil, err
}
