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

package backfill

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

func Feature() harness.Feature {
	return harness.Feature{
		Dir:       "schedule/backfill",
		Workflows: Workflow,
		Execute:   Execute,
	}
}

func Workflow(_ workflow.Context, arg string) (string, error) { return arg, nil }

// Execute backfills two windows of a paused one-minute schedule and expects
// four actions.
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

	now := time.Now()
	threeYearsAgo := now.Add(-3 * 365 * 24 * time.Hour).Truncate(time.Minute)
	thirtyMinutesAgo := now.Add(-30 * time.Minute).Truncate(time.Minute)
	err = handle.Backfill(ctx, client.ScheduleBackfillOptions{
		Backfill: []client.ScheduleBackfill{
			{Start: threeYearsAgo.Add(-2 * time.Minute), End: threeYearsAgo, Overlap: enums.SCHEDULE_OVERLAP_POLICY_ALLOW_ALL},
			{Start: thirtyMinutesAgo.Add(-2 * time.Minute), End: thirtyMinutesAgo, Overlap: enums.SCHEDULE_OVERLAP_POLICY_ALLOW_ALL},
		},
	})
	r.Require.NoError(err)

	err = r.DoUntilEventually(ctx, time.Second, 10*time.Second, func() bool {
		desc, err := handle.Describe(ctx)
		r.Require.NoError(err)
		return desc.Info.NumActions == 4 && len(desc.Info.RunningWorkflows) == 0
	})
	return nil, err
}
