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

package retry_on_error

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

func Feature() harness.Feature {
	return harness.Feature{
		Dir:                 "activity/retry_on_error",
		Workflows:           Workflow,
		Activities:          AlwaysFailActivity,
		ExpectActivityError: "activity attempt 5 failed",
	}
}

func Workflow(ctx workflow.Context) error {
	// Five attempts, retried immediately with no backoff growth.
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		ScheduleToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Nanosecond,
			BackoffCoefficient: 1,
			MaximumAttempts:    5,
		},
	})
	return workflow.ExecuteActivity(ctx, AlwaysFailActivity).Get(ctx, nil)
}

func AlwaysFailActivity(ctx context.Context) error {
	return fmt.Errorf("activity attempt %v failed", activity.GetInfo(ctx).Attempt)
}
