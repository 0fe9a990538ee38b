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

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

const (
	UpdateName = "my-update-name"
	UpdateArg  = "my-update-arg"
)

func Feature() harness.Feature {
	return harness.Feature{
		Dir:             "update/basic",
		Workflows:       Workflow,
		ExpectRunResult: "workflow-result:" + UpdateArg,
		Execute:         Execute,
	}
}

func Execute(ctx context.Context, r *harness.Runner) (client.WorkflowRun, error) {
	if err := r.RequireUpdateSupport(ctx); err != nil {
		return nil, err
	}
	run, err := r.ExecuteDefault(ctx)
	if err != nil {
		return nil, err
	}

	handle, err := r.Client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   run.GetID(),
		RunID:        run.GetRunID(),
		UpdateName:   UpdateName,
		Args:         []any{UpdateArg},
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	r.Require.NoError(err)

	var result string
	r.Require.NoError(handle.Get(ctx, &result))
	r.Require.Equal("update-result:"+UpdateArg, result)

	if err := r.RequireNoUpdateRejectedEvents(ctx); err != nil {
		return nil, err
	}
	return run, nil
}

// Workflow completes with the argument of the first update it accepts.
func Workflow(ctx workflow.Context) (string, error) {
	var got string
	err := workflow.SetUpdateHandler(ctx, UpdateName, func(arg string) (string, error) {
		got = arg
		return fmt.Sprintf("update-result:%s", arg), nil
	})
	if err != nil {
		return "", err
	}
	if err := workflow.Await(ctx, func() bool { return got != "" }); err != nil {
		return "", err
	}
	return fmt.Sprintf("workflow-result:%s", got), nil
}
