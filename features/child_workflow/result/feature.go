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

package result

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

const ChildWorkflowInput = "test"

func Feature() harness.Feature {
	return harness.Feature{
		Dir:             "child_workflow/result",
		Workflows:       []any{Workflow, ChildWorkflow},
		Execute:         harness.ExecuteWithArgs(Workflow),
		ExpectRunResult: ChildWorkflowInput,
	}
}

func Workflow(ctx workflow.Context) (string, error) {
	ctx = workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowExecutionTimeout: 10 * time.Minute,
		WorkflowTaskTimeout:      time.Minute,
	})
	var result string
	if err := workflow.ExecuteChildWorkflow(ctx, ChildWorkflow, ChildWorkflowInput).Get(ctx, &result); err != nil {
		return "", err
	}
	return result, nil
}

func ChildWorkflow(_ workflow.Context, parameter string) (string, error) {
	return parameter, nil
}
