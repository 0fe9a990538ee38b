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

package continue_as_same

import (
	"context"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

const (
	InputData = "InputData"
	MemoKey   = "MemoKey"
	MemoValue = "MemoValue"
)

func Feature() harness.Feature {
	return harness.Feature{
		Dir:       "continue_as_new/continue_as_same",
		Workflows: Workflow,
		StartArgs: []any{InputData},
		StartWorkflowOptionsMutator: func(o *client.StartWorkflowOptions) {
			o.Memo = map[string]any{MemoKey: MemoValue}
		},
		CheckResult: CheckResult,
	}
}

// Workflow continues as new once and returns its input from the second run.
func Workflow(ctx workflow.Context, input string) (string, error) {
	if workflow.GetInfo(ctx).ContinuedExecutionRunID != "" {
		return input, nil
	}
	return "", workflow.NewContinueAsNewError(ctx, Workflow, input)
}

func CheckResult(ctx context.Context, r *harness.Runner, run client.WorkflowRun) error {
	var result string
	if err := run.Get(ctx, &result); err != nil {
		return err
	}
	r.Require.Equal(InputData, result)

	// The ID and memo carry over to the continued run.
	execution, err := r.Client.DescribeWorkflowExecution(ctx, run.GetID(), "")
	if err != nil {
		return err
	}
	info := execution.GetWorkflowExecutionInfo()
	r.Require.Equal(run.GetID(), info.GetExecution().GetWorkflowId())
	r.Require.NotEqual(run.GetRunID(), info.GetExecution().GetRunId())

	memoPayload, ok := info.GetMemo().GetFields()[MemoKey]
	r.Require.True(ok, "memo %q missing after continue-as-new", MemoKey)
	var memo string
	if err := converter.GetDefaultDataConverter().FromPayload(memoPayload, &memo); err != nil {
		return err
	}
	r.Require.Equal(MemoValue, memo)
	return nil
}
