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

package unexpected_query_type_name

import (
	"context"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

func Feature() harness.Feature {
	return harness.Feature{
		Dir:       "query/unexpected_query_type_name",
		Workflows: Workflow,
		CheckResult: func(ctx context.Context, r *harness.Runner, run client.WorkflowRun) error {
			_, err := r.Client.QueryWorkflow(ctx, run.GetID(), run.GetRunID(), "nonexistent")
			r.Require.Error(err)
			var queryFailed *serviceerror.QueryFailed
			r.Require.ErrorAs(err, &queryFailed)

			r.Require.NoError(r.Client.SignalWorkflow(ctx, run.GetID(), run.GetRunID(), "finish", nil))
			return r.CheckResultDefault(ctx, run)
		},
	}
}

func Workflow(ctx workflow.Context) error {
	workflow.GetSignalChannel(ctx, "finish").Receive(ctx, nil)
	return nil
}
