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

package http_proxy

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

const Result = "done"

func Feature() harness.Feature {
	return harness.Feature{
		Dir:             "client/http_proxy",
		Workflows:       Workflow,
		Execute:         Execute,
		ExpectRunResult: Result,
	}
}

// Execute runs the workflow from a second client whose connection is
// tunneled through the configured HTTP proxy, then hands the run back to
// the direct client for verification.
func Execute(ctx context.Context, r *harness.Runner) (client.WorkflowRun, error) {
	proxied, err := r.DialThroughProxy(ctx)
	if err != nil {
		return nil, err
	}
	defer proxied.Close()

	run, err := proxied.ExecuteWorkflow(ctx, r.StartOptions(), Workflow)
	if err != nil {
		return nil, fmt.Errorf("start workflow through proxy: %w", err)
	}
	var got string
	if err := run.Get(ctx, &got); err != nil {
		return nil, fmt.Errorf("run workflow through proxy: %w", err)
	}
	r.Require.Equal(Result, got)
	return r.Client.GetWorkflow(ctx, run.GetID(), run.GetRunID()), nil
}

func Workflow(workflow.Context) (string, error) {
	return Result, nil
}
