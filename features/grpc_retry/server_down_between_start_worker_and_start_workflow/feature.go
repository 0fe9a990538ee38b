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

package server_down_between_start_worker_and_start_workflow

import (
	"context"
	"sync"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

const (
	downFor = 5 * time.Second
	// restartGrace gives the proxy time to drop its listener before the
	// workflow start goes out.
	restartGrace = 500 * time.Millisecond
)

func Feature() harness.Feature {
	return harness.Feature{
		Dir:       "grpc_retry/server_down_between_start_worker_and_start_workflow",
		Workflows: Workflow,
		StartWorkflowOptionsMutator: func(o *client.StartWorkflowOptions) {
			o.RetryPolicy = &temporal.RetryPolicy{
				InitialInterval:    time.Millisecond,
				MaximumInterval:    100 * time.Millisecond,
				BackoffCoefficient: 2,
			}
		},
		Execute:         Execute,
		ExpectRunResult: "OK",
	}
}

// Execute takes the server away after the worker is polling and starts the
// workflow while it is gone; both the client and the worker have to ride
// out the outage.
func Execute(ctx context.Context, r *harness.Runner) (client.WorkflowRun, error) {
	var wg sync.WaitGroup
	defer wg.Wait()
	if err := r.ProxyRestart(ctx, &wg, downFor, true); err != nil {
		return nil, err
	}
	select {
	case <-time.After(restartGrace):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.ExecuteDefault(ctx)
}

func Workflow(workflow.Context) (string, error) {
	return "OK", nil
}
