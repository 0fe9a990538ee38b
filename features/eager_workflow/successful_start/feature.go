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

package successful_start

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/workflow"
	"google.golang.org/grpc"

	"github.com/ngnhng/features/harness"
)

const expectedResult = "Hello World"

func Feature() harness.Feature {
	var eagerlyStarted atomic.Uint64
	return harness.Feature{
		Dir:       "eager_workflow/successful_start",
		Workflows: Workflow,
		StartWorkflowOptions: client.StartWorkflowOptions{
			EnableEagerStart:    true,
			WorkflowTaskTimeout: time.Hour,
		},
		ClientOptions: client.Options{
			ConnectionOptions: client.ConnectionOptions{
				DialOptions: []grpc.DialOption{grpc.WithUnaryInterceptor(EagerDetector(&eagerlyStarted))},
			},
		},
		CheckResult: func(ctx context.Context, r *harness.Runner, run client.WorkflowRun) error {
			var result string
			if err := run.Get(ctx, &result); err != nil {
				return err
			}
			if result != expectedResult {
				return fmt.Errorf("expected %s, got: %s", expectedResult, result)
			}
			// Eager start can be disabled per namespace and nothing reports that
			// short of trying.
			if n := eagerlyStarted.Load(); n != 1 {
				return r.Skip(fmt.Sprintf("enable dynamic config system.enableEagerWorkflowStart=true: eagerly started %d", n))
			}
			return nil
		},
	}
}

func Workflow(workflow.Context) (string, error) {
	return expectedResult, nil
}

// EagerDetector counts start requests that asked for and received an eager
// workflow task.
func EagerDetector(count *atomic.Uint64) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, resp any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		var requested bool
		if start, ok := req.(*workflowservice.StartWorkflowExecutionRequest); ok {
			requested = start.GetRequestEagerExecution()
		}
		if err := invoker(ctx, method, req, resp, cc, opts...); err != nil {
			return err
		}
		if start, ok := resp.(*workflowservice.StartWorkflowExecutionResponse); ok && requested && start.GetEagerWorkflowTask() != nil {
			count.Add(1)
		}
		return nil
	}
}
