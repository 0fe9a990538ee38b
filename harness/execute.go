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

package harness

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.temporal.io/api/common/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
)

// NewWorkflowID returns "{featureDir}-{uuid}".
func (r *Runner) NewWorkflowID() string {
	return r.Feature.Dir + "-" + uuid.Must(uuid.NewV4()).String()
}

// StartOptions are the options the default executor uses: the feature's
// StartWorkflowOptions with ID, task queue and execution timeout filled in,
// then passed through StartWorkflowOptionsMutator.
func (r *Runner) StartOptions() client.StartWorkflowOptions {
	opts := r.Feature.StartWorkflowOptions
	if opts.ID == "" {
		opts.ID = r.NewWorkflowID()
	}
	if opts.TaskQueue == "" {
		opts.TaskQueue = r.TaskQueue
	}
	if opts.WorkflowExecutionTimeout == 0 {
		opts.WorkflowExecutionTimeout = r.ExecutionTimeout
	}
	if mutate := r.Feature.StartWorkflowOptionsMutator; mutate != nil {
		mutate(&opts)
	}
	return opts
}

// ExecuteDefault starts the feature's only workflow with StartArgs. It
// fails with ErrAmbiguousWorkflow when more than one workflow is registered.
func (r *Runner) ExecuteDefault(ctx context.Context) (client.WorkflowRun, error) {
	wf, err := r.Feature.PrimaryWorkflow()
	if err != nil {
		return nil, err
	}
	return r.ExecuteWorkflow(ctx, wf.Ref(), r.Feature.StartArgs...)
}

// ExecuteWorkflow starts workflow with the default start options.
func (r *Runner) ExecuteWorkflow(ctx context.Context, workflow any, args ...any) (client.WorkflowRun, error) {
	opts := r.StartOptions()
	r.log.Debug("starting workflow", "workflow_id", opts.ID, "task_queue", opts.TaskQueue)
	run, err := r.Client.ExecuteWorkflow(ctx, opts, workflow, args...)
	if err != nil {
		return nil, fmt.Errorf("start workflow %s: %w", opts.ID, err)
	}
	return run, nil
}

// QueryUntilEventually queries the run every interval until the result
// equals expected or timeout elapses.
func (r *Runner) QueryUntilEventually(
	ctx context.Context,
	run client.WorkflowRun,
	query string,
	expected any,
	interval time.Duration,
	timeout time.Duration,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	timeoutCh := time.After(timeout)
	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeoutCh:
			return fmt.Errorf("timeout waiting for query %v to get proper value, last error: %w", query, lastErr)
		case <-ticker.C:
			val, err := r.Client.QueryWorkflow(ctx, run.GetID(), run.GetRunID(), query)
			// The handler may not be registered yet.
			var queryFailed *serviceerror.QueryFailed
			if errors.As(err, &queryFailed) ||
				(err != nil && strings.Contains(err.Error(), "task is not scheduled")) {
				lastErr = err
				continue
			} else if err != nil {
				return fmt.Errorf("failed querying %v: %w", query, err)
			}
			actualPtr := reflect.New(reflect.TypeOf(expected)).Interface()
			if err := val.Get(actualPtr); err != nil {
				return fmt.Errorf("failed converting result of query %v: %w", query, err)
			}
			actual := reflect.ValueOf(actualPtr).Elem().Interface()
			if lastErr = r.CheckAssertion(r.Assert.Equal(expected, actual)); lastErr == nil {
				return nil
			}
		}
	}
}

// DoUntilEventually polls predicate every interval until it returns true.
func (r *Runner) DoUntilEventually(
	ctx context.Context,
	interval time.Duration,
	timeout time.Duration,
	predicate func() bool,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	timeoutCh := time.After(timeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeoutCh:
			return fmt.Errorf("timeout after %v waiting for condition", timeout)
		case <-ticker.C:
			if predicate() {
				return nil
			}
		}
	}
}

// ResetStickyQueue moves the run's pending task back to the normal queue.
// Use it after StopWorker so a new worker picks the task up without waiting
// for the sticky timeout.
func (r *Runner) ResetStickyQueue(ctx context.Context, run client.WorkflowRun) error {
	_, err := r.Client.WorkflowService().ResetStickyTaskQueue(ctx, &workflowservice.ResetStickyTaskQueueRequest{
		Namespace: r.Namespace,
		Execution: &common.WorkflowExecution{
			WorkflowId: run.GetID(),
			RunId:      run.GetRunID(),
		},
	})
	return err
}
