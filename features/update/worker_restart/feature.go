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

package worker_restart

import (
	"context"
	"sync"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

const (
	FetchAndAdd    = "fetchAndAdd"
	ShutdownSignal = "shutdown_signal"
	Addend         = 1
	blockActivity  = "Block"

	activityTimeout = 10 * time.Second
	// The stop must not eat into activityTimeout while Block holds the
	// activity open.
	workerStopTimeout = 100 * time.Millisecond
)

// Blocker holds the update activity until the driver lets it go. One is
// built per feature value so runs never share channels. Block is its only
// exported method since every exported method registers as an activity.
type Blocker struct {
	startedCh   chan struct{}
	releaseCh   chan struct{}
	startedOnce sync.Once
	releaseOnce sync.Once
}

func NewBlocker() *Blocker {
	return &Blocker{startedCh: make(chan struct{}), releaseCh: make(chan struct{})}
}

// Block reports that the update reached its activity and waits for release.
func (b *Blocker) Block(ctx context.Context) error {
	b.startedOnce.Do(func() { close(b.startedCh) })
	select {
	case <-b.releaseCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Blocker) started() <-chan struct{} { return b.startedCh }

func (b *Blocker) release() {
	b.releaseOnce.Do(func() { close(b.releaseCh) })
}

func Feature() harness.Feature {
	blocker := NewBlocker()
	return harness.Feature{
		Dir:             "update/worker_restart",
		Workflows:       Workflow,
		Activities:      blocker,
		WorkerOptions:   worker.Options{WorkerStopTimeout: workerStopTimeout},
		ExpectRunResult: 0 + Addend,
		Execute: func(ctx context.Context, r *harness.Runner) (client.WorkflowRun, error) {
			return Execute(ctx, r, blocker)
		},
	}
}

// Execute stops the worker while an update is running its activity and
// expects the update to complete on the restarted worker.
func Execute(ctx context.Context, r *harness.Runner, blocker *Blocker) (client.WorkflowRun, error) {
	if err := r.RequireUpdateSupport(ctx); err != nil {
		return nil, err
	}
	run, err := r.ExecuteDefault(ctx)
	if err != nil {
		return nil, err
	}
	defer blocker.release()

	type updateOutcome struct {
		result int
		err    error
	}
	outcome := make(chan updateOutcome, 1)
	go func() {
		handle, err := r.Client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
			WorkflowID:   run.GetID(),
			RunID:        run.GetRunID(),
			UpdateName:   FetchAndAdd,
			Args:         []any{Addend},
			WaitForStage: client.WorkflowUpdateStageCompleted,
		})
		if err != nil {
			outcome <- updateOutcome{err: err}
			return
		}
		var result int
		err = handle.Get(ctx, &result)
		outcome <- updateOutcome{result: result, err: err}
	}()

	select {
	case <-blocker.started():
	case o := <-outcome:
		return nil, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r.StopWorker()
	if err := r.ResetStickyQueue(ctx, run); err != nil {
		return nil, err
	}
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	blocker.release()
	r.Require.NoError(r.StartWorker())

	var o updateOutcome
	select {
	case o = <-outcome:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if o.err != nil {
		return run, o.err
	}
	r.Require.Equal(0, o.result)

	r.Require.NoError(r.Client.SignalWorkflow(ctx, run.GetID(), run.GetRunID(), ShutdownSignal, nil))
	return run, nil
}

// Workflow serves fetch-and-add updates until told to shut down.
func Workflow(ctx workflow.Context) (int, error) {
	counter := 0
	err := workflow.SetUpdateHandler(ctx, FetchAndAdd, func(ctx workflow.Context, i int) (int, error) {
		actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{ScheduleToCloseTimeout: activityTimeout})
		if err := workflow.ExecuteActivity(actx, blockActivity).Get(ctx, nil); err != nil {
			return 0, err
		}
		prev := counter
		counter += i
		return prev, nil
	})
	if err != nil {
		return 0, err
	}
	workflow.GetSignalChannel(ctx, ShutdownSignal).Receive(ctx, nil)
	return counter, nil
}
