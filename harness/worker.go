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
	"sync"
	"sync/atomic"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// WorkerRuntime is the part of worker.Worker the runner drives.
type WorkerRuntime interface {
	RegisterWorkflowWithOptions(w any, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a any, options activity.RegisterOptions)
	// Run blocks until interruptCh is closed or the worker fails to start.
	Run(interruptCh <-chan any) error
}

var _ WorkerRuntime = (worker.Worker)(nil)

// WorkerFactory builds a worker bound to one client and task queue.
type WorkerFactory func(c client.Client, taskQueue string, options worker.Options) WorkerRuntime

// DefaultWorkerFactory builds a real SDK worker.
func DefaultWorkerFactory(c client.Client, taskQueue string, options worker.Options) WorkerRuntime {
	return worker.New(c, taskQueue, options)
}

// WorkerHandle is one running worker. Stop blocks until the worker's run
// loop has returned, so a stopped handle has released its pollers.
type WorkerHandle struct {
	TaskQueue string

	runtime   WorkerRuntime
	interrupt chan any
	done      chan struct{}
	stopOnce  sync.Once
	stopping  atomic.Bool
	err       error
}

// startWorkerHandle runs rt on its own goroutine. onFailure is called when
// Run returns an error that was not caused by Stop.
func startWorkerHandle(taskQueue string, rt WorkerRuntime, onFailure func(error)) *WorkerHandle {
	h := &WorkerHandle{
		TaskQueue: taskQueue,
		runtime:   rt,
		interrupt: make(chan any),
		done:      make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		err := rt.Run(h.interrupt)
		h.err = err
		if err != nil && !h.stopping.Load() && onFailure != nil {
			onFailure(err)
		}
	}()
	return h
}

// Stop signals the worker to shut down and waits for it to drain. The
// SDK bounds the drain by worker.Options.WorkerStopTimeout. Safe to call
// more than once.
func (h *WorkerHandle) Stop() {
	h.stopOnce.Do(func() {
		h.stopping.Store(true)
		close(h.interrupt)
	})
	<-h.done
}

// Done is closed once the worker's run loop has returned.
func (h *WorkerHandle) Done() <-chan struct{} {
	return h.done
}

// Err is the run loop's error once Done is closed, nil before.
func (h *WorkerHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// StartWorker creates, registers and starts a worker on the runner's task
// queue. It returns once the worker goroutine is launched.
func (r *Runner) StartWorker() error {
	if hook := r.Feature.BeforeWorkerStart; hook != nil {
		if err := hook(r); err != nil {
			return err
		}
	}

	r.workerMu.Lock()
	defer r.workerMu.Unlock()
	if r.worker != nil {
		return ErrWorkerRunning
	}

	rt := r.NewWorker(r.Client, r.TaskQueue, r.Feature.WorkerOptions)
	for _, wf := range r.Feature.Workflows {
		rt.RegisterWorkflowWithOptions(wf.Workflow, wf.Options)
	}
	for _, act := range r.Feature.Activities {
		rt.RegisterActivityWithOptions(act.Activity, act.Options)
	}

	r.worker = startWorkerHandle(r.TaskQueue, rt, r.reportWorkerFailure)
	r.log.Debug("worker started", "task_queue", r.TaskQueue)
	return nil
}

// StopWorker stops the live worker, if any, and waits for it to drain.
func (r *Runner) StopWorker() {
	r.workerMu.Lock()
	defer r.workerMu.Unlock()
	if r.worker == nil {
		return
	}
	r.worker.Stop()
	r.log.Debug("worker stopped", "task_queue", r.TaskQueue)
	r.worker = nil
}

// RestartWorker fully drains the current worker before starting a new one
// with the same registrations.
func (r *Runner) RestartWorker() error {
	r.StopWorker()
	return r.StartWorker()
}

// Worker returns the live worker handle or nil.
func (r *Runner) Worker() *WorkerHandle {
	r.workerMu.Lock()
	defer r.workerMu.Unlock()
	return r.worker
}

func (r *Runner) reportWorkerFailure(err error) {
	r.log.Error("worker failed", "task_queue", r.TaskQueue, "error", err)
	select {
	case r.workerFailures <- err:
	default:
	}
}
