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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

func TestFeature_StopLeavesActivityTime(t *testing.T) {
	f := Feature()
	stop := f.WorkerOptions.WorkerStopTimeout
	require.Positive(t, stop)
	// StopWorker, the pause and the restart all happen inside the activity's
	// schedule-to-close window.
	assert.Less(t, stop+time.Second, activityTimeout/2)
}

func TestBlocker_ReleaseUnblocks(t *testing.T) {
	b := NewBlocker()
	done := make(chan error, 1)
	go func() { done <- b.Block(t.Context()) }()

	select {
	case <-b.started():
	case <-time.After(time.Second):
		t.Fatal("Block did not report start")
	}
	b.release()
	b.release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Block did not return after release")
	}
}

func TestWorkflow_FetchAndAdd(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	blocker := NewBlocker()
	blocker.release()
	env.RegisterActivity(blocker)

	var updateResult any
	var updateErr error
	env.RegisterDelayedCallback(func() {
		env.UpdateWorkflow(FetchAndAdd, "update-1", &testsuite.TestUpdateCallback{
			OnAccept: func() {},
			OnReject: func(err error) { updateErr = err },
			OnComplete: func(result any, err error) {
				updateResult, updateErr = result, err
			},
		}, Addend)
	}, 0)
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(ShutdownSignal, nil)
	}, time.Minute)

	env.ExecuteWorkflow(Workflow)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	require.NoError(t, updateErr)
	assert.Equal(t, 0, updateResult)

	var got int
	require.NoError(t, env.GetWorkflowResult(&got))
	assert.Equal(t, Addend, got)
}
