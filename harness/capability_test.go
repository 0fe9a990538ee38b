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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
)

type updateCallerFunc func(ctx context.Context, options client.UpdateWorkflowOptions) (client.WorkflowUpdateHandle, error)

func (f updateCallerFunc) UpdateWorkflow(ctx context.Context, options client.UpdateWorkflowOptions) (client.WorkflowUpdateHandle, error) {
	return f(ctx, options)
}

func TestCheckUpdateSupported(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantSupported bool
		wantReason    string
		wantErr       bool
	}{
		{name: "unimplemented", err: serviceerror.NewUnimplemented("unknown method"), wantReason: UpdateTooOldReason},
		{name: "permission denied", err: serviceerror.NewPermissionDenied("disabled", ""), wantReason: UpdateDisabledReason},
		{name: "not found", err: serviceerror.NewNotFound("workflow not found"), wantSupported: true},
		{name: "other", err: serviceerror.NewInternal("boom"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got client.UpdateWorkflowOptions
			caller := updateCallerFunc(func(ctx context.Context, o client.UpdateWorkflowOptions) (client.WorkflowUpdateHandle, error) {
				got = o
				_, hasDeadline := ctx.Deadline()
				assert.True(t, hasDeadline)
				return nil, tt.err
			})

			supported, reason, err := CheckUpdateSupported(context.Background(), caller, time.Second)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSupported, supported)
			assert.Equal(t, tt.wantReason, reason)
			assert.Equal(t, "__does_not_exist", got.WorkflowID)
			assert.Equal(t, client.WorkflowUpdateStageCompleted, got.WaitForStage)
			assert.NotEmpty(t, got.UpdateID)
		})
	}
}

func TestCheckUpdateSupported_LateFailureOnGet(t *testing.T) {
	handle := &mocks.WorkflowUpdateHandle{}
	handle.On("Get", mock.Anything, mock.Anything).Return(serviceerror.NewUnimplemented("unknown method"))
	caller := updateCallerFunc(func(context.Context, client.UpdateWorkflowOptions) (client.WorkflowUpdateHandle, error) {
		return handle, nil
	})

	supported, reason, err := CheckUpdateSupported(context.Background(), caller, time.Second)
	require.NoError(t, err)
	assert.False(t, supported)
	assert.Equal(t, UpdateTooOldReason, reason)
}

func TestCheckAsyncAcceptedUpdateSupported(t *testing.T) {
	caller := updateCallerFunc(func(_ context.Context, o client.UpdateWorkflowOptions) (client.WorkflowUpdateHandle, error) {
		assert.Equal(t, client.WorkflowUpdateStageAccepted, o.WaitForStage)
		return nil, serviceerror.NewPermissionDenied("disabled", "")
	})
	supported, reason, err := CheckAsyncAcceptedUpdateSupported(context.Background(), caller, time.Second)
	require.NoError(t, err)
	assert.False(t, supported)
	assert.Equal(t, AsyncUpdateDisabledReason, reason)
}

func TestRunner_UnsupportedUpdateSkipsFeature(t *testing.T) {
	c := newMockClient()
	c.On("UpdateWorkflow", mock.Anything, mock.Anything).
		Return(nil, serviceerror.NewUnimplemented("unknown method UpdateWorkflowExecution"))

	p, err := PrepareFeature(Feature{
		Dir:       "update/basic",
		Workflows: echoWorkflow,
		Execute: func(ctx context.Context, r *Runner) (client.WorkflowRun, error) {
			if err := r.RequireUpdateSupport(ctx); err != nil {
				return nil, err
			}
			t.Error("feature continued after unsupported capability")
			return nil, nil
		},
	})
	require.NoError(t, err)

	err = RunFeature(context.Background(), testRunnerConfig(c, nil), p)
	skipped, reason := IsSkipped(err)
	assert.True(t, skipped)
	assert.Equal(t, UpdateTooOldReason, reason)
	assert.Equal(t, StatusSkipped, NewOutcome("update/basic", err, 0).Status)
	c.AssertExpectations(t)
}

func TestCheckScheduleSupported(t *testing.T) {
	handle := &mocks.ScheduleHandle{}
	handle.On("Describe", mock.Anything).Return(nil, serviceerror.NewNotFound("schedule not found"))
	schedules := &mocks.ScheduleClient{}
	schedules.On("GetHandle", mock.Anything, "__does_not_exist").Return(handle)
	c := &mocks.Client{}
	c.On("ScheduleClient").Return(schedules)

	supported, reason, err := CheckScheduleSupported(context.Background(), c, time.Second)
	require.NoError(t, err)
	assert.True(t, supported)
	assert.Empty(t, reason)
}
