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
	"time"

	"github.com/gofrs/uuid/v5"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

const (
	missingTarget = "__does_not_exist"

	UpdateTooOldReason        = "server version too old to support update"
	UpdateDisabledReason      = "server support for update is disabled; set frontend.enableUpdateWorkflowExecution=true in dynamic config to enable"
	AsyncUpdateDisabledReason = "server support for asynchronous (accepted) updates is disabled; set frontend.enableUpdateWorkflowExecutionAsyncAccepted=true in dynamic config to enable"
	ScheduleTooOldReason      = "server version too old to support schedules"
	ScheduleDisabledReason    = "server support for schedules is disabled"
)

// UpdateCaller is the client call the update capability checks make.
type UpdateCaller interface {
	UpdateWorkflow(ctx context.Context, options client.UpdateWorkflowOptions) (client.WorkflowUpdateHandle, error)
}

// ScheduleDescriber is the client call the schedule capability check makes.
type ScheduleDescriber interface {
	ScheduleClient() client.ScheduleClient
}

// classifyCapabilityError maps the error of a call against a missing target: NotFound
// means the server understood the call. An unclassified error is returned.
func classifyCapabilityError(err error, tooOld, disabled string) (bool, string, error) {
	var (
		notFound      *serviceerror.NotFound
		denied        *serviceerror.PermissionDenied
		unimplemented *serviceerror.Unimplemented
	)
	switch {
	case err == nil, errors.As(err, &notFound):
		return true, "", nil
	case errors.As(err, &unimplemented):
		return false, tooOld, nil
	case errors.As(err, &denied):
		return false, disabled, nil
	default:
		return false, "", err
	}
}

// CheckUpdateSupported checks whether the server accepts workflow updates.
// The check runs under its own timeout.
func CheckUpdateSupported(ctx context.Context, c UpdateCaller, timeout time.Duration) (bool, string, error) {
	return checkUpdateStage(ctx, c, timeout, client.WorkflowUpdateStageCompleted, UpdateDisabledReason)
}

// CheckAsyncAcceptedUpdateSupported checks whether the server accepts
// updates that return once accepted.
func CheckAsyncAcceptedUpdateSupported(ctx context.Context, c UpdateCaller, timeout time.Duration) (bool, string, error) {
	return checkUpdateStage(ctx, c, timeout, client.WorkflowUpdateStageAccepted, AsyncUpdateDisabledReason)
}

func checkUpdateStage(
	ctx context.Context,
	c UpdateCaller,
	timeout time.Duration,
	stage client.WorkflowUpdateStage,
	disabled string,
) (bool, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	handle, err := c.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		UpdateID:     uuid.Must(uuid.NewV4()).String(),
		WorkflowID:   missingTarget,
		UpdateName:   missingTarget,
		WaitForStage: stage,
	})
	if err != nil || handle == nil {
		return classifyCapabilityError(err, UpdateTooOldReason, disabled)
	}
	// Some server versions only fail once the outcome is requested. Any
	// other outcome of Get still means the call was accepted.
	if supported, reason, err := classifyCapabilityError(handle.Get(ctx, nil), UpdateTooOldReason, disabled); err == nil && !supported {
		return false, reason, nil
	}
	return true, "", nil
}

// CheckScheduleSupported checks whether the server serves the schedule API.
func CheckScheduleSupported(ctx context.Context, c ScheduleDescriber, timeout time.Duration) (bool, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := c.ScheduleClient().GetHandle(ctx, missingTarget).Describe(ctx)
	return classifyCapabilityError(err, ScheduleTooOldReason, ScheduleDisabledReason)
}

// RequireUpdateSupport returns a skip when the server cannot run updates.
func (r *Runner) RequireUpdateSupport(ctx context.Context) error {
	return r.requireSupport(CheckUpdateSupported(ctx, r.Client, r.CapabilityTimeout))
}

// RequireAsyncAcceptedUpdateSupport returns a skip when the server cannot
// run async-accepted updates.
func (r *Runner) RequireAsyncAcceptedUpdateSupport(ctx context.Context) error {
	return r.requireSupport(CheckAsyncAcceptedUpdateSupported(ctx, r.Client, r.CapabilityTimeout))
}

// RequireScheduleSupport returns a skip when the server has no schedules.
func (r *Runner) RequireScheduleSupport(ctx context.Context) error {
	return r.requireSupport(CheckScheduleSupported(ctx, r.Client, r.CapabilityTimeout))
}

func (r *Runner) requireSupport(supported bool, reason string, err error) error {
	if err != nil {
		return err
	}
	if !supported {
		r.log.Info("capability not supported by server", "reason", reason)
		return r.Skip(reason)
	}
	return nil
}
