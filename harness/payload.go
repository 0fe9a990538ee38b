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
	"time"

	"github.com/tidwall/gjson"
	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/api/enums/v1"
	historypb "go.temporal.io/api/history/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/temporal"
)

// RetryDisabled is a retry policy with a single attempt.
var RetryDisabled = &temporal.RetryPolicy{MaximumAttempts: 1}

// AppErrorf creates a retryable application error of type "FeatureError".
func AppErrorf(msg string, args ...any) error {
	return temporal.NewApplicationError(fmt.Sprintf(msg, args...), "FeatureError")
}

// ErrPayloadNotFound is returned when the requested event or payload is absent.
var ErrPayloadNotFound = errors.New("payload not found in history")

// HistoryReader is the client call payload helpers read history through.
type HistoryReader interface {
	GetWorkflowHistory(ctx context.Context, workflowID string, runID string, isLongPoll bool, filterType enums.HistoryEventFilterType) client.HistoryEventIterator
}

// ExecuteWithArgs returns an Execute hook that starts workflow with args
// using the default start options.
func ExecuteWithArgs(workflow any, args ...any) func(context.Context, *Runner) (client.WorkflowRun, error) {
	return func(ctx context.Context, r *Runner) (client.WorkflowRun, error) {
		return r.ExecuteWorkflow(ctx, workflow, args...)
	}
}

// FindHistoryEvent returns the first event satisfying cond, or nil.
func FindHistoryEvent(it client.HistoryEventIterator, cond func(*historypb.HistoryEvent) bool) (*historypb.HistoryEvent, error) {
	for it.HasNext() {
		ev, err := it.Next()
		if err != nil {
			return nil, err
		}
		if cond(ev) {
			return ev, nil
		}
	}
	return nil, nil
}

// GetWorkflowResultPayload returns the raw payload the workflow completed with.
func GetWorkflowResultPayload(ctx context.Context, c HistoryReader, workflowID string) (*commonpb.Payload, error) {
	it := c.GetWorkflowHistory(ctx, workflowID, "", true, enums.HISTORY_EVENT_FILTER_TYPE_CLOSE_EVENT)
	ev, err := FindHistoryEvent(it, func(ev *historypb.HistoryEvent) bool {
		return ev.GetEventType() == enums.EVENT_TYPE_WORKFLOW_EXECUTION_COMPLETED
	})
	if err != nil {
		return nil, err
	}
	payloads := ev.GetWorkflowExecutionCompletedEventAttributes().GetResult().GetPayloads()
	if len(payloads) == 0 {
		return nil, fmt.Errorf("%w: completion result of %s", ErrPayloadNotFound, workflowID)
	}
	return payloads[0], nil
}

// GetWorkflowArgumentPayload returns the first raw argument the workflow started with.
func GetWorkflowArgumentPayload(ctx context.Context, c HistoryReader, workflowID string) (*commonpb.Payload, error) {
	it := c.GetWorkflowHistory(ctx, workflowID, "", false, enums.HISTORY_EVENT_FILTER_TYPE_ALL_EVENT)
	ev, err := FindHistoryEvent(it, func(ev *historypb.HistoryEvent) bool {
		return ev.GetEventType() == enums.EVENT_TYPE_WORKFLOW_EXECUTION_STARTED
	})
	if err != nil {
		return nil, err
	}
	payloads := ev.GetWorkflowExecutionStartedEventAttributes().GetInput().GetPayloads()
	if len(payloads) == 0 {
		return nil, fmt.Errorf("%w: start input of %s", ErrPayloadNotFound, workflowID)
	}
	return payloads[0], nil
}

// PayloadEncoding returns the payload's encoding metadata.
func PayloadEncoding(p *commonpb.Payload) string {
	return string(p.GetMetadata()[converter.MetadataEncoding])
}

// PayloadField extracts a gjson path from a JSON payload's data.
func PayloadField(p *commonpb.Payload, path string) (gjson.Result, error) {
	data := p.GetData()
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("payload with encoding %q is not JSON", PayloadEncoding(p))
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return res, fmt.Errorf("%w: field %q", ErrPayloadNotFound, path)
	}
	return res, nil
}

// WaitForActivityTaskScheduled polls the run's history until an activity
// task has been scheduled.
func (r *Runner) WaitForActivityTaskScheduled(ctx context.Context, run client.WorkflowRun, timeout time.Duration) error {
	return r.DoUntilEventually(ctx, 100*time.Millisecond, timeout, func() bool {
		it := r.Client.GetWorkflowHistory(ctx, run.GetID(), run.GetRunID(), false, enums.HISTORY_EVENT_FILTER_TYPE_ALL_EVENT)
		ev, err := FindHistoryEvent(it, func(ev *historypb.HistoryEvent) bool {
			return ev.GetEventType() == enums.EVENT_TYPE_ACTIVITY_TASK_SCHEDULED
		})
		return err == nil && ev != nil
	})
}

// RequireNoUpdateRejectedEvents fails when any history of this run holds an
// update-rejected event.
func (r *Runner) RequireNoUpdateRejectedEvents(ctx context.Context) error {
	histories, err := r.HistoryFetcher().Fetch(ctx)
	if err != nil {
		return err
	}
	for _, hist := range histories {
		for _, ev := range hist.GetEvents() {
			if ev.GetEventType() == enums.EVENT_TYPE_WORKFLOW_EXECUTION_UPDATE_REJECTED {
				return NewAssertionError("found a workflow update rejected event", captureFrames(2))
			}
		}
	}
	r.log.Debug("no update rejected events", "histories", len(histories))
	return nil
}
