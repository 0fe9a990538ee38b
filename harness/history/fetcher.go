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

package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"
	"go.temporal.io/api/common/v1"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/filter/v1"
	historypb "go.temporal.io/api/history/v1"
	"go.temporal.io/api/serviceerror"
	workflowpb "go.temporal.io/api/workflow/v1"
	"go.temporal.io/api/workflowservice/v1"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	DefaultPageAttempts = 5
	DefaultPageDelay    = 200 * time.Millisecond
	DefaultOpenWait     = 5 * time.Second
)

// PageSource serves one page of a workflow history per call.
type PageSource interface {
	GetWorkflowExecutionHistory(ctx context.Context, in *workflowservice.GetWorkflowExecutionHistoryRequest, opts ...grpc.CallOption) (*workflowservice.GetWorkflowExecutionHistoryResponse, error)
}

// Service is the subset of the workflow service the fetcher uses.
type Service interface {
	PageSource
	ListOpenWorkflowExecutions(ctx context.Context, in *workflowservice.ListOpenWorkflowExecutionsRequest, opts ...grpc.CallOption) (*workflowservice.ListOpenWorkflowExecutionsResponse, error)
	ListClosedWorkflowExecutions(ctx context.Context, in *workflowservice.ListClosedWorkflowExecutionsRequest, opts ...grpc.CallOption) (*workflowservice.ListClosedWorkflowExecutionsResponse, error)
}

// Fetcher fetches the histories a feature produced.
type Fetcher struct {
	Service   Service
	Namespace string
	TaskQueue string
	// FeatureStarted is approximate; executions started up to five minutes
	// earlier are considered.
	FeatureStarted time.Time

	// PageAttempts bounds retries of a single page on transient errors.
	PageAttempts uint
	PageDelay    time.Duration
	// OpenWait bounds how long Fetch waits for running executions to close.
	OpenWait time.Duration
}

func (f *Fetcher) pageAttempts() uint {
	if f.PageAttempts == 0 {
		return DefaultPageAttempts
	}
	return f.PageAttempts
}

func (f *Fetcher) pageDelay() time.Duration {
	if f.PageDelay == 0 {
		return DefaultPageDelay
	}
	return f.PageDelay
}

// Events returns the full event list of one execution in order, following
// continuation tokens until the server returns an empty one.
func (f *Fetcher) Events(ctx context.Context, workflowID, runID string) ([]*historypb.HistoryEvent, error) {
	return FetchEvents(ctx, f.Service, f.Namespace, workflowID, runID,
		retry.Attempts(f.pageAttempts()), retry.Delay(f.pageDelay()))
}

// FetchEvents pages through an execution's history. Each page is retried on
// transient errors according to opts.
func FetchEvents(ctx context.Context, src PageSource, namespace, workflowID, runID string, opts ...retry.Option) ([]*historypb.HistoryEvent, error) {
	retryOpts := append([]retry.Option{
		retry.Context(ctx),
		retry.Attempts(DefaultPageAttempts),
		retry.Delay(DefaultPageDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsTransient),
	}, opts...)

	var events []*historypb.HistoryEvent
	var token []byte
	for {
		resp, err := retry.DoWithData(
			func() (*workflowservice.GetWorkflowExecutionHistoryResponse, error) {
				return src.GetWorkflowExecutionHistory(ctx, &workflowservice.GetWorkflowExecutionHistoryRequest{
					Namespace:              namespace,
					Execution:              &common.WorkflowExecution{WorkflowId: workflowID, RunId: runID},
					NextPageToken:          token,
					HistoryEventFilterType: enums.HISTORY_EVENT_FILTER_TYPE_ALL_EVENT,
				})
			},
			retryOpts...,
		)
		if err != nil {
			return nil, fmt.Errorf("get history of %s (run %s): %w", workflowID, runID, err)
		}
		events = append(events, resp.GetHistory().GetEvents()...)
		if token = resp.GetNextPageToken(); len(token) == 0 {
			return events, nil
		}
	}
}

// IsTransient reports errors worth retrying while the server catches up.
func IsTransient(err error) bool {
	var unavailable *serviceerror.Unavailable
	var notFound *serviceerror.NotFound
	var exhausted *serviceerror.ResourceExhausted
	var deadline *serviceerror.DeadlineExceeded
	return errors.As(err, &unavailable) ||
		errors.As(err, &notFound) ||
		errors.As(err, &exhausted) ||
		errors.As(err, &deadline)
}

// Fetch returns the histories of every execution on the task queue, sorted
// by workflow type. It waits up to OpenWait for at least one execution to
// exist and none to still be running.
func (f *Fetcher) Fetch(ctx context.Context) (Histories, error) {
	openWait := f.OpenWait
	if openWait == 0 {
		openWait = DefaultOpenWait
	}

	var execs []*workflowpb.WorkflowExecutionInfo
	var stillRunning []string
	for start := time.Now(); time.Since(start) < openWait; {
		var err error
		execs, err = f.GetExecutions(ctx)
		if err != nil {
			return nil, err
		}
		stillRunning = stillRunning[:0]
		for _, exec := range execs {
			if exec.GetStatus() == enums.WORKFLOW_EXECUTION_STATUS_RUNNING {
				stillRunning = append(stillRunning,
					fmt.Sprintf("%v (run: %v)", exec.GetExecution().GetWorkflowId(), exec.GetExecution().GetRunId()))
			}
		}
		if len(stillRunning) == 0 && len(execs) > 0 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	if len(stillRunning) > 0 {
		return nil, fmt.Errorf("after %v, %v workflow(s) are still running: %v", openWait, len(stillRunning),
			strings.Join(stillRunning, ", "))
	} else if len(execs) == 0 {
		return nil, fmt.Errorf("after %v, no workflow(s) found", openWait)
	}

	ret := make(Histories, 0, len(execs))
	for _, exec := range execs {
		events, err := f.Events(ctx, exec.GetExecution().GetWorkflowId(), exec.GetExecution().GetRunId())
		if err != nil {
			return nil, err
		}
		ret = append(ret, &historypb.History{Events: events})
	}
	if err := ret.Sort(); err != nil {
		return nil, err
	}
	return ret, nil
}

// GetExecutions lists open and closed executions on the task queue that
// started near FeatureStarted.
func (f *Fetcher) GetExecutions(ctx context.Context) ([]*workflowpb.WorkflowExecutionInfo, error) {
	filterTime := &filter.StartTimeFilter{EarliestTime: timestamppb.New(f.FeatureStarted.Add(-5 * time.Minute))}
	seen := map[string]bool{}
	var execs []*workflowpb.WorkflowExecutionInfo
	collect := func(infos []*workflowpb.WorkflowExecutionInfo) {
		for _, exec := range infos {
			key := exec.GetExecution().GetWorkflowId() + "_||_" + exec.GetExecution().GetRunId()
			if exec.GetTaskQueue() == f.TaskQueue && !seen[key] {
				execs = append(execs, exec)
				seen[key] = true
			}
		}
	}

	var token []byte
	for {
		resp, err := f.Service.ListOpenWorkflowExecutions(ctx, &workflowservice.ListOpenWorkflowExecutionsRequest{
			Namespace:       f.Namespace,
			MaximumPageSize: 1000,
			NextPageToken:   token,
			StartTimeFilter: filterTime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed listing open workflows: %w", err)
		}
		collect(resp.GetExecutions())
		if token = resp.GetNextPageToken(); len(token) == 0 {
			break
		}
	}
	for {
		resp, err := f.Service.ListClosedWorkflowExecutions(ctx, &workflowservice.ListClosedWorkflowExecutionsRequest{
			Namespace:       f.Namespace,
			MaximumPageSize: 1000,
			NextPageToken:   token,
			StartTimeFilter: filterTime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed listing closed workflows: %w", err)
		}
		collect(resp.GetExecutions())
		if token = resp.GetNextPageToken(); len(token) == 0 {
			break
		}
	}
	return execs, nil
}
