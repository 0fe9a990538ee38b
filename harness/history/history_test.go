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
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/common/v1"
	"go.temporal.io/api/enums/v1"
	historypb "go.temporal.io/api/history/v1"
	"go.temporal.io/api/serviceerror"
	workflowpb "go.temporal.io/api/workflow/v1"
	"go.temporal.io/api/workflowservice/v1"
	"google.golang.org/grpc"
)

// pagedService serves pages[i] for token i and fails the first failFirst calls.
type pagedService struct {
	mu        sync.Mutex
	pages     [][]*historypb.HistoryEvent
	failFirst int
	failWith  error
	calls     int
	tokens    [][]byte

	open   []*workflowpb.WorkflowExecutionInfo
	closed []*workflowpb.WorkflowExecutionInfo
}

func (s *pagedService) GetWorkflowExecutionHistory(_ context.Context, in *workflowservice.GetWorkflowExecutionHistoryRequest, _ ...grpc.CallOption) (*workflowservice.GetWorkflowExecutionHistoryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failFirst {
		return nil, s.failWith
	}
	s.tokens = append(s.tokens, in.GetNextPageToken())
	idx := 0
	if tok := in.GetNextPageToken(); len(tok) > 0 {
		_, _ = fmt.Sscanf(string(tok), "page-%d", &idx)
	}
	resp := &workflowservice.GetWorkflowExecutionHistoryResponse{
		History: &historypb.History{Events: s.pages[idx]},
	}
	if idx+1 < len(s.pages) {
		resp.NextPageToken = []byte(fmt.Sprintf("page-%d", idx+1))
	}
	return resp, nil
}

func (s *pagedService) ListOpenWorkflowExecutions(context.Context, *workflowservice.ListOpenWorkflowExecutionsRequest, ...grpc.CallOption) (*workflowservice.ListOpenWorkflowExecutionsResponse, error) {
	return &workflowservice.ListOpenWorkflowExecutionsResponse{Executions: s.open}, nil
}

func (s *pagedService) ListClosedWorkflowExecutions(context.Context, *workflowservice.ListClosedWorkflowExecutionsRequest, ...grpc.CallOption) (*workflowservice.ListClosedWorkflowExecutionsResponse, error) {
	return &workflowservice.ListClosedWorkflowExecutionsResponse{Executions: s.closed}, nil
}

func event(id int64, eventType enums.EventType) *historypb.HistoryEvent {
	return &historypb.HistoryEvent{EventId: id, EventType: eventType}
}

func startedHistory(workflowType string) *historypb.History {
	return &historypb.History{Events: []*historypb.HistoryEvent{{
		EventId:   1,
		EventType: enums.EVENT_TYPE_WORKFLOW_EXECUTION_STARTED,
		Attributes: &historypb.HistoryEvent_WorkflowExecutionStartedEventAttributes{
			WorkflowExecutionStartedEventAttributes: &historypb.WorkflowExecutionStartedEventAttributes{
				WorkflowType: &common.WorkflowType{Name: workflowType},
			},
		},
	}}}
}

func TestFetcher_EventsFollowsPageTokens(t *testing.T) {
	svc := &pagedService{pages: [][]*historypb.HistoryEvent{
		{event(1, enums.EVENT_TYPE_WORKFLOW_EXECUTION_STARTED), event(2, enums.EVENT_TYPE_WORKFLOW_TASK_SCHEDULED)},
		{event(3, enums.EVENT_TYPE_WORKFLOW_TASK_STARTED), event(4, enums.EVENT_TYPE_WORKFLOW_TASK_COMPLETED)},
		{event(5, enums.EVENT_TYPE_ACTIVITY_TASK_SCHEDULED), event(6, enums.EVENT_TYPE_ACTIVITY_TASK_STARTED)},
		{},
	}}
	f := &Fetcher{Service: svc, Namespace: "default"}

	events, err := f.Events(context.Background(), "wf", "run")
	require.NoError(t, err)
	require.Len(t, events, 6)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.GetEventId())
	}
	assert.Equal(t, [][]byte{nil, []byte("page-1"), []byte("page-2"), []byte("page-3")}, svc.tokens)
}

func TestFetcher_EventsRetriesTransientErrors(t *testing.T) {
	svc := &pagedService{
		pages:     [][]*historypb.HistoryEvent{{event(1, enums.EVENT_TYPE_WORKFLOW_EXECUTION_STARTED)}},
		failFirst: 2,
		failWith:  serviceerror.NewUnavailable("frontend restarting"),
	}
	f := &Fetcher{Service: svc, PageDelay: time.Millisecond}

	events, err := f.Events(context.Background(), "wf", "")
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 3, svc.calls)
}

func TestFetcher_EventsGivesUpAfterAttempts(t *testing.T) {
	svc := &pagedService{
		pages:     [][]*historypb.HistoryEvent{{}},
		failFirst: 100,
		failWith:  serviceerror.NewNotFound("not yet visible"),
	}
	f := &Fetcher{Service: svc, PageAttempts: 3, PageDelay: time.Millisecond}

	_, err := f.Events(context.Background(), "wf", "")
	var notFound *serviceerror.NotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 3, svc.calls)
}

func TestFetcher_EventsDoesNotRetryPermanentErrors(t *testing.T) {
	svc := &pagedService{
		pages:     [][]*historypb.HistoryEvent{{}},
		failFirst: 100,
		failWith:  serviceerror.NewInvalidArgument("bad request"),
	}
	f := &Fetcher{Service: svc, PageDelay: time.Millisecond}

	_, err := f.Events(context.Background(), "wf", "")
	require.Error(t, err)
	assert.Equal(t, 1, svc.calls)
}

func TestFetcher_GetExecutionsFiltersTaskQueue(t *testing.T) {
	exec := func(id, tq string) *workflowpb.WorkflowExecutionInfo {
		return &workflowpb.WorkflowExecutionInfo{
			Execution: &common.WorkflowExecution{WorkflowId: id, RunId: "r-" + id},
			TaskQueue: tq,
			Status:    enums.WORKFLOW_EXECUTION_STATUS_COMPLETED,
		}
	}
	svc := &pagedService{
		open:   []*workflowpb.WorkflowExecutionInfo{exec("a", "tq")},
		closed: []*workflowpb.WorkflowExecutionInfo{exec("a", "tq"), exec("b", "other"), exec("c", "tq")},
	}
	f := &Fetcher{Service: svc, TaskQueue: "tq", FeatureStarted: time.Now()}

	execs, err := f.GetExecutions(context.Background())
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, "a", execs[0].GetExecution().GetWorkflowId())
	assert.Equal(t, "c", execs[1].GetExecution().GetWorkflowId())
}

func TestFetcher_FetchReportsStillRunning(t *testing.T) {
	svc := &pagedService{closed: []*workflowpb.WorkflowExecutionInfo{{
		Execution: &common.WorkflowExecution{WorkflowId: "stuck", RunId: "r"},
		TaskQueue: "tq",
		Status:    enums.WORKFLOW_EXECUTION_STATUS_RUNNING,
	}}}
	f := &Fetcher{Service: svc, TaskQueue: "tq", FeatureStarted: time.Now(), OpenWait: 250 * time.Millisecond}

	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still running: stuck (run: r)")
}

func TestHistories_Sort(t *testing.T) {
	h := Histories{startedHistory("b"), startedHistory("a"), startedHistory("c")}
	require.NoError(t, h.Sort())
	for i, want := range []string{"a", "b", "c"} {
		name, err := workflowTypeName(h[i])
		require.NoError(t, err)
		assert.Equal(t, want, name)
	}

	bad := Histories{startedHistory("a"), {}}
	assert.ErrorIs(t, bad.Sort(), ErrEmptyHistory)
}

func TestStorage_RoundTrip(t *testing.T) {
	s := &Storage{Dir: filepath.Join(t.TempDir(), "history"), Lang: "go"}
	in := &StoredSet{ByVersion: map[string]Histories{
		"v1.10.0": {startedHistory("Workflow")},
		"v1.9.0":  {startedHistory("Other"), startedHistory("Workflow")},
	}}
	require.NoError(t, s.Store(in))

	out, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"v1.9.0", "v1.10.0"}, out.Versions())
	for version, hist := range in.ByVersion {
		assert.True(t, hist.Equals(out.ByVersion[version]), "version %s", version)
	}
}

func TestStorage_LoadMissingDir(t *testing.T) {
	s := &Storage{Dir: filepath.Join(t.TempDir(), "nope"), Lang: "go"}
	set, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, set.ByVersion)
}

func TestFindAndCountEvents(t *testing.T) {
	events := []*historypb.HistoryEvent{
		event(1, enums.EVENT_TYPE_WORKFLOW_EXECUTION_STARTED),
		event(2, enums.EVENT_TYPE_ACTIVITY_TASK_SCHEDULED),
		event(3, enums.EVENT_TYPE_ACTIVITY_TASK_SCHEDULED),
	}
	assert.Equal(t, int64(2), FindEvent(events, enums.EVENT_TYPE_ACTIVITY_TASK_SCHEDULED).GetEventId())
	assert.Nil(t, FindEvent(events, enums.EVENT_TYPE_TIMER_FIRED))
	assert.Equal(t, 2, CountEvents(events, enums.EVENT_TYPE_ACTIVITY_TASK_SCHEDULED))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", serviceerror.NewUnavailable("x"))))
	assert.True(t, IsTransient(serviceerror.NewResourceExhausted(enums.RESOURCE_EXHAUSTED_CAUSE_RPS_LIMIT, "x")))
	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsTransient(serviceerror.NewPermissionDenied("x", "")))
}
