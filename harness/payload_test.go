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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/api/enums/v1"
	historypb "go.temporal.io/api/history/v1"
	"go.temporal.io/sdk/client"
)

type sliceIterator struct {
	events []*historypb.HistoryEvent
}

func (s *sliceIterator) HasNext() bool { return len(s.events) > 0 }

func (s *sliceIterator) Next() (*historypb.HistoryEvent, error) {
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

type historyReaderFunc func(filter enums.HistoryEventFilterType) []*historypb.HistoryEvent

func (f historyReaderFunc) GetWorkflowHistory(_ context.Context, _ string, _ string, _ bool, filter enums.HistoryEventFilterType) client.HistoryEventIterator {
	return &sliceIterator{events: f(filter)}
}

func jsonPayload(data string) *commonpb.Payload {
	return &commonpb.Payload{
		Metadata: map[string][]byte{"encoding": []byte("json/plain")},
		Data:     []byte(data),
	}
}

func TestGetWorkflowPayloads(t *testing.T) {
	arg := jsonPayload(`{"spec":true}`)
	result := jsonPayload(`{"spec":true,"nested":{"count":3}}`)
	reader := historyReaderFunc(func(filter enums.HistoryEventFilterType) []*historypb.HistoryEvent {
		completed := &historypb.HistoryEvent{
			EventId:   5,
			EventType: enums.EVENT_TYPE_WORKFLOW_EXECUTION_COMPLETED,
			Attributes: &historypb.HistoryEvent_WorkflowExecutionCompletedEventAttributes{
				WorkflowExecutionCompletedEventAttributes: &historypb.WorkflowExecutionCompletedEventAttributes{
					Result: &commonpb.Payloads{Payloads: []*commonpb.Payload{result}},
				},
			},
		}
		if filter == enums.HISTORY_EVENT_FILTER_TYPE_CLOSE_EVENT {
			return []*historypb.HistoryEvent{completed}
		}
		return []*historypb.HistoryEvent{
			{
				EventId:   1,
				EventType: enums.EVENT_TYPE_WORKFLOW_EXECUTION_STARTED,
				Attributes: &historypb.HistoryEvent_WorkflowExecutionStartedEventAttributes{
					WorkflowExecutionStartedEventAttributes: &historypb.WorkflowExecutionStartedEventAttributes{
						Input: &commonpb.Payloads{Payloads: []*commonpb.Payload{arg}},
					},
				},
			},
			completed,
		}
	})

	ctx := context.Background()
	gotResult, err := GetWorkflowResultPayload(ctx, reader, "wf")
	require.NoError(t, err)
	assert.Same(t, result, gotResult)
	assert.Equal(t, "json/plain", PayloadEncoding(gotResult))

	count, err := PayloadField(gotResult, "nested.count")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count.Int())
	_, err = PayloadField(gotResult, "missing")
	assert.ErrorIs(t, err, ErrPayloadNotFound)

	gotArg, err := GetWorkflowArgumentPayload(ctx, reader, "wf")
	require.NoError(t, err)
	assert.Same(t, arg, gotArg)
}

func TestGetWorkflowResultPayload_NotCompleted(t *testing.T) {
	reader := historyReaderFunc(func(enums.HistoryEventFilterType) []*historypb.HistoryEvent {
		return []*historypb.HistoryEvent{{EventType: enums.EVENT_TYPE_WORKFLOW_EXECUTION_FAILED}}
	})
	_, err := GetWorkflowResultPayload(context.Background(), reader, "wf")
	assert.ErrorIs(t, err, ErrPayloadNotFound)
}

func TestPayloadField_NotJSON(t *testing.T) {
	_, err := PayloadField(&commonpb.Payload{Data: []byte{0x82, 0xa1}}, "a")
	assert.Error(t, err)
}

func TestAppErrorf(t *testing.T) {
	err := AppErrorf("attempt %d failed", 2)
	assert.EqualError(t, err, "attempt 2 failed")
	assert.Equal(t, int32(1), RetryDisabled.MaximumAttempts)
}

func TestNewOutcome(t *testing.T) {
	passed := NewOutcome("a/b", nil, time.Second)
	assert.Equal(t, StatusPassed, passed.Status)
	assert.Empty(t, passed.Message)

	skipped := NewOutcome("a/b", NewSkippedError("no proxy"), 0)
	assert.Equal(t, StatusSkipped, skipped.Status)
	assert.Equal(t, "no proxy", skipped.Message)

	failed := NewOutcome("a/b", NewAssertionError("Not equal", []string{"pkg.Fn file.go:1"}), 0)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "pkg.Fn file.go:1", failed.Trace())
	assert.Empty(t, NewOutcome("a/b", errors.New("plain"), 0).Trace())
}
