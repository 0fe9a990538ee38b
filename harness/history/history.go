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

// Package history fetches, stores and inspects workflow histories.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.temporal.io/api/enums/v1"
	historypb "go.temporal.io/api/history/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

var (
	ErrEmptyHistory      = errors.New("no events in history")
	ErrNotStartedHistory = errors.New("first event not a workflow started event")
)

// Histories is a set of workflow histories, one per execution.
type Histories []*historypb.History

// Sort orders histories by the workflow type of their first event.
func (h Histories) Sort() error {
	names := make(map[*historypb.History]string, len(h))
	for _, hist := range h {
		name, err := workflowTypeName(hist)
		if err != nil {
			return err
		}
		names[hist] = name
	}
	sort.SliceStable(h, func(i, j int) bool { return names[h[i]] < names[h[j]] })
	return nil
}

func workflowTypeName(h *historypb.History) (string, error) {
	if len(h.GetEvents()) == 0 {
		return "", ErrEmptyHistory
	}
	attrs := h.GetEvents()[0].GetWorkflowExecutionStartedEventAttributes()
	if attrs == nil {
		return "", ErrNotStartedHistory
	}
	return attrs.GetWorkflowType().GetName(), nil
}

var historyMarshaler = protojson.MarshalOptions{Indent: "  "}

// MarshalJSON encodes a sorted copy of the histories as a JSON array of
// protojson objects.
func (h Histories) MarshalJSON() ([]byte, error) {
	sorted := h.Clone()
	if err := sorted.Sort(); err != nil {
		return nil, err
	}
	raw := make([]json.RawMessage, len(sorted))
	for i, hist := range sorted {
		b, err := historyMarshaler.Marshal(hist)
		if err != nil {
			return nil, fmt.Errorf("failed marshaling history: %w", err)
		}
		raw[i] = b
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes a JSON array of protojson histories.
func (h *Histories) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	hists := make(Histories, len(raw))
	for i, r := range raw {
		var hist historypb.History
		if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(r, &hist); err != nil {
			return fmt.Errorf("failed unmarshaling history %d: %w", i, err)
		}
		hists[i] = &hist
	}
	*h = hists
	return nil
}

// Clone deep-copies the histories.
func (h Histories) Clone() Histories {
	ret := make(Histories, len(h))
	for i, hist := range h {
		ret[i] = proto.Clone(hist).(*historypb.History)
	}
	return ret
}

// Equals compares histories pairwise.
func (h Histories) Equals(other Histories) bool {
	if len(h) != len(other) {
		return false
	}
	for i, hist := range h {
		if !proto.Equal(hist, other[i]) {
			return false
		}
	}
	return true
}

// FindEvent returns the first event of the given type, or nil.
func FindEvent(events []*historypb.HistoryEvent, eventType enums.EventType) *historypb.HistoryEvent {
	for _, e := range events {
		if e.GetEventType() == eventType {
			return e
		}
	}
	return nil
}

// CountEvents counts events of the given type.
func CountEvents(events []*historypb.HistoryEvent, eventType enums.EventType) int {
	n := 0
	for _, e := range events {
		if e.GetEventType() == eventType {
			n++
		}
	}
	return n
}
