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

package summary

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngnhng/features/harness"
)

func sampleOutcomes() []harness.Outcome {
	return []harness.Outcome{
		harness.NewOutcome("activity/retry_on_error", nil, time.Second),
		harness.NewOutcome("update/basic", harness.NewSkippedError(harness.UpdateTooOldReason), 0),
		harness.NewOutcome("signal/external", errors.New("expected success, got: boom"), 0),
	}
}

func writeAll(t *testing.T, s Sink) {
	t.Helper()
	for _, o := range sampleOutcomes() {
		require.NoError(t, s.Write(context.Background(), o))
	}
	require.NoError(t, s.Close())
}

func TestOpen_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.jsonl")
	sink, err := Open(context.Background(), "file://"+path, nil)
	require.NoError(t, err)
	writeAll(t, sink)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	g := goldie.New(t)
	g.Assert(t, "file_sink", got)
}

func TestOpen_TCPSink(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	received := make(chan Summary, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			close(received)
			return
		}
		defer conn.Close()
		s, _ := Read(conn, nil)
		received <- s
	}()

	sink, err := Open(context.Background(), "tcp://"+l.Addr().String(), nil)
	require.NoError(t, err)
	writeAll(t, sink)

	select {
	case s := <-received:
		require.Len(t, s, 3)
		entry, ok := s.Find("update/basic")
		require.True(t, ok)
		assert.Equal(t, harness.StatusSkipped, entry.Status)
		assert.Equal(t, harness.UpdateTooOldReason, entry.Message)
		_, ok = s.Find("missing")
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("no summary received")
	}
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), "udp://127.0.0.1:9", nil)
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	sink, err := Open(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Same(t, Discard, sink)
	assert.NoError(t, sink.Write(context.Background(), harness.Outcome{Name: "x"}))
}

func TestLineSink_WriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.jsonl")
	sink, err := Open(context.Background(), "file://"+path, nil)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Write(context.Background(), harness.Outcome{Name: "late"}), ErrSinkClosed)
}

func TestRead_SkipsMalformedLines(t *testing.T) {
	in := strings.NewReader(`{"name":"a","outcome":"PASSED","message":""}
not json
{"name":"b","outcome":"FAILED","message":"m"}`)
	var bad []string
	s, err := Read(in, func(line []byte, _ error) { bad = append(bad, strings.TrimSpace(string(line))) })
	require.NoError(t, err)
	require.Len(t, s, 2)
	assert.Equal(t, "b", s[1].Name)
	assert.Equal(t, harness.StatusFailed, s[1].Status)
	assert.Equal(t, []string{"not json"}, bad)
}
