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

// Package summary streams feature outcomes as JSON lines to a tcp, file or
// nats destination.
package summary

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"sync"

	"github.com/ngnhng/features/harness"
)

var (
	// ErrUnsupportedScheme is returned by Open for URIs other than tcp, file and nats
	ErrUnsupportedScheme = errors.New("unsupported summary URI scheme")

	// ErrSinkClosed is returned when writing to a closed sink
	ErrSinkClosed = errors.New("summary sink closed")
)

// Sink receives one record per finished feature.
type Sink interface {
	Write(ctx context.Context, outcome harness.Outcome) error
	Close() error
}

// Open returns the sink for uri:
//
//	tcp://host:port            JSON lines over a TCP connection
//	file:///path/to/file.jsonl JSON lines written to a file, truncated first
//	nats://host:port/subject   one JetStream message per record
//
// An empty uri yields a sink that drops everything.
func Open(ctx context.Context, uri string, natsCfg NATSConfig) (Sink, error) {
	if uri == "" {
		return Discard, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse summary URI %q: %w", uri, err)
	}
	switch u.Scheme {
	case "tcp":
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, fmt.Errorf("dial summary listener %s: %w", u.Host, err)
		}
		return NewLineSink(conn), nil
	case "file":
		f, err := os.OpenFile(u.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open summary file: %w", err)
		}
		return NewLineSink(f), nil
	case "nats":
		return openNATS(ctx, u, natsCfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// Discard drops every record.
var Discard Sink = discard{}

type discard struct{}

func (discard) Write(context.Context, harness.Outcome) error { return nil }
func (discard) Close() error                                 { return nil }

// LineSink writes each outcome as one JSON line.
type LineSink struct {
	mu     sync.Mutex
	w      io.WriteCloser
	enc    *json.Encoder
	closed bool
}

func NewLineSink(w io.WriteCloser) *LineSink {
	return &LineSink{w: w, enc: json.NewEncoder(w)}
}

func (s *LineSink) Write(_ context.Context, outcome harness.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if err := s.enc.Encode(outcome); err != nil {
		return fmt.Errorf("write summary entry %s: %w", outcome.Name, err)
	}
	return nil
}

func (s *LineSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.w.Close()
}

// Summary is every record read from one run.
type Summary []harness.Outcome

// Read decodes JSON lines until EOF. Malformed lines are reported through
// onBadLine, when set, and skipped.
func Read(r io.Reader, onBadLine func(line []byte, err error)) (Summary, error) {
	var out Summary
	rdr := bufio.NewReaderSize(r, 4096)
	for {
		line, err := rdr.ReadBytes('\n')
		if len(line) > 0 {
			var entry harness.Outcome
			if jerr := json.Unmarshal(line, &entry); jerr != nil {
				if onBadLine != nil {
					onBadLine(line, jerr)
				}
			} else {
				out = append(out, entry)
			}
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		} else if err != nil {
			return out, fmt.Errorf("read summary: %w", err)
		}
	}
}

// Find returns the record named featureName.
func (s Summary) Find(featureName string) (*harness.Outcome, bool) {
	for i := range s {
		if s[i].Name == featureName {
			return &s[i], true
		}
	}
	return nil, false
}
