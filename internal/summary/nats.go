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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ngnhng/features/harness"
)

const (
	defaultStream     = "FEATURES_SUMMARY"
	defaultSubject    = "features.summary"
	defaultClientName = "features"
)

// NATSConfig tunes the connection of the nats sink.
type NATSConfig interface {
	NATSMaxReconnects() int
	NATSReconnectWait() time.Duration
	NATSDrainTimeout() time.Duration
	NATSPingInterval() time.Duration
	NATSMaxPingsOut() int
	// Optional human readable client name; may return empty.
	NATSClientName() string
	// NATSStream names the stream that captures the summary subject.
	NATSStream() string
}

// NATSSink publishes each outcome to a JetStream subject and waits for the ack.
type NATSSink struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	subject string
	stream  string
}

func openNATS(ctx context.Context, u *url.URL, cfg NATSConfig) (*NATSSink, error) {
	if cfg == nil {
		return nil, errors.New("summary: nil NATS config provided")
	}
	subject := strings.ReplaceAll(strings.Trim(u.Path, "/"), "/", ".")
	if subject == "" {
		subject = defaultSubject
	}
	clientName := cfg.NATSClientName()
	if clientName == "" {
		clientName = defaultClientName
	}
	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(cfg.NATSMaxReconnects()),
		nats.ReconnectWait(cfg.NATSReconnectWait()),
		nats.DrainTimeout(cfg.NATSDrainTimeout()),
		nats.PingInterval(cfg.NATSPingInterval()),
		nats.MaxPingsOutstanding(cfg.NATSMaxPingsOut()),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Warn("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
	}

	endpoint := "nats://" + u.Host
	nc, err := nats.Connect(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", endpoint, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream := cfg.NATSStream()
	if stream == "" {
		stream = defaultStream
	}
	s := &NATSSink{nc: nc, js: js, subject: subject, stream: stream}
	if _, err := s.ensureStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{subject},
		Storage:  jetstream.FileStorage,
	}); err != nil {
		nc.Close()
		return nil, err
	}
	return s, nil
}

// ensureStream creates the stream, or updates it in place when it exists,
// keeping its retention policy.
func (s *NATSSink) ensureStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	stream, err := s.js.Stream(ctx, cfg.Name)
	if err != nil || stream == nil {
		if errors.Is(err, jetstream.ErrStreamNotFound) {
			stream, err = s.js.CreateStream(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("failed to create stream %s: %w", cfg.Name, err)
			}
			return stream, nil
		}
		return nil, fmt.Errorf("failed to get stream %s info: %w", cfg.Name, err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream info %s: %w", cfg.Name, err)
	}
	cfg.Retention = info.Config.Retention
	cfg.Subjects = mergeSubjects(info.Config.Subjects, cfg.Subjects)
	updated, err := s.js.UpdateStream(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to update stream %s: %w", cfg.Name, err)
	}
	return updated, nil
}

func mergeSubjects(existing, add []string) []string {
	out := append([]string(nil), existing...)
	for _, s := range add {
		found := false
		for _, e := range existing {
			if e == s {
				found = true
				break
			}
		}
		if !found {
			out = append(out, s)
		}
	}
	return out
}

// Subject is the subject records are published to.
func (s *NATSSink) Subject() string { return s.subject }

// Stream is the stream capturing Subject.
func (s *NATSSink) Stream() string { return s.stream }

func (s *NATSSink) Write(ctx context.Context, outcome harness.Outcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal summary entry %s: %w", outcome.Name, err)
	}
	if _, err := s.js.Publish(ctx, s.subject, data); err != nil {
		return fmt.Errorf("failed to publish JetStream message to subject %s: %w", s.subject, err)
	}
	return nil
}

func (s *NATSSink) Close() error {
	if s.nc == nil || s.nc.IsClosed() {
		return nil
	}
	return s.nc.Drain()
}
