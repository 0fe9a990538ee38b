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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	color "github.com/fatih/color"

	"github.com/ngnhng/features/internal/config"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestNewLogger_DebugMode(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(context.Background(), &LoggerOptions{
		Mode:   config.ModeDebug,
		Writer: &buf,
		Level:  slog.LevelInfo,
	})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if l.LoggerProvider != nil {
		t.Errorf("LoggerProvider = %v, want nil without exporter", l.LoggerProvider)
	}

	l.Slogger.Debug("hidden")
	l.Slogger.With("feature", "update/basic").WithGroup("run").Info("phase changed", "phase", "Executing")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %q", out)
	}
	for _, want := range []string{" INFO ", "phase changed", `feature="update/basic"`, `run.phase="Executing"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestNewLogger_ReleaseModeJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(context.Background(), &LoggerOptions{
		Mode:   config.ModeRelease,
		Writer: &buf,
		Level:  slog.LevelInfo,
	})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	l.Slogger.Warn("feature skipped", "reason", "server too old")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "feature skipped" {
		t.Errorf("msg = %v, want %v", record["msg"], "feature skipped")
	}
	if record["reason"] != "server too old" {
		t.Errorf("reason = %v, want %v", record["reason"], "server too old")
	}
	if err := l.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestNewLogger_ReleaseModeOTLPHTTP(t *testing.T) {
	var exports atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/v1/logs" {
			exports.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	l, err := NewLogger(context.Background(), &LoggerOptions{
		Mode:           config.ModeRelease,
		Writer:         &buf,
		Level:          slog.LevelInfo,
		Exporter:       ExporterOTLPHTTP,
		Endpoint:       srv.URL + "/v1/logs",
		ServiceName:    "features",
		ServiceVersion: "v0.1.0",
	})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if l.LoggerProvider == nil {
		t.Fatal("LoggerProvider = nil, want provider for otlp-http exporter")
	}

	l.Slogger.Info("feature passed", "feature", "activity/retry_on_error")
	if err := l.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if got := exports.Load(); got == 0 {
		t.Errorf("export requests = %v, want at least 1", got)
	}
	if !strings.Contains(buf.String(), "feature passed") {
		t.Errorf("console output %q missing record", buf.String())
	}
}

func TestNewLogger_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts *LoggerOptions
	}{
		{
			name: "no writer",
			opts: &LoggerOptions{Mode: config.ModeDebug},
		},
		{
			name: "unknown exporter",
			opts: &LoggerOptions{Mode: config.ModeRelease, Writer: &bytes.Buffer{}, Exporter: "carrier-pigeon"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLogger(context.Background(), tt.opts); err == nil {
				t.Fatal("NewLogger succeeded, want error")
			}
		})
	}
}

func TestFormatAttrValue(t *testing.T) {
	tests := []struct {
		name  string
		value slog.Value
		want  string
	}{
		{"string", slog.StringValue("a b"), `"a b"`},
		{"int", slog.IntValue(3), "3"},
		{"bool", slog.BoolValue(true), "true"},
		{"error", slog.AnyValue(errors.New("boom")), `"boom"`},
		{"group", slog.GroupValue(slog.Int("passed", 2)), "{passed:2}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatAttrValue(tt.value); got != tt.want {
				t.Errorf("formatAttrValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSDKAdapter(t *testing.T) {
	var buf bytes.Buffer
	sdkLogger := SDK(slog.New(NewDebugHandler(&buf, slog.LevelDebug)))
	sdkLogger.Info("worker started", "TaskQueue", "tq-1")
	if !strings.Contains(buf.String(), `TaskQueue="tq-1"`) {
		t.Errorf("output %q missing task queue attribute", buf.String())
	}
}
