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

package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type LoggerConfig struct {
	Level        string      `env:"LEVEL"`  // debug|info|warn|error
	Format       string      `env:"FORMAT"` // auto|json|text|pretty
	Output       string      `env:"OUTPUT"` // stdout|stderr|file:/path, comma separated
	FileMode     os.FileMode `env:"FILE_MODE"`
	OTELExporter string      `env:"OTEL_EXPORTER"` // none|otlp-http|otlp-grpc
	OTELEndpoint string      `env:"OTEL_ENDPOINT"`

	out *outputFiles
}

type outputFiles struct {
	mu    sync.Mutex
	files map[string]*os.File
}

// Writer returns the first configured output, falling back to stderr so that
// feature output on stdout stays readable.
func (c *Config) Writer() io.Writer {
	writers := c.Writers()
	if len(writers) == 0 {
		return os.Stderr
	}
	return writers[0]
}

func (c *Config) Writers() []io.Writer {
	outputs := strings.TrimSpace(c.Logger.Output)
	if outputs == "" {
		return []io.Writer{os.Stderr}
	}
	parts := strings.Split(outputs, ",")
	writers := make([]io.Writer, 0, len(parts))
	seen := make(map[string]struct{})

	addWriter := func(key string, w io.Writer) {
		if w == nil {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		writers = append(writers, w)
	}

	for _, raw := range parts {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		lower := strings.ToLower(raw)
		if strings.HasPrefix(lower, "file:") {
			path := strings.TrimPrefix(raw, raw[:len("file:")])
			addWriter("file:"+path, c.Logger.openFile(path))
			continue
		}
		switch lower {
		case "stdout":
			addWriter("stdout", os.Stdout)
		case "stderr":
			addWriter("stderr", os.Stderr)
		default:
			slog.Warn("unknown log output entry", "entry", raw)
		}
	}

	if len(writers) == 0 {
		return []io.Writer{os.Stderr}
	}
	return writers
}

// Close releases log files opened by Writers.
func (lc *LoggerConfig) Close() error {
	if lc.out == nil {
		return nil
	}
	lc.out.mu.Lock()
	defer lc.out.mu.Unlock()
	var firstErr error
	for path, f := range lc.out.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(lc.out.files, path)
	}
	return firstErr
}

func (lc *LoggerConfig) openFile(path string) io.Writer {
	if path == "" {
		return nil
	}
	if lc.out == nil {
		lc.out = &outputFiles{}
	}
	lc.out.mu.Lock()
	defer lc.out.mu.Unlock()
	if f, ok := lc.out.files[path]; ok {
		return f
	}
	mode := lc.FileMode
	if mode == 0 {
		mode = 0o644
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, mode)
	if err != nil {
		slog.Warn("cannot open file for log output", "path", path, "error", err)
		return nil
	}
	if lc.out.files == nil {
		lc.out.files = make(map[string]*os.File)
	}
	lc.out.files[path] = f
	return f
}

func (lc *LoggerConfig) ParseLevel() string {
	if lc == nil {
		return "info"
	}
	lvl := strings.ToLower(strings.TrimSpace(lc.Level))
	switch lvl {
	case "debug", "info", "warn", "error":
		return lvl
	default:
		return "info"
	}
}

func (c *Config) LogLevel() slog.Level {
	switch c.Logger.ParseLevel() {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) LogFormat() string    { return c.Logger.Format }
func (c *Config) OTELExporter() string { return c.Logger.OTELExporter }
func (c *Config) OTELEndpoint() string { return c.Logger.OTELEndpoint }
func (c *Config) ModeField() Mode      { return c.Mode }
func (c *Config) ServiceName() string  { return c.Service }
func (c *Config) GetVersion() string   { return c.Version }
