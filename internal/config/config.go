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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	env "github.com/caarlos0/env/v11"
)

// Mode is the application mode. Debug mode renders colored console logs,
// release mode emits JSON and exports through OpenTelemetry.
type Mode string

const (
	ModeDebug   Mode = "debug"
	ModeRelease Mode = "release"
)

const (
	DefaultNamespace         = "default"
	DefaultFeaturesRoot      = "features"
	DefaultWorkerStopTimeout = 5 * time.Second
	DefaultCapabilityTimeout = 5 * time.Second
	DefaultExecutionTimeout  = time.Minute
	DefaultNamespaceWait     = 60 * time.Second
	DefaultDevServerImage    = "temporalio/temporal:latest"
)

// Config holds the complete harness configuration.
type Config struct {
	Service string        `json:"service_name" env:"APP_NAME"`
	Version string        `json:"version"      env:"VERSION"`
	Mode    Mode          `json:"mode"         env:"MODE"`
	Harness HarnessConfig `json:"harness"      envPrefix:"FEATURES_"`
	NATS    NATSConfig    `json:"nats"         envPrefix:"NATS_"`
	Logger  LoggerConfig  `json:"logger"       envPrefix:"LOG_"`
}

// HarnessConfig is everything a feature run needs to reach the server and
// report its outcomes.
type HarnessConfig struct {
	Server            string        `json:"server"              env:"SERVER"`
	Namespace         string        `json:"namespace"           env:"NAMESPACE"`
	ClientCertPath    string        `json:"client_cert_path"    env:"CLIENT_CERT_PATH"`
	ClientKeyPath     string        `json:"client_key_path"     env:"CLIENT_KEY_PATH"`
	HTTPProxyURL      string        `json:"http_proxy_url"      env:"HTTP_PROXY_URL"`
	ProxyControlURI   string        `json:"proxy_control_uri"   env:"PROXY_CONTROL_URI"`
	SummaryURI        string        `json:"summary_uri"         env:"SUMMARY_URI"`
	StatsOutput       string        `json:"stats_output"        env:"STATS_OUTPUT"`
	FeaturesRoot      string        `json:"features_root"       env:"ROOT"`
	WorkerStopTimeout time.Duration `json:"worker_stop_timeout" env:"WORKER_STOP_TIMEOUT"`
	CapabilityTimeout time.Duration `json:"capability_timeout"  env:"CAPABILITY_TIMEOUT"`
	ExecutionTimeout  time.Duration `json:"execution_timeout"   env:"EXECUTION_TIMEOUT"`
	NamespaceWait     time.Duration `json:"namespace_wait"      env:"NAMESPACE_WAIT"`
	GenerateHistory   bool          `json:"generate_history"    env:"GENERATE_HISTORY"`
	DevServer         bool          `json:"dev_server"          env:"DEV_SERVER"`
	DevServerImage    string        `json:"dev_server_image"    env:"DEV_SERVER_IMAGE"`
}

func defaults() Config {
	return Config{
		Service: "features",
		Version: "v0.1.0",
		Mode:    ModeDebug,
		Harness: HarnessConfig{
			Namespace:         DefaultNamespace,
			FeaturesRoot:      DefaultFeaturesRoot,
			WorkerStopTimeout: DefaultWorkerStopTimeout,
			CapabilityTimeout: DefaultCapabilityTimeout,
			ExecutionTimeout:  DefaultExecutionTimeout,
			NamespaceWait:     DefaultNamespaceWait,
			DevServerImage:    DefaultDevServerImage,
		},
		NATS: NATSConfig{
			MaxReconnects: DefaultMaxReconnects,
			ReconnectWait: DefaultReconnectWait,
			DrainTimeout:  DefaultDrainTimeout,
			PingInterval:  DefaultPingInterval,
			MaxPingsOut:   DefaultMaxPingsOut,
			ClientName:    "features",
			Stream:        DefaultSummaryStream,
		},
		Logger: LoggerConfig{
			Level:        "info",
			Format:       "auto",
			Output:       "stderr",
			FileMode:     0o644,
			OTELExporter: "none",
		},
	}
}

// LoadConfig builds the configuration from defaults, then the optional TOML
// file at path, then the environment. Later sources win.
func LoadConfig(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if err := overlayFromFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings that every run depends on.
func (c *Config) Validate() error {
	if c.Harness.Namespace == "" {
		return errors.New("namespace is required")
	}
	if c.Harness.Server == "" && !c.Harness.DevServer {
		return errors.New("server address is required unless the dev server is enabled")
	}
	if (c.Harness.ClientCertPath == "") != (c.Harness.ClientKeyPath == "") {
		return errors.New("client cert and key must be given together")
	}
	if c.Harness.WorkerStopTimeout < 0 {
		return fmt.Errorf("worker stop timeout must not be negative, got %v", c.Harness.WorkerStopTimeout)
	}
	switch c.Mode {
	case ModeDebug, ModeRelease:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	return nil
}

type fileConfig struct {
	Mode    *string            `toml:"mode"`
	Harness *fileHarnessConfig `toml:"harness"`
	NATS    *fileNATSConfig    `toml:"nats"`
	Log     *fileLogConfig     `toml:"log"`
}

type fileHarnessConfig struct {
	Server            *string `toml:"server"`
	Namespace         *string `toml:"namespace"`
	ClientCertPath    *string `toml:"client_cert_path"`
	ClientKeyPath     *string `toml:"client_key_path"`
	HTTPProxyURL      *string `toml:"http_proxy_url"`
	ProxyControlURI   *string `toml:"proxy_control_uri"`
	SummaryURI        *string `toml:"summary_uri"`
	StatsOutput       *string `toml:"stats_output"`
	FeaturesRoot      *string `toml:"features_root"`
	WorkerStopTimeout *string `toml:"worker_stop_timeout"`
	CapabilityTimeout *string `toml:"capability_timeout"`
	ExecutionTimeout  *string `toml:"execution_timeout"`
	GenerateHistory   *bool   `toml:"generate_history"`
	DevServer         *bool   `toml:"dev_server"`
	DevServerImage    *string `toml:"dev_server_image"`
}

type fileNATSConfig struct {
	ClientName *string `toml:"client_name"`
	Stream     *string `toml:"stream"`
}

type fileLogConfig struct {
	Level        *string `toml:"level"`
	Format       *string `toml:"format"`
	Output       *string `toml:"output"`
	OTELExporter *string `toml:"otel_exporter"`
	OTELEndpoint *string `toml:"otel_endpoint"`
}

func overlayFromFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat config %s: %w", path, err)
	}

	var decoded fileConfig
	if _, err := toml.DecodeFile(path, &decoded); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	if decoded.Mode != nil {
		cfg.Mode = Mode(*decoded.Mode)
	}
	if h := decoded.Harness; h != nil {
		setString(&cfg.Harness.Server, h.Server)
		setString(&cfg.Harness.Namespace, h.Namespace)
		setString(&cfg.Harness.ClientCertPath, h.ClientCertPath)
		setString(&cfg.Harness.ClientKeyPath, h.ClientKeyPath)
		setString(&cfg.Harness.HTTPProxyURL, h.HTTPProxyURL)
		setString(&cfg.Harness.ProxyControlURI, h.ProxyControlURI)
		setString(&cfg.Harness.SummaryURI, h.SummaryURI)
		setString(&cfg.Harness.StatsOutput, h.StatsOutput)
		setString(&cfg.Harness.FeaturesRoot, h.FeaturesRoot)
		setString(&cfg.Harness.DevServerImage, h.DevServerImage)
		if h.DevServer != nil {
			cfg.Harness.DevServer = *h.DevServer
		}
		if h.GenerateHistory != nil {
			cfg.Harness.GenerateHistory = *h.GenerateHistory
		}
		durations := []struct {
			key string
			src *string
			dst *time.Duration
		}{
			{"harness.worker_stop_timeout", h.WorkerStopTimeout, &cfg.Harness.WorkerStopTimeout},
			{"harness.capability_timeout", h.CapabilityTimeout, &cfg.Harness.CapabilityTimeout},
			{"harness.execution_timeout", h.ExecutionTimeout, &cfg.Harness.ExecutionTimeout},
		}
		for _, d := range durations {
			if d.src == nil {
				continue
			}
			parsed, err := parseDuration(*d.src, d.key, path)
			if err != nil {
				return err
			}
			*d.dst = parsed
		}
	}
	if n := decoded.NATS; n != nil {
		setString(&cfg.NATS.ClientName, n.ClientName)
		setString(&cfg.NATS.Stream, n.Stream)
	}
	if l := decoded.Log; l != nil {
		setString(&cfg.Logger.Level, l.Level)
		setString(&cfg.Logger.Format, l.Format)
		setString(&cfg.Logger.Output, l.Output)
		setString(&cfg.Logger.OTELExporter, l.OTELExporter)
		setString(&cfg.Logger.OTELEndpoint, l.OTELEndpoint)
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func parseDuration(value, key, path string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s in %s: %w", key, path, err)
	}
	return d, nil
}
