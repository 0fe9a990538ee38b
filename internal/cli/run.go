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

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"

	"github.com/ngnhng/features/harness"
	"github.com/ngnhng/features/internal/config"
	"github.com/ngnhng/features/internal/devserver"
	"github.com/ngnhng/features/internal/summary"
)

var (
	// ErrNoFeatures is returned when run is given nothing to run
	ErrNoFeatures = errors.New("no features to run")

	// ErrFeaturesFailed is returned when at least one feature failed
	ErrFeaturesFailed = errors.New("features failed")
)

type runFlags struct {
	server          string
	namespace       string
	clientCertPath  string
	clientKeyPath   string
	httpProxyURL    string
	proxyControlURI string
	summaryURI      string
	statsOutput     string
	root            string
	devServer       bool
	generateHistory bool
	all             bool
}

func newRunCommand(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [flags] <dir:taskQueue>...",
		Short: "Run features",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd, &a.cfg.Harness)
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			descs, err := a.resolve(args, f.all)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), descs)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.server, "server", "", "server host:port")
	flags.StringVar(&f.namespace, "namespace", "", "namespace to run in")
	flags.StringVar(&f.clientCertPath, "client-cert-path", "", "path to the client TLS certificate")
	flags.StringVar(&f.clientKeyPath, "client-key-path", "", "path to the client TLS key")
	flags.StringVar(&f.httpProxyURL, "http-proxy-url", "", "HTTP or SOCKS5 proxy for features that dial the server through one")
	flags.StringVar(&f.proxyControlURI, "proxy-control-uri", "", "control endpoint of the fault-injection proxy")
	flags.StringVar(&f.summaryURI, "summary-uri", "", "where to stream outcomes: tcp://, file:// or nats://")
	flags.StringVar(&f.statsOutput, "stats-output", "", "path to write run stats as JSON")
	flags.StringVar(&f.root, "root", "", "features root directory")
	flags.BoolVar(&f.devServer, "dev-server", false, "start an ephemeral dev server container")
	flags.BoolVar(&f.generateHistory, "generate-history", false, "store histories of passing features")
	flags.BoolVar(&f.all, "all", false, "run every feature under the root with generated task queues")
	return cmd
}

// apply overrides the loaded configuration with the flags that were set.
func (f *runFlags) apply(cmd *cobra.Command, h *config.HarnessConfig) {
	changed := cmd.Flags().Changed
	strs := []struct {
		name string
		src  string
		dst  *string
	}{
		{"server", f.server, &h.Server},
		{"namespace", f.namespace, &h.Namespace},
		{"client-cert-path", f.clientCertPath, &h.ClientCertPath},
		{"client-key-path", f.clientKeyPath, &h.ClientKeyPath},
		{"http-proxy-url", f.httpProxyURL, &h.HTTPProxyURL},
		{"proxy-control-uri", f.proxyControlURI, &h.ProxyControlURI},
		{"summary-uri", f.summaryURI, &h.SummaryURI},
		{"stats-output", f.statsOutput, &h.StatsOutput},
		{"root", f.root, &h.FeaturesRoot},
	}
	for _, s := range strs {
		if changed(s.name) {
			*s.dst = s.src
		}
	}
	if changed("dev-server") {
		h.DevServer = f.devServer
	}
	if changed("generate-history") {
		h.GenerateHistory = f.generateHistory
	}
}

// resolve turns arguments into descriptors. With all set, every feature
// directory on disk runs on its own generated task queue.
func (a *app) resolve(args []string, all bool) ([]harness.FeatureDescriptor, error) {
	var descs []harness.FeatureDescriptor
	if all {
		found, err := harness.Discover(a.featuresFS())
		if err != nil {
			return nil, err
		}
		for _, d := range found {
			d.TaskQueue = d.Dir + "-" + uuid.Must(uuid.NewV4()).String()
			descs = append(descs, d)
		}
	}
	for _, arg := range args {
		d, err := harness.ParseDescriptor(arg)
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	if len(descs) == 0 {
		return nil, ErrNoFeatures
	}
	return descs, nil
}

func (a *app) run(ctx context.Context, descs []harness.FeatureDescriptor) error {
	h := &a.cfg.Harness

	if h.DevServer {
		srv, err := a.opts.StartDevServer(ctx, devserver.Options{
			Image:     h.DevServerImage,
			Namespace: h.Namespace,
			Logger:    a.log,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := srv.Stop(context.WithoutCancel(ctx)); err != nil {
				a.log.Warn("failed stopping dev server", "error", err)
			}
		}()
		h.Server = srv.HostPort
	}

	if err := a.opts.CheckConnection(ctx, a.cfg, a.log); err != nil {
		return err
	}

	sink, err := summary.Open(ctx, h.SummaryURI, &a.cfg.NATS)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			a.log.Warn("failed closing summary sink", "error", err)
		}
	}()

	rep := newReporter(a.opts.Stdout)
	for _, desc := range descs {
		outcome := a.runOne(ctx, desc)
		rep.Record(outcome)
		if err := sink.Write(ctx, outcome); err != nil {
			a.log.Warn("failed writing summary entry", "feature", desc.Dir, "error", err)
		}

		var connErr *harness.ConnectionError
		if errors.As(outcome.Err, &connErr) {
			return fmt.Errorf("aborting run: %w", connErr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if err := rep.RenderTable(); err != nil {
		a.log.Warn("failed rendering summary table", "error", err)
	}
	stats := rep.Stats()
	if h.StatsOutput != "" {
		if err := writeStats(h.StatsOutput, stats); err != nil {
			return err
		}
	}
	a.log.Info("run completed", "passed", len(stats.Passed), "skipped", len(stats.Skipped), "failed", len(stats.Failed))

	if len(stats.Failed) > 0 {
		fmt.Fprintf(a.opts.Stdout, "%d feature(s) failed: %s\n", len(stats.Failed), strings.Join(stats.Failed, ", "))
		return fmt.Errorf("%w: %d of %d", ErrFeaturesFailed, len(stats.Failed), len(descs))
	}
	return nil
}

// runOne loads, runs and classifies one feature. It never panics.
func (a *app) runOne(ctx context.Context, desc harness.FeatureDescriptor) harness.Outcome {
	start := time.Now()
	log := a.log.With("feature", desc.Dir, "task_queue", desc.TaskQueue)

	err := func() error {
		feature, err := a.opts.Registry.Load(desc)
		if err != nil {
			return err
		}
		runCfg := a.runnerConfig(desc, log)
		featureCfg, err := harness.LoadFeatureConfig(a.featuresFS(), desc.Dir)
		if err != nil {
			log.Warn("ignoring unreadable feature config", "error", err)
		} else if reason := featureCfg.SkipReason(harness.SDKVersion); reason != "" {
			return harness.NewSkippedError(reason)
		}
		// Features without workflows leave no history to check or store.
		if featureCfg.NoWorkflow {
			feature.CheckHistory = harness.NoHistoryCheck
			runCfg.GenerateHistory = false
		}
		log.Info("running feature")
		return a.opts.RunFeature(ctx, runCfg, feature)
	}()

	outcome := harness.NewOutcome(desc.Dir, err, time.Since(start))
	switch outcome.Status {
	case harness.StatusSkipped:
		log.Warn("feature skipped", "reason", outcome.Message)
	case harness.StatusFailed:
		log.Error("feature failed", "error", err)
	default:
		log.Info("feature passed", "duration", outcome.Duration)
	}
	return outcome
}

func (a *app) runnerConfig(desc harness.FeatureDescriptor, log *slog.Logger) harness.RunnerConfig {
	h := a.cfg.Harness
	return harness.RunnerConfig{
		ServerHostPort:    h.Server,
		Namespace:         h.Namespace,
		TaskQueue:         desc.TaskQueue,
		ClientCertPath:    h.ClientCertPath,
		ClientKeyPath:     h.ClientKeyPath,
		HTTPProxyURL:      h.HTTPProxyURL,
		ProxyControlURI:   h.ProxyControlURI,
		FeaturesRoot:      h.FeaturesRoot,
		GenerateHistory:   h.GenerateHistory,
		WorkerStopTimeout: h.WorkerStopTimeout,
		CapabilityTimeout: h.CapabilityTimeout,
		ExecutionTimeout:  h.ExecutionTimeout,
		Logger:            log,
	}
}

// checkConnection dials once and waits for the namespace. Any failure is a
// *harness.ConnectionError.
func checkConnection(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	h := cfg.Harness
	c, err := harness.Connect(ctx, harness.ConnectOptions{
		HostPort:       h.Server,
		Namespace:      h.Namespace,
		ClientCertPath: h.ClientCertPath,
		ClientKeyPath:  h.ClientKeyPath,
	})
	if err != nil {
		return err
	}
	defer c.Close()
	if err := harness.WaitNamespaceAvailable(ctx, c.WorkflowService(), h.Namespace, h.NamespaceWait); err != nil {
		return harness.NewConnectionError(h.Server, h.Namespace, err)
	}
	log.Debug("namespace available", "server", h.Server, "namespace", h.Namespace)
	return nil
}
