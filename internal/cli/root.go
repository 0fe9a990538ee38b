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

// Package cli implements the features command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ngnhng/features/harness"
	"github.com/ngnhng/features/internal/config"
	"github.com/ngnhng/features/internal/devserver"
	"github.com/ngnhng/features/internal/logger"
)

// Version is set at build time.
var Version = "dev"

// Options wires the command line to its collaborators. Zero fields get
// production defaults.
type Options struct {
	Registry *harness.Registry

	// LoadConfig defaults to config.LoadConfig.
	LoadConfig func(path string) (*config.Config, error)

	// Logger, when set, is used instead of one built from the config.
	Logger *slog.Logger

	// FeaturesFS is the fixture tree; defaults to the configured features root.
	FeaturesFS fs.FS

	// RunFeature runs one prepared feature; defaults to harness.RunFeature.
	RunFeature func(ctx context.Context, cfg harness.RunnerConfig, feature *harness.PreparedFeature) error

	// CheckConnection confirms the server and namespace are reachable before
	// any feature runs; defaults to dialing and waiting for the namespace.
	CheckConnection func(ctx context.Context, cfg *config.Config, log *slog.Logger) error

	// StartDevServer defaults to devserver.Start.
	StartDevServer func(ctx context.Context, opts devserver.Options) (*devserver.Server, error)

	Stdout io.Writer
	Stderr io.Writer
}

func (o *Options) setDefaults() {
	if o.LoadConfig == nil {
		o.LoadConfig = config.LoadConfig
	}
	if o.RunFeature == nil {
		o.RunFeature = harness.RunFeature
	}
	if o.CheckConnection == nil {
		o.CheckConnection = checkConnection
	}
	if o.StartDevServer == nil {
		o.StartDevServer = devserver.Start
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	opts       Options
	configPath string
	cfg        *config.Config
	log        *slog.Logger
	logger     *logger.Logger
}

// newRootCommand builds the features command tree. The returned app holds
// what setup acquired; callers release it with teardown once the command
// returns, on success or error.
func newRootCommand(opts Options) (*cobra.Command, *app) {
	opts.setDefaults()
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:           "features",
		Short:         "Run workflow feature fixtures against a server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a TOML config file")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		return a.setup(cmd.Context())
	}

	root.AddCommand(newRunCommand(a), newListCommand(a))
	return root, a
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := a.opts.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	if a.opts.Logger != nil {
		a.log = a.opts.Logger
		return nil
	}
	l, err := logger.NewLogger(ctx, logger.FromConfig(cfg))
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	a.logger = l
	a.log = l.Slogger
	slog.SetDefault(a.log)
	return nil
}

// teardown flushes exported logs and closes log files. It is a no-op for
// whatever setup never acquired, and safe to call more than once.
func (a *app) teardown(ctx context.Context) error {
	if a.logger != nil {
		if err := a.logger.Shutdown(context.WithoutCancel(ctx)); err != nil {
			fmt.Fprintf(a.opts.Stderr, "failed to shut down logger: %v\n", err)
		}
		a.logger = nil
	}
	if a.cfg != nil {
		return a.cfg.Logger.Close()
	}
	return nil
}

func (a *app) featuresFS() fs.FS {
	if a.opts.FeaturesFS != nil {
		return a.opts.FeaturesFS
	}
	return os.DirFS(a.cfg.Harness.FeaturesRoot)
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, opts Options) int {
	cmd, a := newRootCommand(opts)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if terr := a.teardown(ctx); terr != nil && err == nil {
		err = fmt.Errorf("close log outputs: %w", terr)
	}
	if err != nil {
		fmt.Fprintf(a.opts.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
