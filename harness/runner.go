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
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"golang.org/x/sync/errgroup"

	"github.com/ngnhng/features/internal/logger"
)

const (
	DefaultWorkerStopTimeout = 5 * time.Second
	DefaultCapabilityTimeout = 5 * time.Second
	DefaultExecutionTimeout  = time.Minute
)

// Phase is where a feature run currently is.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseWorkerStarting
	PhaseExecuting
	PhaseVerifying
	PhaseWorkerStopping
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "NotStarted"
	case PhaseWorkerStarting:
		return "WorkerStarting"
	case PhaseExecuting:
		return "Executing"
	case PhaseVerifying:
		return "Verifying"
	case PhaseWorkerStopping:
		return "WorkerStopping"
	case PhaseDone:
		return "Done"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// RunnerConfig is configuration for NewRunner.
type RunnerConfig struct {
	ServerHostPort string
	Namespace      string
	TaskQueue      string
	ClientCertPath string
	ClientKeyPath  string
	// HTTPProxyURL is only dialed through by features that ask for it with
	// DialThroughProxy; the runner's own client connects directly.
	HTTPProxyURL    string
	ProxyControlURI string
	// FeaturesRoot locates stored histories on disk; empty disables them.
	FeaturesRoot string
	// GenerateHistory stores the histories of a passing run under
	// FeaturesRoot for the current SDK version.
	GenerateHistory bool

	WorkerStopTimeout time.Duration
	CapabilityTimeout time.Duration
	ExecutionTimeout  time.Duration

	Logger *slog.Logger

	// Dial creates the client. Defaults to client.DialContext.
	Dial func(options client.Options) (client.Client, error)
	// NewWorker creates workers. Defaults to DefaultWorkerFactory.
	NewWorker WorkerFactory
	// HTTPClient talks to the proxy control endpoint.
	HTTPClient *http.Client
}

func (c *RunnerConfig) setDefaults() {
	if c.ServerHostPort == "" {
		c.ServerHostPort = client.DefaultHostPort
	}
	if c.Namespace == "" {
		c.Namespace = client.DefaultNamespace
	}
	if c.WorkerStopTimeout == 0 {
		c.WorkerStopTimeout = DefaultWorkerStopTimeout
	}
	if c.CapabilityTimeout == 0 {
		c.CapabilityTimeout = DefaultCapabilityTimeout
	}
	if c.ExecutionTimeout == 0 {
		c.ExecutionTimeout = DefaultExecutionTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.NewWorker == nil {
		c.NewWorker = DefaultWorkerFactory
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
}

// Runner runs a single feature: it owns the client and at most one live worker.
type Runner struct {
	RunnerConfig
	Client     client.Client
	Feature    *PreparedFeature
	CreateTime time.Time

	Assert        *assert.Assertions
	LastAssertErr error
	Require       *require.Assertions

	log       *slog.Logger
	sdkLogger tlog.Logger

	workerMu       sync.Mutex
	worker         *WorkerHandle
	workerFailures chan error

	phaseMu sync.Mutex
	phase   Phase

	closeOnce sync.Once
}

// NewRunner dials the client and starts the worker for feature.
func NewRunner(ctx context.Context, config RunnerConfig, feature *PreparedFeature) (*Runner, error) {
	config.setDefaults()
	r := &Runner{
		RunnerConfig:   config,
		Feature:        feature,
		log:            config.Logger.With("feature", feature.Dir),
		workerFailures: make(chan error, 1),
	}
	r.sdkLogger = logger.SDK(r.log)
	r.Assert = assert.New(assertTestingFunc(func(format string, args ...any) {
		r.LastAssertErr = fmt.Errorf(format, args...)
	}))
	r.Require = require.New(&requireTestingPanic{})

	success := false
	defer func() {
		if !success {
			r.Close()
		}
	}()

	r.setPhase(PhaseWorkerStarting)

	if hook := r.Feature.BeforeDial; hook != nil {
		if err := hook(r); err != nil {
			return nil, fmt.Errorf("before dial: %w", err)
		}
	}

	opts := r.Feature.ClientOptions
	if opts.Logger == nil {
		opts.Logger = r.sdkLogger
	}
	c, err := Connect(ctx, ConnectOptions{
		HostPort:       r.ServerHostPort,
		Namespace:      r.Namespace,
		ClientCertPath: r.ClientCertPath,
		ClientKeyPath:  r.ClientKeyPath,
		Base:           opts,
		Dial:           r.Dial,
	})
	if err != nil {
		return nil, err
	}
	r.Client = c
	r.CreateTime = time.Now()

	if !r.Feature.DisableWorkflowPanicPolicyOverride {
		r.Feature.WorkerOptions.WorkflowPanicPolicy = worker.FailWorkflow
	}
	if r.Feature.WorkerOptions.WorkerStopTimeout == 0 {
		r.Feature.WorkerOptions.WorkerStopTimeout = r.WorkerStopTimeout
	}
	if err := r.StartWorker(); err != nil {
		return nil, err
	}

	success = true
	return r, nil
}

// RunFeature runs one prepared feature end to end and releases everything
// it created before returning.
func RunFeature(ctx context.Context, config RunnerConfig, feature *PreparedFeature) error {
	if feature.SkipReason != "" {
		return NewSkippedError(feature.SkipReason)
	}
	r, err := NewRunner(ctx, config, feature)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Run(ctx)
}

// Run executes the feature and then closes the worker and client. The
// scenario is raced against worker failure; whichever finishes first decides
// the outcome and cancels the other.
func (r *Runner) Run(ctx context.Context) error {
	defer r.Close()

	if r.Feature.AlternateRun != nil {
		r.setPhase(PhaseExecuting)
		return r.recoverAssertion(func() error { return r.Feature.AlternateRun(ctx, r) })
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(raceCtx)
	g.Go(func() error {
		defer cancel()
		return r.recoverAssertion(func() error { return r.runScenario(gctx) })
	})
	g.Go(func() error {
		select {
		case err := <-r.workerFailures:
			return fmt.Errorf("%w: %w", ErrWorkerFailed, err)
		case <-gctx.Done():
			return nil
		}
	})
	return g.Wait()
}

func (r *Runner) runScenario(ctx context.Context) error {
	r.setPhase(PhaseExecuting)
	var run client.WorkflowRun
	var err error
	if r.Feature.Execute != nil {
		run, err = r.Feature.Execute(ctx, r)
	} else {
		run, err = r.ExecuteDefault(ctx)
	}
	if run == nil || err != nil {
		return err
	}

	r.setPhase(PhaseVerifying)
	if r.Feature.CheckResult != nil {
		err = r.Feature.CheckResult(ctx, r, run)
	} else {
		err = r.CheckResultDefault(ctx, run)
	}
	if err != nil {
		return err
	}

	if r.Feature.CheckHistory != nil {
		err = r.Feature.CheckHistory(ctx, r, run)
	} else {
		err = r.CheckHistoryDefault(ctx, run)
	}
	if err != nil || !r.GenerateHistory {
		return err
	}
	return r.StoreHistories(ctx)
}

// Phase returns the current run phase.
func (r *Runner) Phase() Phase {
	r.phaseMu.Lock()
	defer r.phaseMu.Unlock()
	return r.phase
}

func (r *Runner) setPhase(p Phase) {
	r.phaseMu.Lock()
	prev := r.phase
	r.phase = p
	r.phaseMu.Unlock()
	if prev != p {
		r.log.Debug("phase changed", "from", prev.String(), "to", p.String())
	}
}

// Logger returns the runner's feature-scoped logger.
func (r *Runner) Logger() *slog.Logger {
	return r.log
}

// Skip returns an error that marks the feature as skipped.
func (r *Runner) Skip(reason string) error {
	return NewSkippedError(reason)
}

// Close stops the worker and closes the client. Safe to call more than once.
func (r *Runner) Close() {
	r.closeOnce.Do(func() {
		r.setPhase(PhaseWorkerStopping)
		r.StopWorker()
		if r.Client != nil {
			r.Client.Close()
		}
		r.setPhase(PhaseDone)
	})
}
