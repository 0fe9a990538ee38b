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
	"errors"
	"fmt"
	"path/filepath"
	"reflect"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"golang.org/x/mod/semver"

	"github.com/ngnhng/features/harness/history"
)

// WaitForResult blocks until run completes and decodes its result into
// valuePtr, which may be nil. A failed run is returned wrapped so the SDK
// error chain stays inspectable.
func (r *Runner) WaitForResult(ctx context.Context, run client.WorkflowRun, valuePtr any) error {
	if err := run.Get(ctx, valuePtr); err != nil {
		return fmt.Errorf("workflow %s (run %s) failed: %w", run.GetID(), run.GetRunID(), err)
	}
	return nil
}

// CheckResultDefault waits for completion and checks ExpectRunResult and
// ExpectActivityError.
func (r *Runner) CheckResultDefault(ctx context.Context, run client.WorkflowRun) error {
	var actualPtr any
	if r.Feature.ExpectRunResult != nil {
		actualPtr = reflect.New(reflect.TypeOf(r.Feature.ExpectRunResult)).Interface()
	}

	err := r.WaitForResult(ctx, run, actualPtr)

	if r.Feature.ExpectActivityError != "" {
		var actErr *temporal.ActivityError
		if !errors.As(err, &actErr) {
			return fmt.Errorf("expected activity error, got: %w", err)
		}
		if err := r.CheckAssertion(r.Assert.EqualError(actErr.Unwrap(), r.Feature.ExpectActivityError)); err != nil {
			return err
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("expected success, got: %w", err)
	}

	if actualPtr != nil {
		actual := reflect.ValueOf(actualPtr).Elem().Interface()
		r.log.Debug("workflow result", "value", Dump(actual))
		return r.CheckAssertion(r.Assert.Equal(r.Feature.ExpectRunResult, actual))
	}
	return nil
}

// HistoryFetcher returns a fetcher scoped to this run's namespace and task queue.
func (r *Runner) HistoryFetcher() *history.Fetcher {
	return &history.Fetcher{
		Service:        r.Client.WorkflowService(),
		Namespace:      r.Namespace,
		TaskQueue:      r.TaskQueue,
		FeatureStarted: r.CreateTime,
	}
}

// CheckHistoryDefault replays every execution this feature produced, then
// replays stored histories recorded by SDK versions up to the current one.
func (r *Runner) CheckHistoryDefault(ctx context.Context, _ client.WorkflowRun) error {
	r.log.Debug("checking current execution replay")
	histories, err := r.HistoryFetcher().Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed fetching histories: %w", err)
	}
	if err := r.ReplayHistories(ctx, histories); err != nil {
		return fmt.Errorf("failed replaying current execution: %w", err)
	}

	if r.FeaturesRoot == "" {
		return nil
	}
	set, err := r.historyStorage().Load()
	if err != nil {
		return fmt.Errorf("failed loading histories: %w", err)
	}
	for _, version := range set.Versions() {
		if semver.Compare(version, SDKVersion) > 0 {
			r.log.Debug("skipping history for later version", "version", version)
			continue
		}
		r.log.Debug("checking stored history replay", "version", version)
		if err := r.ReplayHistories(ctx, set.ByVersion[version]); err != nil {
			return fmt.Errorf("failed replaying history version %v: %w", version, err)
		}
	}
	return nil
}

func (r *Runner) historyStorage() *history.Storage {
	return &history.Storage{Dir: filepath.Join(r.FeaturesRoot, filepath.FromSlash(r.Feature.Dir), "history"), Lang: "go"}
}

// StoreHistories records this run's histories as the stored set for the
// current SDK version, keeping the sets of other versions.
func (r *Runner) StoreHistories(ctx context.Context) error {
	if r.FeaturesRoot == "" {
		return errors.New("cannot store histories without a features root")
	}
	histories, err := r.HistoryFetcher().Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed fetching histories: %w", err)
	}
	storage := r.historyStorage()
	set, err := storage.Load()
	if err != nil {
		return fmt.Errorf("failed loading histories: %w", err)
	}
	set.ByVersion[SDKVersion] = histories
	if err := storage.Store(set); err != nil {
		return fmt.Errorf("failed storing histories: %w", err)
	}
	r.log.Info("stored histories", "version", SDKVersion, "count", len(histories), "dir", storage.Dir)
	return nil
}

// ReplayHistories replays each history against the feature's workflows.
func (r *Runner) ReplayHistories(ctx context.Context, histories history.Histories) error {
	replayer, err := worker.NewWorkflowReplayerWithOptions(
		worker.WorkflowReplayerOptions{DataConverter: r.Feature.ClientOptions.DataConverter},
	)
	if err != nil {
		return err
	}
	for _, wf := range r.Feature.Workflows {
		replayer.RegisterWorkflowWithOptions(wf.Workflow, wf.Options)
	}
	for _, h := range histories {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := replayer.ReplayWorkflowHistory(r.sdkLogger, h); err != nil {
			return err
		}
	}
	return nil
}
