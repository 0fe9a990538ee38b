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
	"path"
	"reflect"
	"strings"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// SDKVersion is the workflow SDK version with the "v" prefix.
const SDKVersion = "v" + temporal.SDKVersion

// Feature is a single fixture: what to register on the worker and how to
// drive and check it. Zero-valued hooks fall back to the runner defaults.
type Feature struct {
	// Dir is the slash-separated path of the feature beneath the features
	// root, e.g. "update/basic". Required.
	Dir string

	// Workflows to register: a function, a WorkflowWithOptions, or a slice of either.
	Workflows any

	// Activities to register: a function, a struct pointer, an
	// ActivityWithOptions, or a slice of those.
	Activities any

	// StartArgs are passed to the workflow by the default executor.
	StartArgs []any

	// If present, the workflow is expected to fail with this activity error string.
	ExpectActivityError string

	// If present, the workflow is expected to succeed with this value.
	ExpectRunResult any

	// ClientOptions for client creation. HostPort, Namespace and the
	// connection TLS/dialer are always set by the runner.
	ClientOptions client.Options

	// WorkerOptions for worker creation. WorkflowPanicPolicy is forced to
	// FailWorkflow unless DisableWorkflowPanicPolicyOverride is set.
	WorkerOptions worker.Options

	DisableWorkflowPanicPolicyOverride bool

	// BeforeDial is called just before the client is dialed.
	BeforeDial func(runner *Runner) error

	// BeforeWorkerStart is called each time just before a worker is started.
	BeforeWorkerStart func(runner *Runner) error

	// StartWorkflowOptions seed the default executor. ID, TaskQueue and
	// WorkflowExecutionTimeout are filled in when empty.
	StartWorkflowOptions client.StartWorkflowOptions

	// StartWorkflowOptionsMutator runs last over the default start options.
	StartWorkflowOptionsMutator func(*client.StartWorkflowOptions)

	// Execute replaces Runner.ExecuteDefault. A nil run skips result and history checks.
	Execute func(ctx context.Context, runner *Runner) (client.WorkflowRun, error)

	// CheckResult replaces Runner.CheckResultDefault.
	CheckResult func(ctx context.Context, runner *Runner, run client.WorkflowRun) error

	// CheckHistory replaces Runner.CheckHistoryDefault.
	CheckHistory func(ctx context.Context, runner *Runner, run client.WorkflowRun) error

	// AlternateRun bypasses execute/check entirely. The worker is still
	// started beforehand and stopped afterwards.
	AlternateRun func(ctx context.Context, runner *Runner) error

	// SkipReason, when set, skips the feature without checking anything else.
	SkipReason string
}

type WorkflowWithOptions struct {
	Workflow any
	Options  workflow.RegisterOptions
}

type ActivityWithOptions struct {
	Activity any
	Options  activity.RegisterOptions
}

// PreparedFeature is a validated Feature with its registrations normalized.
type PreparedFeature struct {
	Feature
	Workflows  []WorkflowWithOptions
	Activities []ActivityWithOptions
}

// PrepareFeature validates the feature and normalizes its registrations.
func PrepareFeature(feature Feature) (*PreparedFeature, error) {
	dir, err := cleanDir(feature.Dir)
	if err != nil {
		return nil, err
	}
	feature.Dir = dir

	p := &PreparedFeature{Feature: feature}
	if p.SkipReason != "" {
		return p, nil
	}

	for _, raw := range rawToSlice(feature.Workflows) {
		wf, ok := raw.(WorkflowWithOptions)
		if !ok {
			wf = WorkflowWithOptions{Workflow: raw}
		}
		if reflect.ValueOf(wf.Workflow).Kind() != reflect.Func {
			return nil, fmt.Errorf("%w: workflow %T is not a function", ErrFixtureMalformed, wf.Workflow)
		}
		p.Workflows = append(p.Workflows, wf)
	}

	for _, raw := range rawToSlice(feature.Activities) {
		act, ok := raw.(ActivityWithOptions)
		if !ok {
			act = ActivityWithOptions{Activity: raw}
		}
		v := reflect.ValueOf(act.Activity)
		isStructPtr := v.Kind() == reflect.Pointer && v.Elem().Kind() == reflect.Struct
		if v.Kind() != reflect.Func && !isStructPtr {
			return nil, fmt.Errorf("%w: activity %T is neither a function nor a struct pointer", ErrFixtureMalformed, act.Activity)
		}
		p.Activities = append(p.Activities, act)
	}

	if len(p.Workflows) == 0 && p.Execute == nil && p.AlternateRun == nil {
		return nil, fmt.Errorf("%w: %w", ErrFixtureMalformed, ErrNoWorkflow)
	}
	return p, nil
}

// PrimaryWorkflow is the single workflow the default executor starts.
func (p *PreparedFeature) PrimaryWorkflow() (WorkflowWithOptions, error) {
	switch len(p.Workflows) {
	case 0:
		return WorkflowWithOptions{}, ErrNoWorkflow
	case 1:
		return p.Workflows[0], nil
	default:
		return WorkflowWithOptions{}, fmt.Errorf("%w (%d registered)", ErrAmbiguousWorkflow, len(p.Workflows))
	}
}

// Ref is what to pass to ExecuteWorkflow: the registered name when one is
// set, otherwise the function itself.
func (w WorkflowWithOptions) Ref() any {
	if w.Options.Name != "" {
		return w.Options.Name
	}
	return w.Workflow
}

// NoHistoryCheck can be used as Feature.CheckHistory to skip replay.
func NoHistoryCheck(context.Context, *Runner, client.WorkflowRun) error {
	return nil
}

// FeatureDescriptor identifies a feature to run.
type FeatureDescriptor struct {
	// Dir is the slash-separated path beneath the features root.
	Dir string
	// Package is the Go package name of the fixture.
	Package string
	// TaskQueue is empty for discovered features until assigned.
	TaskQueue string
}

func (d FeatureDescriptor) String() string {
	if d.TaskQueue == "" {
		return d.Dir
	}
	return d.Dir + ":" + d.TaskQueue
}

// ParseDescriptor parses a "dir:taskQueue" CLI argument.
func ParseDescriptor(arg string) (FeatureDescriptor, error) {
	dir, taskQueue, ok := strings.Cut(arg, ":")
	if !ok || taskQueue == "" {
		return FeatureDescriptor{}, fmt.Errorf("feature %q missing task queue, expected dir:taskQueue", arg)
	}
	dir, err := cleanDir(dir)
	if err != nil {
		return FeatureDescriptor{}, err
	}
	return FeatureDescriptor{Dir: dir, Package: packageName(dir), TaskQueue: taskQueue}, nil
}

func cleanDir(dir string) (string, error) {
	dir = strings.Trim(strings.TrimSpace(dir), "/")
	if dir == "" {
		return "", fmt.Errorf("%w: empty feature directory", ErrFixtureMalformed)
	}
	cleaned := path.Clean(dir)
	if cleaned != dir || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("%w: feature directory %q is not a clean relative path", ErrFixtureMalformed, dir)
	}
	return cleaned, nil
}

func packageName(dir string) string {
	return path.Base(dir)
}

func rawToSlice(v any) []any {
	val := reflect.ValueOf(v)
	if !val.IsValid() {
		return nil
	} else if val.Kind() != reflect.Slice {
		return []any{v}
	}
	ret := make([]any, val.Len())
	for i := 0; i < val.Len(); i++ {
		ret[i] = val.Index(i).Interface()
	}
	return ret
}
