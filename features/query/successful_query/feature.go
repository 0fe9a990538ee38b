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

package successful_query

import (
	"context"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

const (
	QueryType  = "counterQ"
	SignalName = "counterInc"
	Signals    = 5
)

func Feature() harness.Feature {
	return harness.Feature{
		Dir:         "query/successful_query",
		Workflows:   Workflow,
		CheckResult: CheckResult,
	}
}

// Workflow counts signals until it has seen Signals of them.
func Workflow(ctx workflow.Context) error {
	counter := 0
	if err := workflow.SetQueryHandler(ctx, QueryType, func() (int, error) { return counter, nil }); err != nil {
		return err
	}
	ch := workflow.GetSignalChannel(ctx, SignalName)
	for range Signals {
		ch.Receive(ctx, nil)
		counter++
	}
	return nil
}

func CheckResult(ctx context.Context, r *harness.Runner, run client.WorkflowRun) error {
	signal := func() error {
		return r.Client.SignalWorkflow(ctx, run.GetID(), run.GetRunID(), SignalName, nil)
	}
	query := func(expected int) error {
		return r.QueryUntilEventually(ctx, run, QueryType, expected, 100*time.Millisecond, 10*time.Second)
	}

	if err := query(0); err != nil {
		return err
	}
	if err := signal(); err != nil {
		return err
	}
	if err := query(1); err != nil {
		return err
	}
	for range Signals - 2 {
		if err := signal(); err != nil {
			return err
		}
	}
	if err := query(Signals - 1); err != nil {
		return err
	}
	if err := signal(); err != nil {
		return err
	}
	return r.CheckResultDefault(ctx, run)
}
