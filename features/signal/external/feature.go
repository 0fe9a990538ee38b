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

package external

import (
	"context"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

const (
	SignalName = "external_signal_channel"
	SignalData = "Signaled!"
)

func Feature() harness.Feature {
	return harness.Feature{
		Dir:             "signal/external",
		Workflows:       Workflow,
		ExpectRunResult: SignalData,
		Execute: func(ctx context.Context, r *harness.Runner) (client.WorkflowRun, error) {
			run, err := r.ExecuteDefault(ctx)
			if err != nil {
				return nil, err
			}
			if err := r.Client.SignalWorkflow(ctx, run.GetID(), run.GetRunID(), SignalName, SignalData); err != nil {
				return nil, err
			}
			return run, nil
		},
	}
}

// Workflow returns the data of the first signal it receives.
func Workflow(ctx workflow.Context) (string, error) {
	var data string
	workflow.GetSignalChannel(ctx, SignalName).Receive(ctx, &data)
	return data, nil
}
