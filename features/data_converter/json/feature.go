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

package json

import (
	"context"
	"encoding/json"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

type Message struct {
	Spec bool `json:"spec"`
}

func Feature() harness.Feature {
	return harness.Feature{
		Dir:         "data_converter/json",
		Workflows:   Workflow,
		CheckResult: CheckResult,
	}
}

func Workflow(workflow.Context) (Message, error) {
	return Message{true}, nil
}

// CheckResult verifies the result is stored as plain JSON `{"spec": true}`.
func CheckResult(ctx context.Context, r *harness.Runner, run client.WorkflowRun) error {
	var result Message
	if err := run.Get(ctx, &result); err != nil {
		return err
	}
	r.Require.Equal(Message{true}, result)

	payload, err := harness.GetWorkflowResultPayload(ctx, r.Client, run.GetID())
	if err != nil {
		return err
	}
	r.Require.Equal(converter.MetadataEncodingJSON, harness.PayloadEncoding(payload))

	spec, err := harness.PayloadField(payload, "spec")
	if err != nil {
		return err
	}
	r.Require.True(spec.Bool())

	var inHistory Message
	if err := json.Unmarshal(payload.GetData(), &inHistory); err != nil {
		return err
	}
	r.Require.Equal(result, inHistory)
	return nil
}
