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

package json_protobuf

import (
	"bytes"
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/workflow"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ngnhng/features/harness"
)

var ExpectedResult = []byte{0xde, 0xad, 0xbe, 0xef}

// DataConverter has no byte-slice or binary proto converters, so proto
// values travel as protobuf JSON.
func DataConverter() converter.DataConverter {
	return converter.NewCompositeDataConverter(
		converter.NewNilPayloadConverter(),
		converter.NewProtoJSONPayloadConverter(),
		converter.NewJSONPayloadConverter(),
	)
}

func Feature() harness.Feature {
	return harness.Feature{
		Dir:           "data_converter/json_protobuf",
		Workflows:     Workflow,
		CheckResult:   CheckResult,
		ClientOptions: client.Options{DataConverter: DataConverter()},
	}
}

func Workflow(workflow.Context) (*wrapperspb.BytesValue, error) {
	return wrapperspb.Bytes(ExpectedResult), nil
}

func CheckResult(ctx context.Context, r *harness.Runner, run client.WorkflowRun) error {
	var result wrapperspb.BytesValue
	if err := run.Get(ctx, &result); err != nil {
		return err
	}
	if !bytes.Equal(result.GetValue(), ExpectedResult) {
		return fmt.Errorf("invalid result: %v", result.GetValue())
	}

	payload, err := harness.GetWorkflowResultPayload(ctx, r.Client, run.GetID())
	if err != nil {
		return err
	}
	r.Require.Equal(converter.MetadataEncodingProtoJSON, harness.PayloadEncoding(payload))

	var inHistory wrapperspb.BytesValue
	if err := protojson.Unmarshal(payload.GetData(), &inHistory); err != nil {
		return err
	}
	r.Require.True(proto.Equal(&result, &inHistory), "history holds %v", inHistory.GetValue())
	return nil
}
