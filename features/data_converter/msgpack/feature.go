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

package msgpack

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/workflow"

	"github.com/ngnhng/features/harness"
)

// Encoding is the metadata encoding of MessagePack payloads.
const Encoding = "binary/msgpack"

var _ converter.PayloadConverter = (*PayloadConverter)(nil)

// PayloadConverter encodes any value as MessagePack.
type PayloadConverter struct{}

func (PayloadConverter) ToPayload(value any) (*commonpb.Payload, error) {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("msgpack serialization failed: %w", err)
	}
	return &commonpb.Payload{
		Metadata: map[string][]byte{converter.MetadataEncoding: []byte(Encoding)},
		Data:     data,
	}, nil
}

func (PayloadConverter) FromPayload(payload *commonpb.Payload, valuePtr any) error {
	if err := msgpack.Unmarshal(payload.GetData(), valuePtr); err != nil {
		return fmt.Errorf("msgpack deserialization failed: %w", err)
	}
	return nil
}

func (PayloadConverter) ToString(payload *commonpb.Payload) string {
	var v any
	if err := msgpack.Unmarshal(payload.GetData(), &v); err != nil {
		return err.Error()
	}
	return fmt.Sprint(v)
}

func (PayloadConverter) Encoding() string { return Encoding }

// DataConverter sends nil as nil and everything else as MessagePack.
func DataConverter() converter.DataConverter {
	return converter.NewCompositeDataConverter(
		converter.NewNilPayloadConverter(),
		PayloadConverter{},
	)
}

type Reading struct {
	Sensor string  `msgpack:"sensor"`
	Count  int64   `msgpack:"count"`
	Value  float64 `msgpack:"value"`
}

var Expected = Reading{Sensor: "s-1", Count: 3, Value: 2.5}

func Feature() harness.Feature {
	return harness.Feature{
		Dir:           "data_converter/msgpack",
		Workflows:     Workflow,
		Execute:       harness.ExecuteWithArgs(Workflow, Expected),
		CheckResult:   CheckResult,
		ClientOptions: client.Options{DataConverter: DataConverter()},
	}
}

func Workflow(_ workflow.Context, in Reading) (Reading, error) {
	return in, nil
}

func CheckResult(ctx context.Context, r *harness.Runner, run client.WorkflowRun) error {
	var result Reading
	if err := run.Get(ctx, &result); err != nil {
		return err
	}
	r.Require.Equal(Expected, result)

	payload, err := harness.GetWorkflowResultPayload(ctx, r.Client, run.GetID())
	if err != nil {
		return err
	}
	r.Require.Equal(Encoding, harness.PayloadEncoding(payload))

	var inHistory Reading
	if err := msgpack.Unmarshal(payload.GetData(), &inHistory); err != nil {
		return err
	}
	r.Require.Equal(result, inHistory)
	return nil
}
