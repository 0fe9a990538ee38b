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

package codec

import (
	"context"
	"encoding/base64"
	"encoding/json"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/workflow"
	"google.golang.org/protobuf/proto"

	"github.com/ngnhng/features/harness"
)

// Encoding marks payloads wrapped by Base64Codec.
const Encoding = "my-encoding"

type Message struct {
	Spec bool `json:"spec"`
}

// DataConverter is the default converter with Base64Codec on top.
func DataConverter() converter.DataConverter {
	return converter.NewCodecDataConverter(converter.GetDefaultDataConverter(), Base64Codec{})
}

func Feature() harness.Feature {
	return harness.Feature{
		Dir:           "data_converter/codec",
		Workflows:     Workflow,
		Execute:       harness.ExecuteWithArgs(Workflow, Message{true}),
		CheckResult:   CheckResult,
		ClientOptions: client.Options{DataConverter: DataConverter()},
	}
}

func Workflow(_ workflow.Context, in Message) (Message, error) {
	return in, nil
}

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
	r.Require.Equal(Encoding, harness.PayloadEncoding(payload))

	decoded, err := Base64Codec{}.Decode([]*commonpb.Payload{payload})
	if err != nil {
		return err
	}
	r.Require.Equal(converter.MetadataEncodingJSON, harness.PayloadEncoding(decoded[0]))

	var inHistory Message
	if err := json.Unmarshal(decoded[0].GetData(), &inHistory); err != nil {
		return err
	}
	r.Require.Equal(result, inHistory)

	// The echo workflow gets its argument back byte for byte.
	arg, err := harness.GetWorkflowArgumentPayload(ctx, r.Client, run.GetID())
	if err != nil {
		return err
	}
	r.Require.True(proto.Equal(payload, arg))
	return nil
}

// Base64Codec wraps each payload, marshaled as protobuf, in base64.
type Base64Codec struct{}

func (Base64Codec) Encode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	out := make([]*commonpb.Payload, len(payloads))
	for i, p := range payloads {
		b, err := proto.Marshal(p)
		if err != nil {
			return payloads, err
		}
		out[i] = &commonpb.Payload{
			Metadata: map[string][]byte{converter.MetadataEncoding: []byte(Encoding)},
			Data:     []byte(base64.StdEncoding.EncodeToString(b)),
		}
	}
	return out, nil
}

func (Base64Codec) Decode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	out := make([]*commonpb.Payload, len(payloads))
	for i, p := range payloads {
		if string(p.GetMetadata()[converter.MetadataEncoding]) != Encoding {
			out[i] = p
			continue
		}
		b, err := base64.StdEncoding.DecodeString(string(p.GetData()))
		if err != nil {
			return payloads, err
		}
		out[i] = &commonpb.Payload{}
		if err := proto.Unmarshal(b, out[i]); err != nil {
			return payloads, err
		}
	}
	return out, nil
}
