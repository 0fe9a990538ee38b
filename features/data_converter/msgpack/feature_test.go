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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"
)

func TestDataConverter_EncodesMsgpack(t *testing.T) {
	dc := DataConverter()

	p, err := dc.ToPayload(Expected)
	require.NoError(t, err)
	assert.Equal(t, Encoding, string(p.GetMetadata()[converter.MetadataEncoding]))

	nilPayload, err := dc.ToPayload(nil)
	require.NoError(t, err)
	assert.Equal(t, converter.MetadataEncodingNil, string(nilPayload.GetMetadata()[converter.MetadataEncoding]))
}

func TestWorkflow_EchoesThroughMsgpack(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	env.SetDataConverter(DataConverter())

	env.ExecuteWorkflow(Workflow, Expected)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var got Reading
	require.NoError(t, env.GetWorkflowResult(&got))
	assert.Equal(t, Expected, got)
}
