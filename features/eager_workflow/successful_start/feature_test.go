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

package successful_start

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/workflowservice/v1"
	"google.golang.org/grpc"
)

func TestEagerDetector(t *testing.T) {
	var count atomic.Uint64
	detect := EagerDetector(&count)

	call := func(eager bool, granted bool, invokeErr error) error {
		req := &workflowservice.StartWorkflowExecutionRequest{RequestEagerExecution: eager}
		resp := &workflowservice.StartWorkflowExecutionResponse{}
		invoker := func(_ context.Context, _ string, _, reply any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
			if granted {
				reply.(*workflowservice.StartWorkflowExecutionResponse).EagerWorkflowTask = &workflowservice.PollWorkflowTaskQueueResponse{}
			}
			return invokeErr
		}
		return detect(context.Background(), "/StartWorkflowExecution", req, resp, nil, invoker)
	}

	require.NoError(t, call(true, true, nil))
	require.NoError(t, call(false, true, nil))
	require.NoError(t, call(true, false, nil))
	require.Error(t, call(true, true, errors.New("unavailable")))

	assert.Equal(t, uint64(1), count.Load())
}
