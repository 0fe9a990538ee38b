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

package devserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContainerRequest_Defaults(t *testing.T) {
	req := containerRequest(Options{})

	assert.Equal(t, DefaultImage, req.Image)
	assert.Equal(t, []string{frontendPort}, req.ExposedPorts)
	assert.Equal(t, []string{"server", "start-dev", "--ip", "0.0.0.0"}, req.Cmd[:4])
	assert.NotContains(t, req.Cmd, "--namespace")
	assert.Contains(t, req.Cmd, "frontend.enableUpdateWorkflowExecution=true")
	assert.NotNil(t, req.WaitingFor)
}

func TestContainerRequest_Namespace(t *testing.T) {
	req := containerRequest(Options{Image: "temporalio/temporal:1.4.0", Namespace: "features", StartupTimeout: time.Second})

	assert.Equal(t, "temporalio/temporal:1.4.0", req.Image)
	assert.Contains(t, req.Cmd, "--namespace")
	assert.Contains(t, req.Cmd, "features")
}

func TestServer_StopNil(t *testing.T) {
	var s *Server
	assert.NoError(t, s.Stop(context.Background()))
}
