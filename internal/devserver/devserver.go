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

// Package devserver runs an ephemeral development server in a container.
package devserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	DefaultImage          = "temporalio/temporal:latest"
	DefaultStartupTimeout = 2 * time.Minute
	frontendPort          = "7233/tcp"
)

// dynamicConfig enables the server features the fixtures check for.
var dynamicConfig = []string{
	"frontend.enableUpdateWorkflowExecution=true",
	"frontend.enableUpdateWorkflowExecutionAsyncAccepted=true",
	"system.enableEagerWorkflowStart=true",
}

type Options struct {
	Image          string
	Namespace      string
	StartupTimeout time.Duration
	Logger         *slog.Logger
}

// Server is a running dev server container.
type Server struct {
	container testcontainers.Container
	log       *slog.Logger

	// HostPort is the frontend address reachable from the host.
	HostPort  string
	Namespace string
}

func containerRequest(opts Options) testcontainers.ContainerRequest {
	image := opts.Image
	if image == "" {
		image = DefaultImage
	}
	timeout := opts.StartupTimeout
	if timeout == 0 {
		timeout = DefaultStartupTimeout
	}
	cmd := []string{"server", "start-dev", "--ip", "0.0.0.0", "--headless", "--log-level", "warn"}
	if opts.Namespace != "" {
		cmd = append(cmd, "--namespace", opts.Namespace)
	}
	for _, kv := range dynamicConfig {
		cmd = append(cmd, "--dynamic-config-value", kv)
	}
	return testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{frontendPort},
		Cmd:          cmd,
		WaitingFor:   wait.ForListeningPort(frontendPort).WithStartupTimeout(timeout),
	}
}

// Start launches the container and returns once the frontend port accepts
// connections.
func Start(ctx context.Context, opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	req := containerRequest(opts)
	log.Info("starting dev server", "image", req.Image)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start dev server container: %w", err)
	}
	endpoint, err := container.PortEndpoint(ctx, frontendPort, "")
	if err != nil {
		_ = container.Terminate(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to get dev server endpoint: %w", err)
	}
	ns := opts.Namespace
	if ns == "" {
		ns = "default"
	}
	log.Info("dev server started", "host_port", endpoint, "namespace", ns)
	return &Server{container: container, log: log, HostPort: endpoint, Namespace: ns}, nil
}

// Stop terminates the container.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.container == nil {
		return nil
	}
	if err := s.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate dev server: %w", err)
	}
	s.log.Info("dev server stopped")
	return nil
}
