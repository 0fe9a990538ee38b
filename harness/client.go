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

package harness

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v4"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"google.golang.org/grpc"
)

// ConnectOptions describe how to reach the server.
type ConnectOptions struct {
	HostPort       string
	Namespace      string
	ClientCertPath string
	ClientKeyPath  string
	HTTPProxyURL   string

	// Base carries feature-specific client options such as data converters
	// and interceptors. Connection fields are overwritten.
	Base client.Options

	// Dial overrides client.DialContext.
	Dial func(options client.Options) (client.Client, error)
}

// Connect dials the server. Every failure is a *ConnectionError.
func Connect(ctx context.Context, o ConnectOptions) (client.Client, error) {
	opts := o.Base
	opts.HostPort = o.HostPort
	opts.Namespace = o.Namespace

	tlsCfg, err := LoadTLSConfig(o.ClientCertPath, o.ClientKeyPath)
	if err != nil {
		return nil, NewConnectionError(o.HostPort, o.Namespace, err)
	}
	if tlsCfg != nil {
		opts.ConnectionOptions.TLS = tlsCfg
	}

	if o.HTTPProxyURL != "" {
		dialOpt, err := ProxyDialOption(o.HTTPProxyURL)
		if err != nil {
			return nil, NewConnectionError(o.HostPort, o.Namespace, err)
		}
		opts.ConnectionOptions.DialOptions = append(opts.ConnectionOptions.DialOptions, dialOpt)
	}

	var c client.Client
	if o.Dial != nil {
		c, err = o.Dial(opts)
	} else {
		c, err = client.DialContext(ctx, opts)
	}
	if err != nil {
		return nil, NewConnectionError(o.HostPort, o.Namespace, err)
	}
	return c, nil
}

// LoadTLSConfig builds a client TLS config from a cert/key pair. Both or
// neither must be given; neither yields a nil config.
func LoadTLSConfig(clientCertPath, clientKeyPath string) (*tls.Config, error) {
	if clientCertPath != "" {
		if clientKeyPath == "" {
			return nil, errors.New("got TLS cert with no key")
		}
		cert, err := tls.LoadX509KeyPair(clientCertPath, clientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load certs: %w", err)
		}
		return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
	} else if clientKeyPath != "" {
		return nil, errors.New("got TLS key with no cert")
	}
	return nil, nil
}

// NamespaceDescriber is the single call WaitNamespaceAvailable needs.
type NamespaceDescriber interface {
	DescribeNamespace(ctx context.Context, in *workflowservice.DescribeNamespaceRequest, opts ...grpc.CallOption) (*workflowservice.DescribeNamespaceResponse, error)
}

// WaitNamespaceAvailable polls until the namespace can be described or timeout elapses.
func WaitNamespaceAvailable(ctx context.Context, svc NamespaceDescriber, namespace string, timeout time.Duration) error {
	const interval = 100 * time.Millisecond
	attempts := max(uint(timeout/interval), 1)
	err := retry.Do(
		func() error {
			_, err := svc.DescribeNamespace(ctx, &workflowservice.DescribeNamespaceRequest{Namespace: namespace})
			return err
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("namespace %s not available after %v: %w", namespace, timeout, err)
	}
	return nil
}

// RetryFor calls cond until it reports true, waiting interval between
// attempts. It returns the last error cond produced.
func RetryFor(ctx context.Context, maxAttempts int, interval time.Duration, cond func() (bool, error)) error {
	return retry.Do(
		func() error {
			ok, err := cond()
			if ok {
				return nil
			}
			if err == nil {
				err = fmt.Errorf("condition not met after %d attempts", maxAttempts)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(max(maxAttempts, 1))),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}
