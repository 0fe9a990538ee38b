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

package summary

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngnhng/features/harness"
	"github.com/ngnhng/features/internal/config"
)

// startEmbeddedNATS starts a JetStream-enabled server on a random port.
func startEmbeddedNATS(t *testing.T) (*server.Server, jetstream.JetStream) {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err, "failed to create NATS server")
	ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready for connections")
	}

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
	})
	return ns, js
}

func testNATSConfig() *config.NATSConfig {
	return &config.NATSConfig{
		MaxReconnects: config.DefaultMaxReconnects,
		ReconnectWait: config.DefaultReconnectWait,
		DrainTimeout:  config.DefaultDrainTimeout,
		PingInterval:  config.DefaultPingInterval,
		MaxPingsOut:   config.DefaultMaxPingsOut,
		Stream:        "TEST_SUMMARY",
	}
}

func TestOpen_NATSSink(t *testing.T) {
	ns, js := startEmbeddedNATS(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sink, err := Open(ctx, ns.ClientURL()+"/features/summary", testNATSConfig())
	require.NoError(t, err)
	natsSink, ok := sink.(*NATSSink)
	require.True(t, ok)
	assert.Equal(t, "features.summary", natsSink.Subject())
	assert.Equal(t, "TEST_SUMMARY", natsSink.Stream())

	for _, o := range sampleOutcomes() {
		require.NoError(t, sink.Write(ctx, o))
	}
	require.NoError(t, sink.Close())

	stream, err := js.Stream(ctx, "TEST_SUMMARY")
	require.NoError(t, err)
	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.State.Msgs)

	msg, err := stream.GetMsg(ctx, 3)
	require.NoError(t, err)
	var last harness.Outcome
	require.NoError(t, json.Unmarshal(msg.Data, &last))
	assert.Equal(t, "signal/external", last.Name)
	assert.Equal(t, harness.StatusFailed, last.Status)
}

func TestOpen_NATSSinkReusesStream(t *testing.T) {
	ns, js := startEmbeddedNATS(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:      "TEST_SUMMARY",
		Subjects:  []string{"other.subject"},
		Retention: jetstream.LimitsPolicy,
	})
	require.NoError(t, err)

	sink, err := Open(ctx, ns.ClientURL()+"/features/summary", testNATSConfig())
	require.NoError(t, err)
	defer sink.Close()

	stream, err := js.Stream(ctx, "TEST_SUMMARY")
	require.NoError(t, err)
	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"other.subject", "features.summary"}, info.Config.Subjects)
}
