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

package config

import "time"

const (
	DefaultDrainTimeout  = 5 * time.Second
	DefaultReconnectWait = 2 * time.Second
	DefaultPingInterval  = 2 * time.Minute

	// Summary publishing is short lived, so give up after a few attempts.
	DefaultMaxReconnects = 5
	DefaultMaxPingsOut   = 2

	DefaultSummaryStream = "FEATURES_SUMMARY"
)

// NATSConfig tunes the connection used by the nats:// summary sink. The
// address and subject come from the summary URI itself.
type NATSConfig struct {
	MaxReconnects int           `json:"max_reconnects"  env:"MAX_RECONNECTS"`
	ReconnectWait time.Duration `json:"reconnect_wait"  env:"RECONNECT_WAIT"`
	DrainTimeout  time.Duration `json:"drain_timeout"   env:"DRAIN_TIMEOUT"`
	PingInterval  time.Duration `json:"ping_interval"   env:"PING_INTERVAL"`
	MaxPingsOut   int           `json:"max_pings_out"   env:"MAX_PINGS_OUT"`
	ClientName    string        `json:"client_name"     env:"CLIENT_NAME"`
	Stream        string        `json:"stream"          env:"STREAM"`
}

func (c *NATSConfig) NATSMaxReconnects() int           { return c.MaxReconnects }
func (c *NATSConfig) NATSReconnectWait() time.Duration { return c.ReconnectWait }
func (c *NATSConfig) NATSDrainTimeout() time.Duration  { return c.DrainTimeout }
func (c *NATSConfig) NATSPingInterval() time.Duration  { return c.PingInterval }
func (c *NATSConfig) NATSMaxPingsOut() int             { return c.MaxPingsOut }
func (c *NATSConfig) NATSClientName() string           { return c.ClientName }
func (c *NATSConfig) NATSStream() string               { return c.Stream }
