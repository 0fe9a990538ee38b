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

// Package features holds the compiled feature fixtures, one package per
// feature directory.
package features

import (
	"github.com/ngnhng/features/features/activity/cancel_try_cancel"
	"github.com/ngnhng/features/features/activity/retry_on_error"
	"github.com/ngnhng/features/features/activity/shutdown"
	"github.com/ngnhng/features/features/child_workflow/result"
	"github.com/ngnhng/features/features/client/http_proxy"
	"github.com/ngnhng/features/features/continue_as_new/continue_as_same"
	dcCodec "github.com/ngnhng/features/features/data_converter/codec"
	dcJSON "github.com/ngnhng/features/features/data_converter/json"
	dcJSONProtobuf "github.com/ngnhng/features/features/data_converter/json_protobuf"
	dcMsgpack "github.com/ngnhng/features/features/data_converter/msgpack"
	"github.com/ngnhng/features/features/eager_workflow/successful_start"
	"github.com/ngnhng/features/features/grpc_retry/server_down_between_start_worker_and_start_workflow"
	"github.com/ngnhng/features/features/grpc_retry/server_frozen_for_initiator"
	"github.com/ngnhng/features/features/grpc_retry/server_unavailable_for_initiator"
	"github.com/ngnhng/features/features/query/successful_query"
	"github.com/ngnhng/features/features/query/unexpected_query_type_name"
	"github.com/ngnhng/features/features/schedule/backfill"
	scheduleBasic "github.com/ngnhng/features/features/schedule/basic"
	"github.com/ngnhng/features/features/schedule/pause"
	"github.com/ngnhng/features/features/schedule/trigger"
	"github.com/ngnhng/features/features/signal/external"
	"github.com/ngnhng/features/features/signal/signal_with_start"
	"github.com/ngnhng/features/features/update/async_accepted"
	updateBasic "github.com/ngnhng/features/features/update/basic"
	"github.com/ngnhng/features/features/update/worker_restart"
	"github.com/ngnhng/features/harness"
)

// Builders lists every fixture. Adding a feature directory means adding its
// builder here.
var Builders = []harness.Builder{
	cancel_try_cancel.Feature,
	retry_on_error.Feature,
	shutdown.Feature,
	result.Feature,
	http_proxy.Feature,
	continue_as_same.Feature,
	dcCodec.Feature,
	dcJSON.Feature,
	dcJSONProtobuf.Feature,
	dcMsgpack.Feature,
	successful_start.Feature,
	server_down_between_start_worker_and_start_workflow.Feature,
	server_frozen_for_initiator.Feature,
	server_unavailable_for_initiator.Feature,
	successful_query.Feature,
	unexpected_query_type_name.Feature,
	backfill.Feature,
	scheduleBasic.Feature,
	pause.Feature,
	trigger.Feature,
	external.Feature,
	signal_with_start.Feature,
	async_accepted.Feature,
	updateBasic.Feature,
	worker_restart.Feature,
}

// Registry returns a registry holding every fixture.
func Registry() *harness.Registry {
	reg := harness.NewRegistry()
	reg.MustRegister(Builders...)
	return reg
}
