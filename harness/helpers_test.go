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
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// eventLog records lifecycle events from fake workers in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// fakeRuntime stands in for a worker: Run blocks until interrupted, or
// returns failWith straight away when set.
type fakeRuntime struct {
	name      string
	log       *eventLog
	failWith  error
	stopDelay time.Duration
	started   chan struct{}

	mu         sync.Mutex
	workflows  []string
	activities int
}

func (f *fakeRuntime) RegisterWorkflowWithOptions(w any, options workflow.RegisterOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workflows = append(f.workflows, options.Name)
}

func (f *fakeRuntime) RegisterActivityWithOptions(any, activity.RegisterOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities++
}

func (f *fakeRuntime) Run(interruptCh <-chan any) error {
	if f.log != nil {
		f.log.add(f.name + " started")
	}
	if f.started != nil {
		close(f.started)
	}
	if f.failWith != nil {
		return f.failWith
	}
	<-interruptCh
	time.Sleep(f.stopDelay)
	if f.log != nil {
		f.log.add(f.name + " stopped")
	}
	return nil
}

// runtimeFactory hands out runtimes built by next, one per StartWorker.
type runtimeFactory struct {
	mu    sync.Mutex
	built []*fakeRuntime
	next  func(n int) *fakeRuntime
}

func (f *runtimeFactory) New(client.Client, string, worker.Options) WorkerRuntime {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rt *fakeRuntime
	if f.next != nil {
		rt = f.next(len(f.built))
	} else {
		rt = &fakeRuntime{}
	}
	f.built = append(f.built, rt)
	return rt
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMockClient() *mocks.Client {
	c := &mocks.Client{}
	c.On("Close").Return()
	return c
}

func testRunnerConfig(c client.Client, factory *runtimeFactory) RunnerConfig {
	if factory == nil {
		factory = &runtimeFactory{}
	}
	return RunnerConfig{
		ServerHostPort: "127.0.0.1:7233",
		Namespace:      "default",
		TaskQueue:      "features-tq",
		Logger:         discardLogger(),
		Dial:           func(client.Options) (client.Client, error) { return c, nil },
		NewWorker:      factory.New,
	}
}

func newTestRunner(t *testing.T, feature Feature, c client.Client, factory *runtimeFactory) *Runner {
	t.Helper()
	prepared, err := PrepareFeature(feature)
	require.NoError(t, err)
	r, err := NewRunner(context.Background(), testRunnerConfig(c, factory), prepared)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func echoWorkflow(_ workflow.Context, in string) (string, error) {
	return in, nil
}

func otherWorkflow(workflow.Context) error {
	return nil
}
