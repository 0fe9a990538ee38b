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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterActivities struct {
	calls int
}

func (a *counterActivities) Count(context.Context) (int, error) {
	a.calls++
	return a.calls, nil
}

func TestRegistry_RegisterAndLoad(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(
		func() Feature { return Feature{Dir: "update/basic", Workflows: echoWorkflow} },
		func() Feature {
			return Feature{Dir: "activity/basic", Workflows: echoWorkflow, Activities: &counterActivities{}}
		},
	))

	assert.Equal(t, []string{"activity/basic", "update/basic"}, reg.Dirs())

	first, err := reg.Load(FeatureDescriptor{Dir: "activity/basic"})
	require.NoError(t, err)
	second, err := reg.Load(FeatureDescriptor{Dir: "activity/basic"})
	require.NoError(t, err)

	require.Len(t, first.Activities, 1)
	require.Len(t, second.Activities, 1)
	// Each load builds its own fixture state.
	assert.NotSame(t, first.Activities[0].Activity, second.Activities[0].Activity)
}

func TestRegistry_Duplicate(t *testing.T) {
	reg := NewRegistry()
	build := func() Feature { return Feature{Dir: "query/basic", Workflows: echoWorkflow} }
	require.NoError(t, reg.Register(build))
	assert.ErrorIs(t, reg.Register(build), ErrDuplicateFeature)
}

func TestRegistry_LoadErrors(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.MustRegister(func() Feature {
		calls++
		if calls > 1 {
			return Feature{Dir: "drifting/dir", Workflows: echoWorkflow}
		}
		return Feature{Dir: "signal/basic", Workflows: echoWorkflow}
	})

	_, err := reg.Load(FeatureDescriptor{Dir: "missing/feature"})
	var loadErr *FixtureLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "missing/feature", loadErr.Dir)
	assert.ErrorIs(t, err, ErrFixtureNotRegistered)

	_, err = reg.Load(FeatureDescriptor{Dir: "signal/basic"})
	assert.ErrorIs(t, err, ErrFixtureMalformed)
}

func TestPrepareFeature_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		feature Feature
	}{
		{name: "empty dir", feature: Feature{Workflows: echoWorkflow}},
		{name: "unclean dir", feature: Feature{Dir: "a/../b", Workflows: echoWorkflow}},
		{name: "workflow not a function", feature: Feature{Dir: "a/b", Workflows: "Workflow"}},
		{name: "activity not a function", feature: Feature{Dir: "a/b", Workflows: echoWorkflow, Activities: 42}},
		{name: "no workflow and no executor", feature: Feature{Dir: "a/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PrepareFeature(tt.feature)
			assert.ErrorIs(t, err, ErrFixtureMalformed)
		})
	}
}

func TestPrepareFeature_Normalizes(t *testing.T) {
	p, err := PrepareFeature(Feature{
		Dir: "/child_workflow/result/",
		Workflows: []any{
			echoWorkflow,
			WorkflowWithOptions{Workflow: otherWorkflow},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "child_workflow/result", p.Dir)
	assert.Len(t, p.Workflows, 2)

	_, err = p.PrimaryWorkflow()
	assert.ErrorIs(t, err, ErrAmbiguousWorkflow)

	skipped, err := PrepareFeature(Feature{Dir: "x/y", SkipReason: "not today"})
	require.NoError(t, err)
	assert.Equal(t, "not today", skipped.SkipReason)
}

func TestParseDescriptor(t *testing.T) {
	desc, err := ParseDescriptor("update/basic:tq-1")
	require.NoError(t, err)
	assert.Equal(t, FeatureDescriptor{Dir: "update/basic", Package: "basic", TaskQueue: "tq-1"}, desc)
	assert.Equal(t, "update/basic:tq-1", desc.String())

	_, err = ParseDescriptor("update/basic")
	assert.Error(t, err)
	_, err = ParseDescriptor(":tq")
	assert.ErrorIs(t, err, ErrFixtureMalformed)
}
