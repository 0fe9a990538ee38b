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
	"fmt"
	"sort"
	"sync"
)

// Builder returns a fresh Feature. It is called once per load so that any
// state a fixture keeps lives only as long as one run.
type Builder func() Feature

// Registry maps feature directories to their compiled builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register validates each builder's feature and records it under its Dir.
func (r *Registry) Register(builders ...Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, build := range builders {
		if build == nil {
			return fmt.Errorf("%w: nil builder", ErrFixtureMalformed)
		}
		prepared, err := PrepareFeature(build())
		if err != nil {
			return err
		}
		if _, exists := r.builders[prepared.Dir]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateFeature, prepared.Dir)
		}
		r.builders[prepared.Dir] = build
	}
	return nil
}

// MustRegister is Register that panics, for use from static registration lists.
func (r *Registry) MustRegister(builders ...Builder) {
	if err := r.Register(builders...); err != nil {
		panic(err)
	}
}

// Load resolves the descriptor to a freshly built, prepared feature.
func (r *Registry) Load(desc FeatureDescriptor) (*PreparedFeature, error) {
	r.mu.RLock()
	build, ok := r.builders[desc.Dir]
	r.mu.RUnlock()
	if !ok {
		return nil, NewFixtureLoadError(desc.Dir, ErrFixtureNotRegistered)
	}

	feature := build()
	if feature.Dir != desc.Dir {
		return nil, NewFixtureLoadError(desc.Dir,
			fmt.Errorf("%w: builder returned feature for %q", ErrFixtureMalformed, feature.Dir))
	}
	prepared, err := PrepareFeature(feature)
	if err != nil {
		return nil, NewFixtureLoadError(desc.Dir, err)
	}
	return prepared, nil
}

// Dirs returns the registered feature directories in alphabetical order.
func (r *Registry) Dirs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dirs := make([]string, 0, len(r.builders))
	for dir := range r.builders {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// RegisteredFeatures returns one freshly prepared instance of each feature, sorted by Dir.
func (r *Registry) RegisteredFeatures() []*PreparedFeature {
	dirs := r.Dirs()
	ret := make([]*PreparedFeature, 0, len(dirs))
	for _, dir := range dirs {
		p, err := r.Load(FeatureDescriptor{Dir: dir})
		if err != nil {
			continue
		}
		ret = append(ret, p)
	}
	return ret
}
