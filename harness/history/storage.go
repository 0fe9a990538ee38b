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

package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// StoredSet holds recorded histories keyed by SDK version ("v1.2.3").
type StoredSet struct {
	ByVersion map[string]Histories
}

// Versions returns the recorded versions in ascending semver order.
// Invalid versions sort first.
func (s *StoredSet) Versions() []string {
	versions := make([]string, 0, len(s.ByVersion))
	for v := range s.ByVersion {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		if c := semver.Compare(versions[i], versions[j]); c != 0 {
			return c < 0
		}
		return versions[i] < versions[j]
	})
	return versions
}

// Storage reads and writes history.<lang>.<version>.json files in Dir.
type Storage struct {
	Dir  string
	Lang string
}

func (s *Storage) prefix() string {
	return "history." + s.Lang + "."
}

// Load reads every stored history. A missing directory yields an empty set.
func (s *Storage) Load() (*StoredSet, error) {
	set := &StoredSet{ByVersion: map[string]Histories{}}
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return set, nil
	} else if err != nil {
		return nil, err
	}
	prefix := s.prefix()
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		file := filepath.Join(s.Dir, name)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed reading %v: %w", file, err)
		}
		var h Histories
		if err := json.Unmarshal(b, &h); err != nil {
			return nil, fmt.Errorf("failed unmarshaling %v: %w", file, err)
		}
		set.ByVersion[strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")] = h
	}
	return set, nil
}

// Store writes each version of set, overwriting existing files.
func (s *Storage) Store(set *StoredSet) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	for version, hist := range set.ByVersion {
		file := filepath.Join(s.Dir, s.prefix()+version+".json")
		b, err := json.MarshalIndent(hist, "", "  ")
		if err != nil {
			return fmt.Errorf("failed marshaling %v: %w", file, err)
		}
		if err := os.WriteFile(file, b, 0o644); err != nil {
			return fmt.Errorf("failed writing %v: %w", file, err)
		}
	}
	return nil
}
