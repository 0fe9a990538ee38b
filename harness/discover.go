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
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// FeatureFileName marks a directory as a feature.
const FeatureFileName = "feature.go"

// Discover walks fsys and returns one descriptor per directory containing
// feature.go, sorted by Dir. Task queues are left empty.
func Discover(fsys fs.FS) ([]FeatureDescriptor, error) {
	var found []FeatureDescriptor
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if p != "." && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata") {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() != FeatureFileName {
			return nil
		}
		dir := path.Dir(p)
		if dir == "." {
			return nil
		}
		found = append(found, FeatureDescriptor{Dir: dir, Package: packageName(dir)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover features: %w", err)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Dir < found[j].Dir })
	return found, nil
}

// FeatureConfig is the optional .config.json beside a feature.
type FeatureConfig struct {
	// NoWorkflow marks features that start no workflow of their own; their
	// history is neither replayed nor stored.
	NoWorkflow bool            `json:"noWorkflow"`
	Go         FeatureConfigGo `json:"go"`
}

type FeatureConfigGo struct {
	MinVersion string `json:"minVersion"`
}

// LoadFeatureConfig reads dir/.config.json from fsys. A missing file yields the zero config.
func LoadFeatureConfig(fsys fs.FS, dir string) (FeatureConfig, error) {
	var cfg FeatureConfig
	b, err := fs.ReadFile(fsys, path.Join(dir, ".config.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	} else if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s/.config.json: %w", dir, err)
	}
	return cfg, nil
}

// SkipReason reports why the feature cannot run against sdkVersion, or "".
func (c FeatureConfig) SkipReason(sdkVersion string) string {
	minVersion := c.Go.MinVersion
	if minVersion == "" {
		return ""
	}
	if !strings.HasPrefix(minVersion, "v") {
		minVersion = "v" + minVersion
	}
	if !semver.IsValid(minVersion) {
		return ""
	}
	if semver.Compare(sdkVersion, minVersion) < 0 {
		return fmt.Sprintf("requires SDK %s, running %s", minVersion, sdkVersion)
	}
	return ""
}
