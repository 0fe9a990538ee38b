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

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ngnhng/features/harness"
)

func newListCommand(a *app) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if root != "" {
				a.cfg.Harness.FeaturesRoot = root
			}
			descs, err := harness.Discover(a.featuresFS())
			if err != nil {
				return err
			}
			onDisk := make(map[string]bool, len(descs))
			for _, d := range descs {
				onDisk[d.Dir] = true
			}
			out := cmd.OutOrStdout()
			registered := make(map[string]bool)
			for _, dir := range a.opts.Registry.Dirs() {
				registered[dir] = true
				if onDisk[dir] {
					fmt.Fprintln(out, dir)
				} else {
					fmt.Fprintf(out, "%s (no directory under %s)\n", dir, a.cfg.Harness.FeaturesRoot)
				}
			}
			for _, d := range descs {
				if !registered[d.Dir] {
					a.log.Warn("feature directory is not registered", "dir", d.Dir)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "features root directory")
	return cmd
}
