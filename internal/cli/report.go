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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/ngnhng/features/harness"
)

var (
	okMarker      = color.New(color.FgGreen, color.Bold)
	failedMarker  = color.New(color.FgRed, color.Bold)
	skippedMarker = color.New(color.FgYellow, color.Bold)
	traceColor    = color.New(color.FgHiBlack)
)

// Stats is the run summary written to --stats-output.
type Stats struct {
	Passed  []string `json:"passed"`
	Failed  []string `json:"failed"`
	Skipped []string `json:"skipped"`
}

// reporter prints one marker line per outcome as it arrives and keeps the
// outcomes for the final table.
type reporter struct {
	w        io.Writer
	outcomes []harness.Outcome
}

func newReporter(w io.Writer) *reporter {
	return &reporter{w: w}
}

func (r *reporter) Record(o harness.Outcome) {
	r.outcomes = append(r.outcomes, o)
	dur := formatDuration(o.Duration)
	switch o.Status {
	case harness.StatusPassed:
		fmt.Fprintf(r.w, "%s %s (%s)\n", okMarker.Sprint("OK"), o.Name, dur)
	case harness.StatusSkipped:
		fmt.Fprintf(r.w, "%s %s (%s): %s\n", skippedMarker.Sprint("SKIPPED"), o.Name, dur, o.Message)
	default:
		fmt.Fprintf(r.w, "%s %s (%s): %s\n", failedMarker.Sprint("FAILED"), o.Name, dur, o.Message)
		if trace := o.Trace(); trace != "" {
			for _, frame := range strings.Split(trace, "\n") {
				fmt.Fprintln(r.w, traceColor.Sprint("    "+frame))
			}
		}
	}
}

// RenderTable writes the summary table of every recorded outcome.
func (r *reporter) RenderTable() error {
	table := tablewriter.NewWriter(r.w)
	table.Header([]string{"Feature", "Outcome", "Duration", "Message"})
	for _, o := range r.outcomes {
		if err := table.Append([]string{o.Name, string(o.Status), formatDuration(o.Duration), firstLine(o.Message)}); err != nil {
			return err
		}
	}
	return table.Render()
}

func (r *reporter) Stats() Stats {
	s := Stats{Passed: []string{}, Failed: []string{}, Skipped: []string{}}
	for _, o := range r.outcomes {
		switch o.Status {
		case harness.StatusPassed:
			s.Passed = append(s.Passed, o.Name)
		case harness.StatusSkipped:
			s.Skipped = append(s.Skipped, o.Name)
		default:
			s.Failed = append(s.Failed, o.Name)
		}
	}
	return s
}

func writeStats(path string, s Stats) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	return d.Round(10 * time.Millisecond).String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
