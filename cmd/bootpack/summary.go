// Copyright 2025 walteh LLC
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

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pterm/pterm"

	"github.com/walteh/bootpack/pkg/runner"
)

// summaryRows turns outcomes into table rows, header first
func summaryRows(outcomes []runner.Outcome) pterm.TableData {
	data := pterm.TableData{{"Artifact", "Status", "Destination", "Start class", "Libraries"}}
	for _, o := range outcomes {
		name := o.Job.Name
		if name == "" {
			name = o.Job.Options.Source
		}
		switch {
		case o.Skipped:
			data = append(data, []string{name, "skipped", "", "", ""})
		case o.Err != nil:
			data = append(data, []string{name, "failed", "", "", ""})
		case o.Result.AlreadyRepackaged:
			data = append(data, []string{name, "unchanged", o.Result.Destination, "", ""})
		default:
			status := "repackaged"
			if o.Result.MissingLoader {
				status = "repackaged (no launcher)"
			}
			data = append(data, []string{name, status, o.Result.Destination, o.Result.StartClass, strconv.Itoa(len(o.Result.Libraries))})
		}
	}
	return data
}

// renderSummary writes the result table for a run
func renderSummary(out io.Writer, outcomes []runner.Outcome) error {
	table, err := pterm.DefaultTable.WithHasHeader().WithData(summaryRows(outcomes)).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, table)
	return err
}
