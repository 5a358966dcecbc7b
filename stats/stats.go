/*
NaiveSystems Analyze - A tool for static code analysis
Copyright (C) 2023  Naive Systems Ltd.

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/golang/glog"
	"github.com/hhatto/gocloc"
	"naive.systems/lintbridge/atomic"
	"naive.systems/lintbridge/diagnostics"
	"naive.systems/lintbridge/textdoc"
)

const (
	SummaryFile     = "summary.lint_metadata"
	DiagnosticsFile = "diagnostics.json"
)

type SeverityCount struct {
	Error       int `json:"error"`
	Warning     int `json:"warning"`
	Information int `json:"information"`
	Hint        int `json:"hint"`
}

func (c SeverityCount) Total() int {
	return c.Error + c.Warning + c.Information + c.Hint
}

type Summary struct {
	PassID     string        `json:"pass_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Roots      []string      `json:"roots"`
	Files      int           `json:"files"`
	LOC        int           `json:"loc"`
	Severity   SeverityCount `json:"severity"`
}

func AccumulateBySeverity(cnt *SeverityCount, severity diagnostics.Severity, code string) {
	switch severity {
	case diagnostics.Error:
		cnt.Error++
	case diagnostics.Warning:
		cnt.Warning++
	case diagnostics.Information:
		cnt.Information++
	case diagnostics.Hint:
		cnt.Hint++
	default:
		glog.Warningf("undefined severity of %s finding", code)
	}
}

func CountSeverity(snapshot map[textdoc.URI][]diagnostics.Diagnostic) SeverityCount {
	var cnt SeverityCount
	for _, diags := range snapshot {
		for _, d := range diags {
			AccumulateBySeverity(&cnt, d.Severity, d.Code)
		}
	}
	return cnt
}

// CountLines returns the Swift code lines of files, comments and blank
// lines excluded.
func CountLines(files []string) (int, error) {
	if len(files) == 0 {
		return 0, nil
	}
	clocOpts := gocloc.NewClocOptions()
	languages := gocloc.NewDefinedLanguages()
	if _, exists := languages.Langs["Swift"]; exists {
		clocOpts.IncludeLangs["Swift"] = struct{}{}
	}
	processor := gocloc.NewProcessor(languages, clocOpts)
	result, err := processor.Analyze(files)
	if err != nil {
		return 0, fmt.Errorf("gocloc: %v", err)
	}
	sum := 0
	for _, file := range result.Files {
		sum += int(file.Code)
	}
	return sum, nil
}

func WriteSummary(resultDir string, summary Summary) {
	path := filepath.Join(resultDir, SummaryFile)
	if err := atomic.WriteJSON(path, summary); err != nil {
		glog.Errorf("failed to write to file %s: %v", path, err)
	}
}

type fileDiagnostics struct {
	URI         textdoc.URI              `json:"uri"`
	Diagnostics []diagnostics.Diagnostic `json:"diagnostics"`
}

// WriteDiagnostics dumps a collection snapshot sorted by URI. Clean files
// are kept with an empty list.
func WriteDiagnostics(resultDir string, snapshot map[textdoc.URI][]diagnostics.Diagnostic) error {
	// skip writing it if resultDir does not exist
	if _, err := os.Stat(resultDir); os.IsNotExist(err) {
		glog.Warningf("result dir %s does not exist", resultDir)
		return nil
	}
	out := make([]fileDiagnostics, 0, len(snapshot))
	for uri, diags := range snapshot {
		if diags == nil {
			diags = []diagnostics.Diagnostic{}
		}
		out = append(out, fileDiagnostics{URI: uri, Diagnostics: diags})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	path := filepath.Join(resultDir, DiagnosticsFile)
	if err := atomic.WriteJSON(path, out); err != nil {
		return fmt.Errorf("stats.WriteDiagnostics: %v", err)
	}
	return nil
}
