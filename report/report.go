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

/*
Package report parses the JSON reporter output of swiftlint and maps each
finding onto a diagnostic.

A finding is mapped either against a live document, where the reported
column is widened to the identifier it points at, or against a file on disk,
where the range is a single character.
*/
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/golang/glog"
	"naive.systems/lintbridge/diagnostics"
	"naive.systems/lintbridge/textdoc"
)

// Report is one finding of the json reporter.
type Report struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Character *int   `json:"character"`
	Reason    string `json:"reason"`
	RuleID    string `json:"rule_id"`
	Severity  string `json:"severity"`
	Type      string `json:"type"`
}

func Parse(stdout []byte) ([]Report, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var reports []Report
	if err := json.Unmarshal(trimmed, &reports); err != nil {
		return nil, fmt.Errorf("report.Parse: %v", err)
	}
	return reports, nil
}

func ToSeverity(severity string) diagnostics.Severity {
	switch severity {
	case "Warning":
		return diagnostics.Warning
	case "Error":
		return diagnostics.Error
	}
	return diagnostics.Information
}

func Message(r Report) string {
	return fmt.Sprintf("%s (%s)", r.Reason, r.RuleID)
}

func newDiagnostic(r Report, rng textdoc.Range) diagnostics.Diagnostic {
	return diagnostics.Diagnostic{
		Range:    rng,
		Message:  Message(r),
		Severity: ToSeverity(r.Severity),
		Source:   diagnostics.Source,
		Code:     r.RuleID,
	}
}

// LineOutOfRangeError is returned for a finding on a line the document does
// not have, typically because the buffer changed after the pass started.
type LineOutOfRangeError struct {
	URI       textdoc.URI
	Line      int
	LineCount int
}

func (e *LineOutOfRangeError) Error() string {
	return fmt.Sprintf("line %d out of range, %s has %d lines", e.Line, e.URI, e.LineCount)
}

// ToDocumentDiagnostic maps r onto the live document doc. A finding without
// a column covers the whole line. Otherwise the range starts at the column,
// clamped to the line end, and runs to the end of the identifier found there
// or over a single character.
func ToDocumentDiagnostic(r Report, doc *textdoc.Document) (diagnostics.Diagnostic, error) {
	line, err := doc.LineAt(r.Line - 1)
	if err != nil {
		return diagnostics.Diagnostic{}, &LineOutOfRangeError{URI: doc.URI, Line: r.Line, LineCount: doc.LineCount()}
	}
	if r.Character == nil {
		return newDiagnostic(r, line.Range()), nil
	}
	column := *r.Character
	if column < 0 {
		column = 0
	}
	if column > line.Length() {
		column = line.Length()
	}
	start := textdoc.Position{Line: line.Number, Character: column}
	rng := textdoc.Range{Start: start, End: start.Translate(1)}
	if word, ok := doc.WordRangeAtPosition(start); ok && start.Before(word.End) {
		rng.End = word.End
	}
	return newDiagnostic(r, rng), nil
}

// ToFileDiagnostic maps r without looking at the file contents.
func ToFileDiagnostic(r Report) diagnostics.Diagnostic {
	column := 0
	if r.Character != nil && *r.Character > 0 {
		column = *r.Character
	}
	line := r.Line - 1
	if line < 0 {
		line = 0
	}
	return newDiagnostic(r, textdoc.NewRange(line, column, line, column+1))
}

// MapDocument maps every report that fits doc. Reports that do not are
// logged and skipped.
func MapDocument(reports []Report, doc *textdoc.Document) []diagnostics.Diagnostic {
	diags := make([]diagnostics.Diagnostic, 0, len(reports))
	for _, r := range reports {
		d, err := ToDocumentDiagnostic(r, doc)
		if err != nil {
			glog.Warningf("skipped %s finding: %v", r.RuleID, err)
			continue
		}
		diags = append(diags, d)
	}
	return diags
}

// GroupByFile maps reports with ToFileDiagnostic and groups them by the
// cleaned absolute path of the reported file. Relative paths are resolved
// against dir.
func GroupByFile(reports []Report, dir string) map[string][]diagnostics.Diagnostic {
	grouped := map[string][]diagnostics.Diagnostic{}
	for _, r := range reports {
		path := r.File
		if path == "" {
			glog.Warningf("skipped %s finding without a file", r.RuleID)
			continue
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		path = filepath.Clean(path)
		grouped[path] = append(grouped[path], ToFileDiagnostic(r))
	}
	return grouped
}
