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

package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/golang/glog"
	"github.com/gookit/color"
	"github.com/mattn/go-isatty"
	"naive.systems/lintbridge/diagnostics"
	"naive.systems/lintbridge/report"
	"naive.systems/lintbridge/textdoc"
)

type printer struct {
	w        io.Writer
	colored  bool
	showCode bool
	charset  string
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newPrinter colors severities only when w is a terminal.
func newPrinter(w io.Writer, showCode bool, charset string) *printer {
	return &printer{w: w, colored: isTerminal(w), showCode: showCode, charset: charset}
}

func (p *printer) severity(s diagnostics.Severity) string {
	if !p.colored {
		return s.String()
	}
	switch s {
	case diagnostics.Error:
		return color.FgRed.Sprint(s.String())
	case diagnostics.Warning:
		return color.FgYellow.Sprint(s.String())
	default:
		return color.FgCyan.Sprint(s.String())
	}
}

// print writes one line per diagnostic as path:line:col, 1-based, sorted by
// path and position. It returns the number of error diagnostics.
func (p *printer) print(snapshot map[textdoc.URI][]diagnostics.Diagnostic) int {
	uris := make([]textdoc.URI, 0, len(snapshot))
	for uri := range snapshot {
		uris = append(uris, uri)
	}
	sort.Slice(uris, func(i, j int) bool { return uris[i] < uris[j] })

	errorCount := 0
	for _, uri := range uris {
		diags := append([]diagnostics.Diagnostic(nil), snapshot[uri]...)
		sort.SliceStable(diags, func(i, j int) bool { return diags[i].Range.Start.Before(diags[j].Range.Start) })
		path := uri.Path()
		for _, d := range diags {
			if d.Severity == diagnostics.Error {
				errorCount++
			}
			fmt.Fprintf(p.w, "%s:%d:%d: %s: %s\n", path, d.Range.Start.Line+1, d.Range.Start.Character+1, p.severity(d.Severity), d.Message)
			if !p.showCode {
				continue
			}
			snippet, err := report.Snippet(path, d.Range.Start.Line+1, p.charset)
			if err != nil {
				glog.Warningf("report.Snippet(%s): %v", path, err)
				continue
			}
			fmt.Fprint(p.w, snippet)
		}
	}
	return errorCount
}
