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

package staticlint

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"
)

func TestRawExecAnalyzer(t *testing.T) {
	analysistest.Run(t, analysistest.TestData(), RawExecAnalyzer, "a", "execshell")
}

func TestIsExecShell(t *testing.T) {
	for _, testCase := range [...]struct {
		path     string
		expected bool
	}{
		{"execshell", true},
		{"naive.systems/lintbridge/execshell", true},
		{"naive.systems/lintbridge/lint", false},
		{"naive.systems/lintbridge/execshellx", false},
	} {
		if got := isExecShell(testCase.path); got != testCase.expected {
			t.Errorf("unexpected result for %s. got: %v. expected: %v.", testCase.path, got, testCase.expected)
		}
	}
}
