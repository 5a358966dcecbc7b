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

// Package staticlint holds the analyzers run over this module by
// staticlint/cmd.
package staticlint

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// RawExecAnalyzer reports child processes created outside execshell. Such
// children escape the output ceiling, the process limit and KillAll.
var RawExecAnalyzer = &analysis.Analyzer{
	Name:     "rawexec",
	Doc:      "reports exec.Command and exec.CommandContext calls outside the execshell package",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      runRawExec,
}

func isExecShell(path string) bool {
	return path == "execshell" || strings.HasSuffix(path, "/execshell")
}

func runRawExec(pass *analysis.Pass) (interface{}, error) {
	if isExecShell(pass.Pkg.Path()) {
		return nil, nil
	}
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	insp.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return
		}
		fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
		if !ok || fn.Pkg() == nil || fn.Pkg().Path() != "os/exec" {
			return
		}
		switch fn.Name() {
		case "Command", "CommandContext":
			pass.Reportf(call.Pos(), "exec.%s outside execshell, use execshell.Runner", fn.Name())
		}
	})
	return nil, nil
}
