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
Package testlib provides fixture workspaces and a scripted stand-in for the
swiftlint executable. The stand-in is a POSIX shell script that records how
it was invoked and then replays canned output and an exit status.
*/
package testlib

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

type FakeTool struct {
	// Stdout is printed verbatim, usually a JSON report.
	Stdout string
	Stderr string
	Exit   int
	// WaitFor makes the tool block until the named file exists.
	WaitFor string
	// Signal, when set, makes the tool kill itself with it, e.g. "SEGV".
	Signal string
}

// Tool is an installed FakeTool.
type Tool struct {
	Path string
	dir  string
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Install writes the fake tool to path, creating parent directories.
func (f FakeTool) Install(t testing.TB, path string) *Tool {
	t.Helper()
	dir := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".record")
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		t.Fatalf("os.MkdirAll(%s): %v", dir, err)
	}
	stdoutFile := filepath.Join(dir, "stdout")
	stderrFile := filepath.Join(dir, "stderr")
	if err := os.WriteFile(stdoutFile, []byte(f.Stdout), 0644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}
	if err := os.WriteFile(stderrFile, []byte(f.Stderr), 0644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}

	var script strings.Builder
	script.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&script, "rec=%s\n", shellQuote(dir))
	script.WriteString(`n=0
while ! mkdir "$rec/slot-$n" 2>/dev/null; do n=$((n+1)); done
out="$rec/call-$n"
{
  echo "dir=$(pwd)"
  for a in "$@"; do echo "arg=$a"; done
  echo "count=${SCRIPT_INPUT_FILE_COUNT}"
  i=0
  while [ "$i" -lt "${SCRIPT_INPUT_FILE_COUNT:-0}" ]; do
    eval "echo \"file=\${SCRIPT_INPUT_FILE_$i}\""
    i=$((i+1))
  done
} > "$out.tmp"
for a in "$@"; do
  if [ "$a" = "--use-stdin" ]; then cat > "$out.stdin"; fi
done
mv "$out.tmp" "$out"
`)
	if f.WaitFor != "" {
		fmt.Fprintf(&script, "while [ ! -e %s ]; do sleep 0.01; done\n", shellQuote(f.WaitFor))
	}
	fmt.Fprintf(&script, "cat %s\n", shellQuote(stdoutFile))
	fmt.Fprintf(&script, "cat %s >&2\n", shellQuote(stderrFile))
	if f.Signal != "" {
		fmt.Fprintf(&script, "kill -%s $$\n", f.Signal)
	}
	fmt.Fprintf(&script, "exit %d\n", f.Exit)

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		t.Fatalf("os.MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(script.String()), 0755); err != nil {
		t.Fatalf("os.WriteFile(%s): %v", path, err)
	}
	return &Tool{Path: path, dir: dir}
}

// Invocation is what one call of the fake tool saw.
type Invocation struct {
	Dir   string
	Args  []string
	Files []string
	// Count is SCRIPT_INPUT_FILE_COUNT, -1 when unset.
	Count int
	Stdin string
	// HasStdin is set when the call read stdin.
	HasStdin bool
}

// Invocations returns the calls of the tool in the order they started.
func (tool *Tool) Invocations(t testing.TB) []Invocation {
	t.Helper()
	var calls []Invocation
	for n := 0; ; n++ {
		if _, err := os.Stat(filepath.Join(tool.dir, "slot-"+strconv.Itoa(n))); err != nil {
			return calls
		}
		name := filepath.Join(tool.dir, "call-"+strconv.Itoa(n))
		content, err := os.ReadFile(name)
		if err != nil {
			t.Fatalf("os.ReadFile(%s): %v", name, err)
		}
		call := Invocation{Count: -1}
		for _, line := range strings.Split(string(content), "\n") {
			key, value, found := strings.Cut(line, "=")
			if !found {
				continue
			}
			switch key {
			case "dir":
				call.Dir = value
			case "arg":
				call.Args = append(call.Args, value)
			case "file":
				call.Files = append(call.Files, value)
			case "count":
				if value != "" {
					call.Count, _ = strconv.Atoi(value)
				}
			}
		}
		if stdin, err := os.ReadFile(name + ".stdin"); err == nil {
			call.Stdin = string(stdin)
			call.HasStdin = true
		}
		calls = append(calls, call)
	}
}

// WriteFiles creates files below root. Keys are slash-separated relative
// paths.
func WriteFiles(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			t.Fatalf("os.MkdirAll: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("os.WriteFile(%s): %v", path, err)
		}
	}
}

// Touch creates an empty file, e.g. to release a FakeTool.WaitFor.
func Touch(t testing.TB, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("os.WriteFile(%s): %v", path, err)
	}
}
