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

package settings

import (
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	content := "path: ~/bin/swiftlint\nadditional_parameters: --strict --reporter-path 'a b'\nlang: zh\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Enable || !s.AutoLintWorkspace {
		t.Errorf("defaults lost: %+v", s)
	}
	if !reflect.DeepEqual(s.ForceExcludePaths, []string{"tmp", "build", ".build", "Pods", "Carthage"}) {
		t.Errorf("unexpected force exclude paths %v", s.ForceExcludePaths)
	}
	args, err := s.AdditionalArgs()
	if err != nil {
		t.Fatalf("AdditionalArgs: %v", err)
	}
	if !reflect.DeepEqual(args, []string{"--strict", "--reporter-path", "a b"}) {
		t.Errorf("unexpected args %v", args)
	}
	home, _ := os.UserHomeDir()
	if got := s.ToolPath(""); got != filepath.Join(home, "bin", "swiftlint") {
		t.Errorf("unexpected tool path %s", got)
	}
}

func TestLoadRejectsBadSettings(t *testing.T) {
	for _, testCase := range [...]struct {
		name    string
		content string
	}{
		{"unknown key", "enabled: true\n"},
		{"unsupported lang", "lang: fr\n"},
		{"unbalanced quote", "additional_parameters: \"--strict\n"},
		{"negative ceiling", "max_output_bytes: -1\n"},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.yml")
			if err := os.WriteFile(path, []byte(testCase.content), 0644); err != nil {
				t.Fatalf("os.WriteFile: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("expected an error for %q", testCase.content)
			}
		})
	}
}

func TestToolPathPrefersLocalBuild(t *testing.T) {
	root := t.TempDir()
	s := Default()
	if got := s.ToolPath(root); got != DefaultPath {
		t.Errorf("unexpected tool path. got: %v. expected: %v.", got, DefaultPath)
	}
	debug := filepath.Join(root, ".build", "debug", "swiftlint")
	if err := os.MkdirAll(filepath.Dir(debug), os.ModePerm); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(debug, nil, 0755); err != nil {
		t.Fatal(err)
	}
	if got := s.ToolPath(root); got != debug {
		t.Errorf("unexpected tool path. got: %v. expected: %v.", got, debug)
	}
	release := filepath.Join(root, ".build", "release", "swiftlint")
	if err := os.MkdirAll(filepath.Dir(release), os.ModePerm); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(release, nil, 0755); err != nil {
		t.Fatal(err)
	}
	if got := s.ToolPath(root); got != release {
		t.Errorf("unexpected tool path. got: %v. expected: %v.", got, release)
	}
}

func TestRegisterFlags(t *testing.T) {
	s := Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	s.RegisterFlags(fs)
	err := fs.Parse([]string{"--force_exclude_paths=Vendor", "--force_exclude_paths", "Generated,Derived", "--swiftlint_path", "/opt/swiftlint", "--max_processes", "2"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(s.ForceExcludePaths, []string{"Vendor", "Generated", "Derived"}) {
		t.Errorf("unexpected force exclude paths %v", s.ForceExcludePaths)
	}
	if s.Path != "/opt/swiftlint" || s.MaxProcesses != 2 {
		t.Errorf("flags not applied: %+v", s)
	}
	s.ResetPath()
	if s.Path != DefaultPath {
		t.Errorf("ResetPath left %s", s.Path)
	}
}

func TestIsConfigFile(t *testing.T) {
	s := Default()
	s.ConfigSearchPaths = []string{".swiftlint.yml", "config/lint.yml"}
	for _, testCase := range [...]struct {
		path     string
		expected bool
	}{
		{"/ws/.swiftlint.yml", true},
		{"/ws/sub/lint.yml", true},
		{"/ws/a.swift", false},
	} {
		if got := s.IsConfigFile(testCase.path); got != testCase.expected {
			t.Errorf("unexpected result for %v. got: %v. expected: %v.", testCase.path, got, testCase.expected)
		}
	}
}
