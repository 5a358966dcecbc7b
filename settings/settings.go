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

// Package settings holds the user-facing options of the integration. They
// come from a YAML settings file and may be overridden by flags.
package settings

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/google/shlex"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v2"
	"naive.systems/lintbridge/execshell"
)

const DefaultPath = "/usr/local/bin/swiftlint"

// local builds of the tool in a Swift package, checked before Path
var localToolPaths = []string{
	filepath.Join(".build", "release", "swiftlint"),
	filepath.Join(".build", "debug", "swiftlint"),
}

var supportedLangs = []string{"en", "zh"}

type Settings struct {
	Enable                      bool     `yaml:"enable"`
	Path                        string   `yaml:"path"`
	AdditionalParameters        string   `yaml:"additional_parameters"`
	ConfigSearchPaths           []string `yaml:"config_search_paths"`
	ForceExcludePaths           []string `yaml:"force_exclude_paths"`
	OnlyEnableWithConfig        bool     `yaml:"only_enable_with_config"`
	OnlyEnableOnSwiftPMProjects bool     `yaml:"only_enable_on_swiftpm_projects"`
	AutoLintWorkspace           bool     `yaml:"auto_lint_workspace"`
	MaxOutputBytes              int      `yaml:"max_output_bytes"`
	MaxProcesses                int      `yaml:"max_processes"`
	Lang                        string   `yaml:"lang"`
}

func Default() Settings {
	return Settings{
		Enable:            true,
		Path:              DefaultPath,
		ConfigSearchPaths: []string{".swiftlint.yml"},
		ForceExcludePaths: []string{"tmp", "build", ".build", "Pods", "Carthage"},
		AutoLintWorkspace: true,
		MaxOutputBytes:    execshell.DefaultMaxOutput,
		Lang:              "en",
	}
}

// Load reads a settings file on top of the defaults. Keys missing from the
// file keep their default values.
func Load(path string) (Settings, error) {
	s := Default()
	content, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("settings.Load: %v", err)
	}
	if err := yaml.UnmarshalStrict(content, &s); err != nil {
		return s, fmt.Errorf("settings.Load: malformed %s: %v", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("settings.Load: %v", err)
	}
	return s, nil
}

func (s Settings) Validate() error {
	if !slices.Contains(supportedLangs, s.Lang) {
		return fmt.Errorf("unsupported lang %q, expected one of %v", s.Lang, supportedLangs)
	}
	if s.MaxOutputBytes < 0 {
		return fmt.Errorf("max_output_bytes must not be negative")
	}
	if _, err := s.AdditionalArgs(); err != nil {
		return err
	}
	return nil
}

// listFlag replaces the default list on its first use and appends after.
type listFlag struct {
	target  *[]string
	touched bool
}

func (l *listFlag) String() string {
	if l.target == nil {
		return ""
	}
	return strings.Join(*l.target, ",")
}

func (l *listFlag) Set(value string) error {
	if !l.touched {
		*l.target = nil
		l.touched = true
	}
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*l.target = append(*l.target, v)
		}
	}
	return nil
}

// RegisterFlags binds command-line overrides to the fields of s. The current
// values of s become the flag defaults.
func (s *Settings) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&s.Enable, "enable", s.Enable, "lint at all")
	fs.StringVar(&s.Path, "swiftlint_path", s.Path, "swiftlint executable used when the workspace has no local build")
	fs.StringVar(&s.AdditionalParameters, "additional_parameters", s.AdditionalParameters, "extra arguments for every swiftlint invocation, shell-quoted")
	fs.Var(&listFlag{target: &s.ConfigSearchPaths}, "config_search_paths", "comma separated config file candidates relative to each workspace root")
	fs.Var(&listFlag{target: &s.ForceExcludePaths}, "force_exclude_paths", "comma separated directory names skipped when no config file is found")
	fs.BoolVar(&s.OnlyEnableWithConfig, "only_enable_with_config", s.OnlyEnableWithConfig, "lint only workspaces having a config file")
	fs.BoolVar(&s.OnlyEnableOnSwiftPMProjects, "only_enable_on_swiftpm_projects", s.OnlyEnableOnSwiftPMProjects, "lint only workspaces having a Package.swift")
	fs.BoolVar(&s.AutoLintWorkspace, "auto_lint_workspace", s.AutoLintWorkspace, "lint whole workspaces on startup and configuration changes")
	fs.IntVar(&s.MaxOutputBytes, "max_output_bytes", s.MaxOutputBytes, "stdout ceiling of one swiftlint run")
	fs.IntVar(&s.MaxProcesses, "max_processes", s.MaxProcesses, "maximum concurrent swiftlint processes, 0 for no limit")
	fs.StringVar(&s.Lang, "lang", s.Lang, "language of messages (en, zh)")
}

// AdditionalArgs splits AdditionalParameters like a POSIX shell would.
func (s Settings) AdditionalArgs() ([]string, error) {
	if strings.TrimSpace(s.AdditionalParameters) == "" {
		return nil, nil
	}
	args, err := shlex.Split(s.AdditionalParameters)
	if err != nil {
		return nil, fmt.Errorf("shlex.Split(%q): %v", s.AdditionalParameters, err)
	}
	return args, nil
}

// ToolPath returns the executable for a workspace root, preferring a tool
// built inside the root over Path.
func (s Settings) ToolPath(root string) string {
	if root != "" {
		for _, local := range localToolPaths {
			candidate := filepath.Join(root, local)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	return ExpandHome(s.Path)
}

func (s *Settings) ResetPath() {
	glog.Infof("swiftlint path reset from %s to %s", s.Path, DefaultPath)
	s.Path = DefaultPath
}

// IsConfigFile reports whether path names one of the config search paths.
func (s Settings) IsConfigFile(path string) bool {
	base := filepath.Base(path)
	for _, candidate := range s.ConfigSearchPaths {
		if filepath.Base(candidate) == base {
			return true
		}
	}
	return false
}

func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		glog.Warningf("os.UserHomeDir: %v", err)
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
