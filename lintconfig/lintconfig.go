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
Package lintconfig locates and reads the SwiftLint configuration file of a
workspace root and answers whether a file falls under it.

Only the included and excluded lists are interpreted here; every other key
is left to the tool, which receives the file through --config.
*/
package lintconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/golang/glog"
	"gopkg.in/yaml.v2"
)

const DefaultFileName = ".swiftlint.yml"

// Config is a configuration file as seen at the start of one lint pass.
type Config struct {
	Path     string
	Included []string
	Excluded []string
}

type rawConfig struct {
	Included interface{} `yaml:"included"`
	Excluded interface{} `yaml:"excluded"`
}

// Search returns the first existing candidate of searchPaths, resolved
// against rootPath. It returns nil without error when no candidate exists.
func Search(rootPath string, searchPaths []string) (*Config, error) {
	for _, candidate := range searchPaths {
		if candidate == "" {
			continue
		}
		path := candidate
		if !filepath.IsAbs(path) {
			path = filepath.Join(rootPath, path)
		}
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lintconfig.Search: %w", err)
		}
		if info.IsDir() {
			continue
		}
		return Load(path)
	}
	return nil, nil
}

func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lintconfig.Load: %w", err)
	}
	raw := rawConfig{}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("lintconfig.Load: malformed %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("filepath.Abs: %v", err)
	}
	return &Config{
		Path:     abs,
		Included: toPatterns(abs, "included", raw.Included),
		Excluded: toPatterns(abs, "excluded", raw.Excluded),
	}, nil
}

func toPatterns(path, key string, value interface{}) []string {
	if value == nil {
		return nil
	}
	list, ok := value.([]interface{})
	if !ok {
		glog.Warningf("%s: %s is not a list, ignored", path, key)
		return nil
	}
	patterns := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			glog.Warningf("%s: non-string entry %v in %s ignored", path, item, key)
			continue
		}
		patterns = append(patterns, s)
	}
	return patterns
}

func (c *Config) Arguments() []string {
	return []string{"--config", c.Path}
}

func (c *Config) Dir() string {
	return filepath.Dir(c.Path)
}

// Includes reports whether the file at path is governed by c. Exclusion
// wins over inclusion, and an empty included list includes everything.
func (c *Config) Includes(path string) bool {
	base := c.Dir()
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)
	if MatchAny(base, c.Excluded, path) {
		return false
	}
	if len(c.Included) > 0 {
		return MatchAny(base, c.Included, path)
	}
	return true
}

// MatchAny reports whether any pattern matches path. Patterns are relative
// to baseDir; a pattern without '*' names a directory and matches every
// Swift file below it. Relative patterns are matched against path made
// relative to baseDir, so baseDir itself is never read as a glob.
func MatchAny(baseDir string, patterns []string, path string) bool {
	rel, err := filepath.Rel(baseDir, path)
	inside := err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
	for _, pattern := range patterns {
		target := filepath.ToSlash(path)
		if !filepath.IsAbs(pattern) {
			if !inside {
				continue
			}
			pattern = filepath.Clean(pattern)
			target = filepath.ToSlash(rel)
		}
		matched, err := doublestar.Match(dirPattern(pattern), target)
		if err != nil {
			glog.Warningf("bad pattern %q: %v", pattern, err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

func dirPattern(pattern string) string {
	if !strings.Contains(pattern, "*") {
		pattern = filepath.Join(pattern, "**", "*.swift")
	}
	return filepath.ToSlash(pattern)
}
