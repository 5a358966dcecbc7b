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

// Package workspace knows the folders opened by the host and the Swift
// sources below them.
package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"golang.org/x/exp/slices"
)

const (
	SwiftExt        = ".swift"
	PackageManifest = "Package.swift"
)

type Folder struct {
	Name string
	Path string
}

func NewFolder(path string) (Folder, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Folder{}, fmt.Errorf("filepath.Abs: %v", err)
	}
	return Folder{Name: filepath.Base(abs), Path: abs}, nil
}

func (f Folder) Contains(path string) bool {
	rel, err := filepath.Rel(f.Path, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

type Folders []Folder

// FolderFor returns the innermost folder containing path. A path outside
// every folder belongs to the first folder; ok is false only when there are
// no folders at all.
func (folders Folders) FolderFor(path string) (Folder, bool) {
	if len(folders) == 0 {
		return Folder{}, false
	}
	best := -1
	for i, f := range folders {
		if !f.Contains(path) {
			continue
		}
		if best == -1 || len(f.Path) > len(folders[best].Path) {
			best = i
		}
	}
	if best == -1 {
		return folders[0], true
	}
	return folders[best], true
}

// FindSourceFiles returns the sorted absolute paths of the Swift files below
// root. Directories whose name is in skipDirNames are not entered.
func FindSourceFiles(ctx context.Context, root string, skipDirNames []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			glog.Warningf("skipped %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && slices.Contains(skipDirNames, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == SwiftExt && d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("workspace.FindSourceFiles: %v", err)
	}
	slices.Sort(files)
	return files, nil
}

func IsSwiftPMProject(root string) bool {
	info, err := os.Stat(filepath.Join(root, PackageManifest))
	return err == nil && !info.IsDir()
}
