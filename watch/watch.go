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

package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
	"golang.org/x/exp/slices"
)

const DefaultDebounce = 100 * time.Millisecond

type Op int

const (
	Write Op = iota
	Remove
)

func (op Op) String() string {
	if op == Remove {
		return "remove"
	}
	return "write"
}

type Change struct {
	Path string
	Op   Op
}

// Watcher reports file changes below a set of roots in debounced batches.
type Watcher struct {
	// SkipDirNames are directory names that are not watched.
	SkipDirNames []string
	Debounce     time.Duration

	watcher *fsnotify.Watcher
}

func New(roots []string, skipDirNames []string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify.NewWatcher: %v", err)
	}
	w := &Watcher{SkipDirNames: skipDirNames, Debounce: DefaultDebounce, watcher: fw}
	for _, root := range roots {
		if err := w.addRecursive(root); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watch: %v", err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && slices.Contains(w.SkipDirNames, d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch: adding %s: %v", path, err)
		}
		return nil
	})
}

func toOp(event fsnotify.Event) (Op, bool) {
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Remove, true
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		return Write, true
	}
	return 0, false
}

// Run calls handle with the changes collected during each debounce window
// until ctx is done. A path appears once per batch with its last operation.
// Batches are sorted by path.
func (w *Watcher) Run(ctx context.Context, handle func([]Change)) error {
	defer w.watcher.Close()

	pending := map[string]Op{}
	var timer *time.Timer
	var fire <-chan time.Time
	flush := func() {
		batch := make([]Change, 0, len(pending))
		for path, op := range pending {
			batch = append(batch, Change{Path: path, Op: op})
		}
		sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
		pending = map[string]Op{}
		fire = nil
		if len(batch) > 0 {
			handle(batch)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case <-fire:
			flush()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			op, ok := toOp(event)
			if !ok {
				continue
			}
			if op == Write && event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						glog.Warningf("%v", err)
					}
					continue
				}
			}
			pending[event.Name] = op
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				timer.Reset(w.Debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			glog.Warningf("watch: %v", err)
		}
	}
}
