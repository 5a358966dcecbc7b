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
Package execshell runs the lint tool as a child process and keeps track of
every child it started, so that all of them can be killed on shutdown.

Exit status 2 is how the tool says that it found violations; Run reports it
as a successful run together with the output.
*/
package execshell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMaxOutput = 500 * 1024

	// ExitViolations is returned by the tool when it found serious violations.
	ExitViolations = 2
)

// ErrKilled is returned by Run for children terminated through KillAll.
var ErrKilled = errors.New("killed on shutdown")

type Options struct {
	// Dir is the working directory of the child.
	Dir string
	// Env is appended to the environment of the current process.
	Env []string
	// Input, when not nil, is written to stdin which is closed afterwards.
	Input []byte
}

type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
	// Overflowed is set when stdout exceeded the output ceiling. Stdout is
	// empty in that case.
	Overflowed bool
}

// ExitError describes a child that ran but did not exit with 0 or 2.
type ExitError struct {
	Name     string
	ExitCode int
	// Signal is the signal that terminated the child, 0 when it exited.
	Signal syscall.Signal
	Stderr []byte
}

func (e *ExitError) Error() string {
	if e.Signal != 0 {
		return fmt.Sprintf("%s terminated by signal %v", e.Name, e.Signal)
	}
	return fmt.Sprintf("%s exited with status %d", e.Name, e.ExitCode)
}

type Runner struct {
	// MaxOutput is the ceiling per output stream in bytes. Zero means
	// DefaultMaxOutput.
	MaxOutput int

	sem *semaphore.Weighted

	mu       sync.Mutex
	children map[*exec.Cmd]bool // value: killed through KillAll
}

// NewRunner returns a Runner allowing at most maxProcs children at a time.
// maxProcs <= 0 leaves the number unbounded.
func NewRunner(maxOutput, maxProcs int) *Runner {
	r := &Runner{
		MaxOutput: maxOutput,
		children:  map[*exec.Cmd]bool{},
	}
	if maxProcs > 0 {
		r.sem = semaphore.NewWeighted(int64(maxProcs))
	}
	return r
}

// limitedBuffer keeps at most limit bytes and swallows the rest, so that
// the child never blocks on a full pipe.
type limitedBuffer struct {
	buf        bytes.Buffer
	limit      int
	overflowed bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.overflowed {
		return len(p), nil
	}
	if b.buf.Len()+len(p) > b.limit {
		b.buf.Write(p[:b.limit-b.buf.Len()])
		b.overflowed = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (r *Runner) track(cmd *exec.Cmd) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.children == nil {
		r.children = map[*exec.Cmd]bool{}
	}
	r.children[cmd] = false
}

func (r *Runner) untrack(cmd *exec.Cmd) (killed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	killed = r.children[cmd]
	delete(r.children, cmd)
	return killed
}

// killIfMarked covers a KillAll that happened between track and Start.
func (r *Runner) killIfMarked(cmd *exec.Cmd) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.children[cmd] {
		cmd.Process.Kill()
	}
}

// Running returns the number of children that have not exited yet.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.children)
}

// KillAll kills every child that is still running. It does not wait for
// them to exit.
func (r *Runner) KillAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for cmd := range r.children {
		r.children[cmd] = true
		if cmd.Process == nil {
			continue
		}
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			glog.Warningf("failed to kill pid %d: %v", cmd.Process.Pid, err)
		}
	}
}

// Run starts name with args and waits for it. A non-nil error is either an
// *ExitError, a start failure wrapping the exec error, a stdin write
// failure, ErrKilled or a context error.
func (r *Runner) Run(ctx context.Context, name string, args []string, opts Options) (*Result, error) {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("execshell.Run: %w", err)
		}
		defer r.sem.Release(1)
	}
	limit := r.MaxOutput
	if limit <= 0 {
		limit = DefaultMaxOutput
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	stdout := &limitedBuffer{limit: limit}
	stderr := &limitedBuffer{limit: limit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	var stdin interface {
		Write([]byte) (int, error)
		Close() error
	}
	if opts.Input != nil {
		pipe, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("execshell.Run: %w", err)
		}
		stdin = pipe
	}

	glog.Info("executing: ", cmd.String())
	start := time.Now()
	r.track(cmd)
	if err := cmd.Start(); err != nil {
		r.untrack(cmd)
		return nil, fmt.Errorf("execshell.Run: starting %s: %w", name, err)
	}
	r.killIfMarked(cmd)

	var writeErr error
	if stdin != nil {
		if _, err := stdin.Write(opts.Input); err != nil {
			writeErr = err
		}
		if err := stdin.Close(); err != nil && writeErr == nil && !errors.Is(err, os.ErrClosed) {
			writeErr = err
		}
	}
	waitErr := cmd.Wait()
	killed := r.untrack(cmd)
	duration := time.Since(start)

	if killed {
		return nil, fmt.Errorf("execshell.Run: %s: %w", name, ErrKilled)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("execshell.Run: %s: %w", name, ctx.Err())
	}
	if writeErr != nil {
		return nil, fmt.Errorf("execshell.Run: writing stdin of %s: %w", name, writeErr)
	}

	result := &Result{
		Stdout:     stdout.buf.Bytes(),
		Stderr:     stderr.buf.Bytes(),
		Duration:   duration,
		Overflowed: stdout.overflowed,
	}
	var exitErr *exec.ExitError
	if waitErr != nil {
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("execshell.Run: %s: %w", name, waitErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	// an overflowing run succeeds with no output whatever its exit code
	if result.Overflowed {
		glog.Warningf("output of %s exceeded %d bytes, dropped (exit code %d)", name, limit, result.ExitCode)
		result.Stdout = nil
		return result, nil
	}
	if exitErr != nil {
		if result.ExitCode != ExitViolations {
			e := &ExitError{Name: name, ExitCode: result.ExitCode, Stderr: result.Stderr}
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				e.Signal = status.Signal()
			}
			return nil, e
		}
	}
	return result, nil
}
