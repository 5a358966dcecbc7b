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
Package interaction turns a failed lint or fix pass into one message for the
user, with remediation actions where the failure has a known cause.

Nothing is retried. Each failed pass is reported at most once by its caller.
*/
package interaction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"naive.systems/lintbridge/execshell"
)

const (
	IssueTrackerURL = "https://github.com/vknabel/vscode-swiftlint/issues/new"
	// explains broken pipes caused by a wrong toolchain
	ToolchainReportURL = "https://github.com/vknabel/vscode-swiftlint/issues/11#issuecomment-641667855"
	KnownCrashURL      = "https://github.com/realm/SwiftLint/issues?q=is%3Aissue+%22Fatal+error%22"
)

type Class int

const (
	Unknown Class = iota
	// Ignored failures are the result of shutdown or cancellation.
	Ignored
	ToolNotFound
	ToolchainFailure
	KnownCrash
	ToolFailed
)

func (c Class) String() string {
	switch c {
	case Ignored:
		return "ignored"
	case ToolNotFound:
		return "tool_not_found"
	case ToolchainFailure:
		return "toolchain_failure"
	case KnownCrash:
		return "known_crash"
	case ToolFailed:
		return "tool_failed"
	}
	return "unknown"
}

var crashSignals = []syscall.Signal{syscall.SIGSEGV, syscall.SIGABRT, syscall.SIGILL, syscall.SIGTRAP}

func Classify(err error) Class {
	if err == nil {
		return Ignored
	}
	if errors.Is(err, execshell.ErrKilled) || errors.Is(err, context.Canceled) {
		return Ignored
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, syscall.ENOENT) {
		return ToolNotFound
	}
	if errors.Is(err, syscall.EPIPE) {
		return ToolchainFailure
	}
	var exitErr *execshell.ExitError
	if errors.As(err, &exitErr) {
		for _, sig := range crashSignals {
			if exitErr.Signal == sig {
				return KnownCrash
			}
		}
		if bytes.Contains(exitErr.Stderr, []byte("Fatal error")) {
			return KnownCrash
		}
		return ToolFailed
	}
	return Unknown
}

// Action titles offered with a message.
const (
	ActionReset       = "Reset"
	ActionConfigure   = "Configure"
	ActionSeeReport   = "See Report"
	ActionReportIssue = "Report issue"
)

// Host is the part of the editor the handler talks to.
type Host interface {
	// ShowErrorMessage shows message with the given action titles and
	// returns the chosen title, or "" when none was chosen.
	ShowErrorMessage(message string, actions ...string) string
	OpenURL(url string) error
	ResetToolPath()
	OpenSettings()
}

type Handler struct {
	Host    Host
	printer *message.Printer
}

var languageMap = map[string]language.Tag{"en": language.English, "zh": language.Chinese}

func GetPrinter(lang string) *message.Printer {
	tag, exist := languageMap[lang]
	if !exist {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

func NewHandler(host Host, lang string) *Handler {
	return &Handler{Host: host, printer: GetPrinter(lang)}
}

func (h *Handler) show(msg string, actions ...string) string {
	titles := make([]string, len(actions))
	for i, action := range actions {
		titles[i] = h.printer.Sprintf(action)
	}
	chosen := h.Host.ShowErrorMessage(msg, titles...)
	for i, title := range titles {
		if chosen == title {
			return actions[i]
		}
	}
	return ""
}

func (h *Handler) openURL(u string) {
	if err := h.Host.OpenURL(u); err != nil {
		glog.Errorf("failed to open %s: %v", u, err)
	}
}

// Handle reports err of a pass that ran toolPath and performs the action
// the user picks. It returns the class of err.
func (h *Handler) Handle(err error, toolPath string) Class {
	class := Classify(err)
	if class != Ignored {
		glog.Errorf("swiftlint pass failed (%v): %v", class, err)
	}
	p := h.printer
	switch class {
	case Ignored:
	case ToolchainFailure:
		switch h.show(p.Sprintf("Could not start SwiftLint. Probably the toolchain is wrong."), ActionSeeReport, ActionConfigure) {
		case ActionSeeReport:
			h.openURL(ToolchainReportURL)
		case ActionConfigure:
			h.Host.OpenSettings()
		}
	case ToolNotFound:
		switch h.show(p.Sprintf("Could not find SwiftLint: %s", toolPath), ActionReset, ActionConfigure) {
		case ActionReset:
			h.Host.ResetToolPath()
		case ActionConfigure:
			h.Host.OpenSettings()
		}
	case KnownCrash:
		if h.show(p.Sprintf("SwiftLint crashed. This is a known issue of SwiftLint."), ActionSeeReport) == ActionSeeReport {
			h.openURL(KnownCrashURL)
		}
	case ToolFailed:
		var exitErr *execshell.ExitError
		errors.As(err, &exitErr)
		h.show(p.Sprintf("SwiftLint failed. %s", strings.TrimSpace(string(exitErr.Stderr))))
	default:
		if h.show(p.Sprintf("An unknown error occurred. %s", err.Error()), ActionReportIssue) == ActionReportIssue {
			h.openURL(IssueURL(err))
		}
	}
	return class
}

func errorCode(err error) string {
	var exitErr *execshell.ExitError
	if errors.As(err, &exitErr) {
		return strconv.Itoa(exitErr.ExitCode)
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return strconv.Itoa(int(errno))
	}
	return ""
}

// IssueURL builds a pre-filled issue for err.
func IssueURL(err error) string {
	title := strings.Join(strings.Fields(fmt.Sprintf("Report %s %s", errorCode(err), err.Error())), " ")
	var body strings.Builder
	fmt.Fprintf(&body, "`%s`\n\n", err.Error())
	for chain := errors.Unwrap(err); chain != nil; chain = errors.Unwrap(chain) {
		fmt.Fprintf(&body, "- %T: %v\n", chain, chain)
	}
	fmt.Fprintf(&body, "\nPlatform: %s/%s, %s\n", runtime.GOOS, runtime.GOARCH, runtime.Version())
	fmt.Fprintf(&body, "Report ID: %s\n", uuid.NewString())
	query := url.Values{}
	query.Set("title", title)
	query.Set("body", body.String())
	return IssueTrackerURL + "?" + query.Encode()
}
