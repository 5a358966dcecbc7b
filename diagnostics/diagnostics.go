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
Package diagnostics holds the editor-facing diagnostics of every document.

The set stored for a document is always the complete output of one pass.
Passes bound to a document version only replace the set when their version
is newer than the one applied last.
*/
package diagnostics

import (
	"fmt"
	"sort"
	"sync"

	"naive.systems/lintbridge/textdoc"
)

const Source = "swiftlint"

type Severity int

const (
	Error Severity = iota + 1
	Warning
	Information
	Hint
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Information:
		return "info"
	case Hint:
		return "hint"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Diagnostic struct {
	Range    textdoc.Range `json:"range"`
	Message  string        `json:"message"`
	Severity Severity      `json:"severity"`
	Source   string        `json:"source"`
	Code     string        `json:"code"`
}

type entry struct {
	diagnostics []Diagnostic
	version     int
	versioned   bool
}

// Collection is safe for concurrent use.
type Collection struct {
	mu      sync.Mutex
	entries map[textdoc.URI]*entry
}

func NewCollection() *Collection {
	return &Collection{entries: map[textdoc.URI]*entry{}}
}

func clone(diags []Diagnostic) []Diagnostic {
	out := make([]Diagnostic, len(diags))
	copy(out, diags)
	return out
}

// Set replaces the diagnostics of uri with the output of an unversioned
// pass. The version recorded for uri is forgotten.
func (c *Collection) Set(uri textdoc.URI, diags []Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[uri] = &entry{diagnostics: clone(diags)}
}

// SetIfNewer replaces the diagnostics of uri with the output of a pass over
// the given document version, unless a pass over the same or a later
// version was applied before. It reports whether the set was replaced.
func (c *Collection) SetIfNewer(uri textdoc.URI, version int, diags []Diagnostic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[uri]; ok && e.versioned && e.version >= version {
		return false
	}
	c.entries[uri] = &entry{diagnostics: clone(diags), version: version, versioned: true}
	return true
}

// LatestVersion returns the document version of the last applied pass.
func (c *Collection) LatestVersion(uri textdoc.URI) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[uri]
	if !ok || !e.versioned {
		return 0, false
	}
	return e.version, true
}

func (c *Collection) Get(uri textdoc.URI) []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[uri]
	if !ok {
		return nil
	}
	return clone(e.diagnostics)
}

func (c *Collection) Has(uri textdoc.URI) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[uri]
	return ok
}

// Delete drops the diagnostics and the recorded version of uri.
func (c *Collection) Delete(uri textdoc.URI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, uri)
}

func (c *Collection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[textdoc.URI]*entry{}
}

// URIs returns the keys holding a set, sorted.
func (c *Collection) URIs() []textdoc.URI {
	c.mu.Lock()
	defer c.mu.Unlock()
	uris := make([]textdoc.URI, 0, len(c.entries))
	for uri := range c.entries {
		uris = append(uris, uri)
	}
	sort.Slice(uris, func(i, j int) bool { return uris[i] < uris[j] })
	return uris
}

// Snapshot copies the whole collection.
func (c *Collection) Snapshot() map[textdoc.URI][]Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[textdoc.URI][]Diagnostic, len(c.entries))
	for uri, e := range c.entries {
		out[uri] = clone(e.diagnostics)
	}
	return out
}
