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
Package textdoc models the editor side of a lint pass: document identities,
zero-based positions and ranges, and in-memory text buffers.

Characters are counted in Unicode code points of a line.
*/
package textdoc

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"
)

const SwiftLanguageID = "swift"

type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

func (p Position) Translate(characterDelta int) Position {
	return Position{Line: p.Line, Character: p.Character + characterDelta}
}

func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Character < o.Character
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Character+1)
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

func NewRange(startLine, startCharacter, endLine, endCharacter int) Range {
	return Range{
		Start: Position{Line: startLine, Character: startCharacter},
		End:   Position{Line: endLine, Character: endCharacter},
	}
}

// Intersects reports whether r and o share at least one position. Touching
// ranges intersect.
func (r Range) Intersects(o Range) bool {
	return !r.End.Before(o.Start) && !o.End.Before(r.Start)
}

// URI identifies a document, e.g. file:///src/a.swift or git:/src/a.swift.
type URI string

func FileURI(path string) URI {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return URI(u.String())
}

func (u URI) Scheme() string {
	parsed, err := url.Parse(string(u))
	if err != nil {
		return ""
	}
	return parsed.Scheme
}

// Path returns the file-system path of the URI. Non-file URIs keep their
// path component.
func (u URI) Path() string {
	parsed, err := url.Parse(string(u))
	if err != nil || parsed.Scheme == "" {
		return string(u)
	}
	return filepath.FromSlash(parsed.Path)
}

// Document is a snapshot of a live editor buffer at one version.
type Document struct {
	URI        URI
	LanguageID string
	Version    int
	Dirty      bool

	text  string
	lines []string
}

func NewDocument(uri URI, languageID string, version int, text string) *Document {
	return &Document{
		URI:        uri,
		LanguageID: languageID,
		Version:    version,
		text:       text,
		lines:      splitLines(text),
	}
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func (d *Document) Text() string {
	return d.text
}

func (d *Document) LineCount() int {
	return len(d.lines)
}

// Line is one line of a document without its line terminator.
type Line struct {
	Number int
	Text   string
}

func (l Line) Length() int {
	return len([]rune(l.Text))
}

func (l Line) Range() Range {
	return NewRange(l.Number, 0, l.Number, l.Length())
}

func (d *Document) LineAt(line int) (Line, error) {
	if line < 0 || line >= len(d.lines) {
		return Line{}, fmt.Errorf("illegal value for line %d, document %s has %d lines", line, d.URI, len(d.lines))
	}
	return Line{Number: line, Text: d.lines[line]}, nil
}

// ValidatePosition clamps pos to the document.
func (d *Document) ValidatePosition(pos Position) Position {
	if pos.Line < 0 {
		return Position{}
	}
	if pos.Line >= len(d.lines) {
		last := len(d.lines) - 1
		return Position{Line: last, Character: len([]rune(d.lines[last]))}
	}
	length := len([]rune(d.lines[pos.Line]))
	if pos.Character < 0 {
		pos.Character = 0
	}
	if pos.Character > length {
		pos.Character = length
	}
	return pos
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// WordRangeAtPosition returns the identifier touching pos: either the word
// containing pos or the word ending right at pos. ok is false when pos sits
// between two non-word characters.
func (d *Document) WordRangeAtPosition(pos Position) (Range, bool) {
	pos = d.ValidatePosition(pos)
	runes := []rune(d.lines[pos.Line])
	at := pos.Character
	switch {
	case at < len(runes) && isWordRune(runes[at]):
	case at > 0 && isWordRune(runes[at-1]):
		at--
	default:
		return Range{}, false
	}
	start := at
	for start > 0 && isWordRune(runes[start-1]) {
		start--
	}
	end := at + 1
	for end < len(runes) && isWordRune(runes[end]) {
		end++
	}
	return NewRange(pos.Line, start, pos.Line, end), true
}
