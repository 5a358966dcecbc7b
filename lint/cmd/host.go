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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/golang/glog"
	"naive.systems/lintbridge/atomic"
	"naive.systems/lintbridge/textdoc"
)

// cliHost stands in for the editor. Documents are the files on disk, every
// read of a file is a new version, and messages go to stderr without
// waiting for a choice.
type cliHost struct {
	out io.Writer

	mu       sync.Mutex
	docs     map[textdoc.URI]*textdoc.Document
	versions map[textdoc.URI]int
}

func newCLIHost(out io.Writer) *cliHost {
	return &cliHost{
		out:      out,
		docs:     map[textdoc.URI]*textdoc.Document{},
		versions: map[textdoc.URI]int{},
	}
}

func (h *cliHost) ShowErrorMessage(message string, actions ...string) string {
	fmt.Fprintf(h.out, "error: %s\n", message)
	if len(actions) > 0 {
		fmt.Fprintf(h.out, "  possible actions: %s\n", strings.Join(actions, ", "))
	}
	return ""
}

func (h *cliHost) OpenURL(url string) error {
	_, err := fmt.Fprintf(h.out, "see %s\n", url)
	return err
}

func (h *cliHost) ResetToolPath() {
	glog.Info("swiftlint path reset for this run")
}

func (h *cliHost) OpenSettings() {
	fmt.Fprintln(h.out, "settings are read from --settings and command-line flags")
}

func (h *cliHost) Documents() []*textdoc.Document {
	h.mu.Lock()
	defer h.mu.Unlock()
	docs := make([]*textdoc.Document, 0, len(h.docs))
	for _, doc := range h.docs {
		docs = append(docs, doc)
	}
	return docs
}

// OpenDocument reads the file behind uri as its next version.
func (h *cliHost) OpenDocument(ctx context.Context, uri textdoc.URI) (*textdoc.Document, error) {
	content, err := os.ReadFile(uri.Path())
	if err != nil {
		return nil, fmt.Errorf("cliHost.OpenDocument: %v", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.versions[uri]++
	doc := textdoc.NewDocument(uri, textdoc.SwiftLanguageID, h.versions[uri], string(content))
	h.docs[uri] = doc
	return doc, nil
}

func (h *cliHost) SaveDocument(ctx context.Context, doc *textdoc.Document) (*textdoc.Document, error) {
	if err := atomic.Write(doc.URI.Path(), []byte(doc.Text())); err != nil {
		return nil, fmt.Errorf("cliHost.SaveDocument: %v", err)
	}
	return h.OpenDocument(ctx, doc.URI)
}

func (h *cliHost) close(uri textdoc.URI) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.docs, uri)
}
