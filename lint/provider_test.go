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

package lint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"naive.systems/lintbridge/diagnostics"
	"naive.systems/lintbridge/execshell"
	"naive.systems/lintbridge/settings"
	"naive.systems/lintbridge/testlib"
	"naive.systems/lintbridge/textdoc"
	"naive.systems/lintbridge/workspace"
)

const forceCastSource = "import Foundation\n\n_ = (foo as! Bar)\nlet s = \"\"\n"

const forceCastOutput = `[{"file":null,"line":3,"character":5,"reason":"Force cast","rule_id":"force_cast","severity":"Error","type":"violation"}]`

type fakeHost struct {
	mu       sync.Mutex
	choose   string
	messages []string
	opened   []string
	resets   int
	settings int
	open     map[textdoc.URI]*textdoc.Document
	saved    []textdoc.URI
}

func newFakeHost() *fakeHost {
	return &fakeHost{open: map[textdoc.URI]*textdoc.Document{}}
}

func (h *fakeHost) ShowErrorMessage(message string, actions ...string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
	for _, action := range actions {
		if action == h.choose {
			return action
		}
	}
	return ""
}

func (h *fakeHost) OpenURL(url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = append(h.opened, url)
	return nil
}

func (h *fakeHost) ResetToolPath() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resets++
}

func (h *fakeHost) OpenSettings() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settings++
}

func (h *fakeHost) Documents() []*textdoc.Document {
	h.mu.Lock()
	defer h.mu.Unlock()
	var docs []*textdoc.Document
	for _, doc := range h.open {
		docs = append(docs, doc)
	}
	return docs
}

func (h *fakeHost) OpenDocument(ctx context.Context, uri textdoc.URI) (*textdoc.Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if doc, ok := h.open[uri]; ok {
		return doc, nil
	}
	content, err := os.ReadFile(uri.Path())
	if err != nil {
		return nil, err
	}
	return textdoc.NewDocument(uri, textdoc.SwiftLanguageID, 1, string(content)), nil
}

func (h *fakeHost) SaveDocument(ctx context.Context, doc *textdoc.Document) (*textdoc.Document, error) {
	if err := os.WriteFile(doc.URI.Path(), []byte(doc.Text()), 0644); err != nil {
		return nil, err
	}
	saved := textdoc.NewDocument(doc.URI, doc.LanguageID, doc.Version+1, doc.Text())
	h.mu.Lock()
	defer h.mu.Unlock()
	h.open[doc.URI] = saved
	h.saved = append(h.saved, doc.URI)
	return saved, nil
}

func (h *fakeHost) Messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...)
}

func testSettings() settings.Settings {
	s := settings.Default()
	s.Path = "/nonexistent/swiftlint"
	return s
}

// newWorkspace returns a folder with a fake tool in its local build dir.
func newWorkspace(t *testing.T, tool testlib.FakeTool, files map[string]string) (workspace.Folder, *testlib.Tool) {
	root := t.TempDir()
	testlib.WriteFiles(t, root, files)
	installed := tool.Install(t, filepath.Join(root, ".build", "release", "swiftlint"))
	return workspace.Folder{Name: filepath.Base(root), Path: root}, installed
}

func swiftDoc(path string, version int, text string) *textdoc.Document {
	return textdoc.NewDocument(textdoc.FileURI(path), textdoc.SwiftLanguageID, version, text)
}

func TestLintDocumentEmptyTextRunsNothing(t *testing.T) {
	folder, tool := newWorkspace(t, testlib.FakeTool{Stdout: forceCastOutput, Exit: 2}, nil)
	p := NewProvider(newFakeHost(), workspace.Folders{folder}, testSettings())
	doc := swiftDoc(filepath.Join(folder.Path, "Empty.swift"), 3, " \n\t\n")

	require.NoError(t, p.LintDocument(context.Background(), doc))

	assert.Empty(t, tool.Invocations(t))
	assert.True(t, p.Diagnostics().Has(doc.URI))
	assert.Empty(t, p.Diagnostics().Get(doc.URI))
	version, ok := p.Diagnostics().LatestVersion(doc.URI)
	assert.True(t, ok)
	assert.Equal(t, 3, version)
}

func TestLintDocumentParsesExitViolations(t *testing.T) {
	folder, tool := newWorkspace(t, testlib.FakeTool{Stdout: forceCastOutput, Exit: execshell.ExitViolations}, nil)
	host := newFakeHost()
	p := NewProvider(host, workspace.Folders{folder}, testSettings())
	doc := swiftDoc(filepath.Join(folder.Path, "Sources", "Cast.swift"), 1, forceCastSource)

	require.NoError(t, p.LintDocument(context.Background(), doc))

	expected := []diagnostics.Diagnostic{{
		Range:    textdoc.NewRange(2, 5, 2, 8),
		Message:  "Force cast (force_cast)",
		Severity: diagnostics.Error,
		Source:   diagnostics.Source,
		Code:     "force_cast",
	}}
	assert.Equal(t, expected, p.Diagnostics().Get(doc.URI))
	assert.Empty(t, host.Messages())

	calls := tool.Invocations(t)
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"--quiet", "--reporter", "json", "--use-stdin"}, calls[0].Args)
	assert.Equal(t, folder.Path, calls[0].Dir)
	assert.True(t, calls[0].HasStdin)
	assert.Equal(t, forceCastSource, calls[0].Stdin)
	assert.Equal(t, -1, calls[0].Count)
}

func TestLintDocumentSkipsLintedVersion(t *testing.T) {
	folder, tool := newWorkspace(t, testlib.FakeTool{Stdout: "[]"}, nil)
	p := NewProvider(newFakeHost(), workspace.Folders{folder}, testSettings())
	path := filepath.Join(folder.Path, "A.swift")
	ctx := context.Background()

	require.NoError(t, p.LintDocument(ctx, swiftDoc(path, 2, "let a = 1\n")))
	require.NoError(t, p.LintDocument(ctx, swiftDoc(path, 2, "let a = 1\n")))
	require.NoError(t, p.LintDocument(ctx, swiftDoc(path, 1, "let a = 1\n")))
	assert.Len(t, tool.Invocations(t), 1)

	require.NoError(t, p.LintDocument(ctx, swiftDoc(path, 3, "let a = 2\n")))
	assert.Len(t, tool.Invocations(t), 2)
}

func TestLintDocumentIgnoresOtherDocuments(t *testing.T) {
	folder, tool := newWorkspace(t, testlib.FakeTool{Stdout: "[]"}, nil)
	p := NewProvider(newFakeHost(), workspace.Folders{folder}, testSettings())
	ctx := context.Background()
	path := filepath.Join(folder.Path, "A.swift")

	for _, doc := range []*textdoc.Document{
		textdoc.NewDocument(textdoc.FileURI(path), "objective-c", 1, "int a;"),
		textdoc.NewDocument(textdoc.URI("git:/"+path), textdoc.SwiftLanguageID, 1, "let a = 1"),
	} {
		require.NoError(t, p.LintDocument(ctx, doc))
		assert.False(t, p.Diagnostics().Has(doc.URI))
	}

	s := testSettings()
	s.Enable = false
	p.SetSettings(s)
	require.NoError(t, p.LintDocument(ctx, swiftDoc(path, 1, "let a = 1")))
	assert.Empty(t, tool.Invocations(t))
}

func TestLintDocumentHonorsExcludedConfig(t *testing.T) {
	folder, tool := newWorkspace(t, testlib.FakeTool{Stdout: "[]"}, map[string]string{
		".swiftlint.yml": "excluded:\n  - Tests\n",
	})
	p := NewProvider(newFakeHost(), workspace.Folders{folder}, testSettings())
	ctx := context.Background()

	excluded := swiftDoc(filepath.Join(folder.Path, "Tests", "FooTests.swift"), 1, "let a = 1\n")
	require.NoError(t, p.LintDocument(ctx, excluded))
	assert.Empty(t, tool.Invocations(t))
	assert.True(t, p.Diagnostics().Has(excluded.URI))
	assert.Empty(t, p.Diagnostics().Get(excluded.URI))

	included := swiftDoc(filepath.Join(folder.Path, "Sources", "Foo.swift"), 1, "let a = 1\n")
	require.NoError(t, p.LintDocument(ctx, included))
	calls := tool.Invocations(t)
	require.Len(t, calls, 1)
	assert.Equal(t, []string{
		"--quiet", "--reporter", "json",
		"--config", filepath.Join(folder.Path, ".swiftlint.yml"),
		"--use-stdin",
	}, calls[0].Args)
}

func TestLintDocumentGates(t *testing.T) {
	for _, testCase := range [...]struct {
		name     string
		files    map[string]string
		mutate   func(*settings.Settings)
		expected int
	}{
		{
			name:     "config required and missing",
			mutate:   func(s *settings.Settings) { s.OnlyEnableWithConfig = true },
			expected: 0,
		},
		{
			name:     "config required and present",
			files:    map[string]string{".swiftlint.yml": "disabled_rules: []\n"},
			mutate:   func(s *settings.Settings) { s.OnlyEnableWithConfig = true },
			expected: 1,
		},
		{
			name:     "package required and missing",
			mutate:   func(s *settings.Settings) { s.OnlyEnableOnSwiftPMProjects = true },
			expected: 0,
		},
		{
			name:     "package required and present",
			files:    map[string]string{"Package.swift": "// swift-tools-version:5.9\n"},
			mutate:   func(s *settings.Settings) { s.OnlyEnableOnSwiftPMProjects = true },
			expected: 1,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			folder, tool := newWorkspace(t, testlib.FakeTool{Stdout: "[]"}, testCase.files)
			s := testSettings()
			testCase.mutate(&s)
			p := NewProvider(newFakeHost(), workspace.Folders{folder}, s)
			doc := swiftDoc(filepath.Join(folder.Path, "A.swift"), 1, "let a = 1\n")
			require.NoError(t, p.LintDocument(context.Background(), doc))
			if got := len(tool.Invocations(t)); got != testCase.expected {
				t.Errorf("unexpected invocations. got: %v. expected: %v.", got, testCase.expected)
			}
		})
	}
}

func TestLintDocumentDropsStaleResults(t *testing.T) {
	tools := t.TempDir()
	gate := filepath.Join(tools, "gate")
	slow := testlib.FakeTool{Stdout: forceCastOutput, Exit: 2, WaitFor: gate}.Install(t, filepath.Join(tools, "slow", "swiftlint"))
	fast := testlib.FakeTool{Stdout: "[]"}.Install(t, filepath.Join(tools, "fast", "swiftlint"))

	root := t.TempDir()
	s := testSettings()
	s.Path = slow.Path
	p := NewProvider(newFakeHost(), workspace.Folders{{Name: "ws", Path: root}}, s)
	path := filepath.Join(root, "Cast.swift")
	ctx := context.Background()

	older := make(chan error, 1)
	go func() {
		older <- p.LintDocument(ctx, swiftDoc(path, 1, forceCastSource))
	}()
	require.Eventually(t, func() bool { return p.runner.Running() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, p.Running(textdoc.FileURI(path)))

	s.Path = fast.Path
	p.SetSettings(s)
	require.NoError(t, p.LintDocument(ctx, swiftDoc(path, 2, "let a = 1\n")))

	testlib.Touch(t, gate)
	require.NoError(t, <-older)

	uri := textdoc.FileURI(path)
	assert.Empty(t, p.Diagnostics().Get(uri))
	version, _ := p.Diagnostics().LatestVersion(uri)
	assert.Equal(t, 2, version)
	assert.False(t, p.Running(uri))
}

func TestLintDocumentOutputOverflow(t *testing.T) {
	folder, _ := newWorkspace(t, testlib.FakeTool{Stdout: forceCastOutput, Exit: 2}, nil)
	s := testSettings()
	s.MaxOutputBytes = 16
	host := newFakeHost()
	p := NewProvider(host, workspace.Folders{folder}, s)
	doc := swiftDoc(filepath.Join(folder.Path, "Cast.swift"), 1, forceCastSource)

	require.NoError(t, p.LintDocument(context.Background(), doc))
	assert.True(t, p.Diagnostics().Has(doc.URI))
	assert.Empty(t, p.Diagnostics().Get(doc.URI))
	assert.Empty(t, host.Messages())
}

func TestLintDocumentMalformedOutput(t *testing.T) {
	folder, tool := newWorkspace(t, testlib.FakeTool{Stdout: "[{", Exit: 2}, nil)
	host := newFakeHost()
	p := NewProvider(host, workspace.Folders{folder}, testSettings())
	doc := swiftDoc(filepath.Join(folder.Path, "Cast.swift"), 1, forceCastSource)
	p.Diagnostics().Set(doc.URI, []diagnostics.Diagnostic{{Message: "old"}})

	require.NoError(t, p.LintDocument(context.Background(), doc))
	assert.Len(t, tool.Invocations(t), 1)
	assert.True(t, p.Diagnostics().Has(doc.URI))
	assert.Empty(t, p.Diagnostics().Get(doc.URI))
	assert.Empty(t, host.Messages())
}

func TestLintDocumentToolNotFound(t *testing.T) {
	root := t.TempDir()
	host := newFakeHost()
	host.choose = "Reset"
	s := testSettings()
	s.Path = filepath.Join(root, "missing", "swiftlint")
	p := NewProvider(host, workspace.Folders{{Name: "ws", Path: root}}, s)

	err := p.LintDocument(context.Background(), swiftDoc(filepath.Join(root, "A.swift"), 1, "let a = 1\n"))
	require.Error(t, err)

	messages := host.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "Could not find SwiftLint: "+s.Path, messages[0])
	assert.Equal(t, 1, host.resets)
	assert.Equal(t, settings.DefaultPath, p.Settings().Path)
}

func TestLintWorkspacePublishesEveryFile(t *testing.T) {
	output := `[
		{"file":"%ROOT%/Sources/A.swift","line":2,"character":3,"reason":"Line too long","rule_id":"line_length","severity":"Warning","type":"violation"},
		{"file":"Generated/Z.swift","line":1,"character":null,"reason":"Todo","rule_id":"todo","severity":"Error","type":"violation"}
	]`
	root := t.TempDir()
	testlib.WriteFiles(t, root, map[string]string{
		"Sources/A.swift": "let a = 1\nlet b = 2\n",
		"Sources/B.swift": "let b = 2\n",
		"Tests/T.swift":   "let t = 3\n",
		"Pods/P.swift":    "let p = 4\n",
		"README.md":       "readme\n",
	})
	tool := testlib.FakeTool{Stdout: strings.ReplaceAll(output, "%ROOT%", root)}.Install(t, filepath.Join(root, ".build", "debug", "swiftlint"))
	p := NewProvider(newFakeHost(), workspace.Folders{{Name: "ws", Path: root}}, testSettings())
	untouched := textdoc.FileURI("/elsewhere/Kept.swift")
	p.Diagnostics().Set(untouched, []diagnostics.Diagnostic{{Message: "kept"}})

	results, err := p.LintWorkspace(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	files := []string{
		filepath.Join(root, "Sources", "A.swift"),
		filepath.Join(root, "Sources", "B.swift"),
		filepath.Join(root, "Tests", "T.swift"),
	}
	assert.Equal(t, files, results[0].Files)
	assert.NotEmpty(t, results[0].PassID)

	calls := tool.Invocations(t)
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"--quiet", "--reporter", "json", "--use-script-input-files"}, calls[0].Args)
	assert.Equal(t, 3, calls[0].Count)
	assert.Equal(t, files, calls[0].Files)
	assert.False(t, calls[0].HasStdin)

	collection := p.Diagnostics()
	a := collection.Get(textdoc.FileURI(files[0]))
	require.Len(t, a, 1)
	assert.Equal(t, textdoc.NewRange(1, 3, 1, 4), a[0].Range)
	assert.True(t, collection.Has(textdoc.FileURI(files[1])))
	assert.Empty(t, collection.Get(textdoc.FileURI(files[1])))
	assert.True(t, collection.Has(textdoc.FileURI(files[2])))
	assert.Len(t, collection.Get(textdoc.FileURI(filepath.Join(root, "Generated", "Z.swift"))), 1)
	assert.False(t, collection.Has(textdoc.FileURI(filepath.Join(root, "Pods", "P.swift"))))
	assert.Len(t, collection.Get(untouched), 1)
}

func TestLintWorkspaceConfigGovernsExclusion(t *testing.T) {
	folder, tool := newWorkspace(t, testlib.FakeTool{Stdout: "[]"}, map[string]string{
		".swiftlint.yml":            "included:\n  - Sources\n  - Pods\nexcluded:\n  - Sources/Generated\n",
		"Sources/A.swift":           "let a = 1\n",
		"Sources/Generated/G.swift": "let g = 1\n",
		"Pods/P.swift":              "let p = 1\n",
		"Tests/T.swift":             "let t = 1\n",
	})
	p := NewProvider(newFakeHost(), workspace.Folders{folder}, testSettings())

	_, err := p.LintWorkspace(context.Background())
	require.NoError(t, err)
	calls := tool.Invocations(t)
	require.Len(t, calls, 1)
	assert.Equal(t, []string{
		filepath.Join(folder.Path, "Pods", "P.swift"),
		filepath.Join(folder.Path, "Sources", "A.swift"),
	}, calls[0].Files)
	assert.Contains(t, calls[0].Args, "--config")
}

func TestLintWorkspaceIsolatesFailingFolders(t *testing.T) {
	broken, _ := newWorkspace(t, testlib.FakeTool{Stderr: "boom", Exit: 70}, map[string]string{"A.swift": "let a = 1\n"})
	healthy, _ := newWorkspace(t, testlib.FakeTool{Stdout: "[]"}, map[string]string{"B.swift": "let b = 1\n"})
	empty := workspace.Folder{Name: "empty", Path: t.TempDir()}
	host := newFakeHost()
	p := NewProvider(host, workspace.Folders{broken, healthy, empty}, testSettings())

	results, err := p.LintWorkspace(context.Background())
	require.Error(t, err)
	var exitErr *execshell.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 70, exitErr.ExitCode)

	require.Len(t, results, 3)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Empty(t, results[2].Files)

	assert.Equal(t, []string{"SwiftLint failed. boom"}, host.Messages())
	assert.False(t, p.Diagnostics().Has(textdoc.FileURI(filepath.Join(broken.Path, "A.swift"))))
	assert.True(t, p.Diagnostics().Has(textdoc.FileURI(filepath.Join(healthy.Path, "B.swift"))))
}

func TestLintWorkspaceMalformedOutput(t *testing.T) {
	folder, _ := newWorkspace(t, testlib.FakeTool{Stdout: "[{", Exit: 2}, map[string]string{"A.swift": "let a = 1\n"})
	host := newFakeHost()
	p := NewProvider(host, workspace.Folders{folder}, testSettings())
	uri := textdoc.FileURI(filepath.Join(folder.Path, "A.swift"))
	p.Diagnostics().Set(uri, []diagnostics.Diagnostic{{Message: "old"}})

	results, err := p.LintWorkspace(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.True(t, p.Diagnostics().Has(uri))
	assert.Empty(t, p.Diagnostics().Get(uri))
	assert.Empty(t, host.Messages())
}

func TestFixDocumentsSavesFixesAndRelints(t *testing.T) {
	folder, tool := newWorkspace(t, testlib.FakeTool{Stdout: "[]"}, map[string]string{"A.swift": "let a = 1 \n"})
	path := filepath.Join(folder.Path, "A.swift")
	host := newFakeHost()
	dirty := swiftDoc(path, 4, "let a = 2 \n")
	dirty.Dirty = true
	host.open[dirty.URI] = dirty
	p := NewProvider(host, workspace.Folders{folder}, testSettings())

	require.NoError(t, p.ExecuteCommand(context.Background(), CommandFixDocument, dirty.URI))

	assert.Equal(t, []textdoc.URI{dirty.URI}, host.saved)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "let a = 2 \n", string(content))

	calls := tool.Invocations(t)
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"--quiet", "--reporter", "json", "--fix", "--use-script-input-files"}, calls[0].Args)
	assert.Equal(t, []string{path}, calls[0].Files)
	assert.Equal(t, []string{"--quiet", "--reporter", "json", "--use-stdin"}, calls[1].Args)

	version, ok := p.Diagnostics().LatestVersion(dirty.URI)
	assert.True(t, ok)
	assert.Equal(t, 5, version)
}

func TestFixWorkspaceCommandRelints(t *testing.T) {
	folder, tool := newWorkspace(t, testlib.FakeTool{Stdout: "[]"}, map[string]string{"A.swift": "let a = 1\n"})
	s := testSettings()
	s.AdditionalParameters = "--strict"
	p := NewProvider(newFakeHost(), workspace.Folders{folder}, s)

	require.NoError(t, p.ExecuteCommand(context.Background(), CommandFixWorkspace))
	calls := tool.Invocations(t)
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"--quiet", "--reporter", "json", "--fix", "--use-script-input-files", "--strict"}, calls[0].Args)
	assert.Equal(t, []string{"--quiet", "--reporter", "json", "--use-script-input-files", "--strict"}, calls[1].Args)
	assert.True(t, p.Diagnostics().Has(textdoc.FileURI(filepath.Join(folder.Path, "A.swift"))))
}

func TestFixWorkspaceRelintsHealthyFolders(t *testing.T) {
	broken, brokenTool := newWorkspace(t, testlib.FakeTool{Stderr: "boom", Exit: 70}, map[string]string{"A.swift": "let a = 1\n"})
	healthy, healthyTool := newWorkspace(t, testlib.FakeTool{Stdout: "[]"}, map[string]string{"B.swift": "let b = 1\n"})
	host := newFakeHost()
	p := NewProvider(host, workspace.Folders{broken, healthy}, testSettings())
	fixed := textdoc.FileURI(filepath.Join(healthy.Path, "B.swift"))
	p.Diagnostics().Set(fixed, []diagnostics.Diagnostic{{Message: "before fix"}})

	err := p.ExecuteCommand(context.Background(), CommandFixWorkspace)
	require.Error(t, err)
	var exitErr *execshell.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 70, exitErr.ExitCode)

	calls := healthyTool.Invocations(t)
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].Args, "--fix")
	assert.NotContains(t, calls[1].Args, "--fix")
	assert.True(t, p.Diagnostics().Has(fixed))
	assert.Empty(t, p.Diagnostics().Get(fixed))

	assert.Len(t, brokenTool.Invocations(t), 1)
	assert.Equal(t, []string{"SwiftLint failed. boom"}, host.Messages())
}

func TestFixAndLintWorkspaceResults(t *testing.T) {
	broken, _ := newWorkspace(t, testlib.FakeTool{Stderr: "boom", Exit: 70}, map[string]string{"A.swift": "let a = 1\n"})
	healthy, _ := newWorkspace(t, testlib.FakeTool{Stdout: "[]"}, map[string]string{"B.swift": "let b = 1\n"})
	p := NewProvider(newFakeHost(), workspace.Folders{broken, healthy}, testSettings())

	results, err := p.FixAndLintWorkspace(context.Background())
	require.Error(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, healthy, results[0].Folder)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, []string{filepath.Join(healthy.Path, "B.swift")}, results[0].Files)
	assert.Equal(t, broken, results[1].Folder)
	assert.Error(t, results[1].Err)
}

func TestExecuteUnknownCommand(t *testing.T) {
	p := NewProvider(newFakeHost(), nil, testSettings())
	err := p.ExecuteCommand(context.Background(), "swiftlint.nothing")
	assert.True(t, errors.Is(err, ErrUnknownCommand))
}

func TestCodeActions(t *testing.T) {
	folder, _ := newWorkspace(t, testlib.FakeTool{Stdout: forceCastOutput, Exit: 2}, nil)
	p := NewProvider(newFakeHost(), workspace.Folders{folder}, testSettings())
	doc := swiftDoc(filepath.Join(folder.Path, "Cast.swift"), 1, forceCastSource)
	ctx := context.Background()
	shown := []diagnostics.Diagnostic{{Message: "Force cast (force_cast)"}}

	assert.Nil(t, p.CodeActions(ctx, doc, textdoc.NewRange(2, 0, 2, 3), nil))

	actions := p.CodeActions(ctx, doc, textdoc.NewRange(2, 6, 2, 6), shown)
	require.Len(t, actions, 1)
	assert.Equal(t, "Fix all autocorrect issues", actions[0].Title)
	assert.Equal(t, CodeActionKindFixAll, actions[0].Kind)
	assert.Equal(t, CommandFixDocument, actions[0].Command.Name)
	assert.Equal(t, []textdoc.URI{doc.URI}, actions[0].Command.Arguments)
	require.Len(t, actions[0].Diagnostics, 1)
	assert.Equal(t, "force_cast", actions[0].Diagnostics[0].Code)

	actions = p.CodeActions(ctx, doc, textdoc.NewRange(0, 0, 0, 3), shown)
	require.Len(t, actions, 1)
	assert.Empty(t, actions[0].Diagnostics)
}

func TestEvents(t *testing.T) {
	folder, tool := newWorkspace(t, testlib.FakeTool{Stdout: "[]"}, map[string]string{
		".swiftlint.yml": "disabled_rules: []\n",
		"A.swift":        "let a = 1\n",
	})
	p := NewProvider(newFakeHost(), workspace.Folders{folder}, testSettings())
	ctx := context.Background()
	doc := swiftDoc(filepath.Join(folder.Path, "A.swift"), 1, "let a = 1\n")

	require.NoError(t, p.DidOpen(ctx, doc))
	require.NoError(t, p.DidSave(ctx, swiftDoc(filepath.Join(folder.Path, ".swiftlint.yml"), 1, "disabled_rules: []\n")))
	calls := tool.Invocations(t)
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].Args, "--use-stdin")
	assert.Contains(t, calls[1].Args, "--use-script-input-files")

	p.DidDelete(doc.URI)
	assert.False(t, p.Diagnostics().Has(doc.URI))

	s := testSettings()
	s.AutoLintWorkspace = false
	require.NoError(t, p.DidChangeConfiguration(ctx, s))
	require.NoError(t, p.Activate(ctx))
	assert.Len(t, tool.Invocations(t), 2)

	s.AutoLintWorkspace = true
	require.NoError(t, p.DidChangeConfiguration(ctx, s))
	assert.Len(t, tool.Invocations(t), 3)
}

func TestShutdownKillsRunningPasses(t *testing.T) {
	folder, _ := newWorkspace(t, testlib.FakeTool{WaitFor: "/nonexistent/gate"}, nil)
	host := newFakeHost()
	p := NewProvider(host, workspace.Folders{folder}, testSettings())

	done := make(chan error, 1)
	go func() {
		done <- p.LintDocument(context.Background(), swiftDoc(filepath.Join(folder.Path, "A.swift"), 1, "let a = 1\n"))
	}()
	require.Eventually(t, func() bool { return p.runner.Running() == 1 }, 5*time.Second, 10*time.Millisecond)

	p.Shutdown()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, execshell.ErrKilled))
	case <-time.After(5 * time.Second):
		t.Fatal("pass still running after Shutdown")
	}
	assert.Empty(t, host.Messages())
}

func TestScriptInputEnv(t *testing.T) {
	expected := []string{
		"SCRIPT_INPUT_FILE_0=/a.swift",
		"SCRIPT_INPUT_FILE_1=/b c.swift",
		"SCRIPT_INPUT_FILE_COUNT=2",
	}
	assert.Equal(t, expected, ScriptInputEnv([]string{"/a.swift", "/b c.swift"}))
	assert.Equal(t, []string{"SCRIPT_INPUT_FILE_COUNT=0"}, ScriptInputEnv(nil))
}
