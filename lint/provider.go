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
Package lint runs swiftlint over editor documents and workspace folders and
keeps the resulting diagnostics.

A document pass pipes the live buffer to the tool. A workspace pass hands
the tool the list of files of one folder through SCRIPT_INPUT_FILE_<n>
variables. Both publish into one diagnostics.Collection; document results
are versioned and a pass finishing after a newer one is dropped.
*/
package lint

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"naive.systems/lintbridge/diagnostics"
	"naive.systems/lintbridge/execshell"
	"naive.systems/lintbridge/interaction"
	"naive.systems/lintbridge/lintconfig"
	"naive.systems/lintbridge/report"
	"naive.systems/lintbridge/settings"
	"naive.systems/lintbridge/stats"
	"naive.systems/lintbridge/textdoc"
	"naive.systems/lintbridge/workspace"
)

// Commands understood by ExecuteCommand.
const (
	CommandLintWorkspace = "swiftlint.lintWorkspace"
	CommandFixWorkspace  = "swiftlint.fixWorkspace"
	CommandFixDocument   = "swiftlint.fixDocument"
	CommandFixAll        = "swiftlint.fixAll"
)

const (
	CodeActionKindFixAll = "source.fixAll"
	fixAllTitle          = "Fix all autocorrect issues"
)

// skipped by workspace passes whatever the settings say
const buildDirName = ".build"

// ErrUnknownCommand is returned by ExecuteCommand for names it does not know.
var ErrUnknownCommand = errors.New("unknown command")

// Host is the editor side of the provider.
type Host interface {
	interaction.Host
	// Documents returns the open documents.
	Documents() []*textdoc.Document
	// OpenDocument returns the current buffer of uri, reading it from disk
	// when it is not open.
	OpenDocument(ctx context.Context, uri textdoc.URI) (*textdoc.Document, error)
	// SaveDocument writes a dirty buffer and returns the saved document.
	SaveDocument(ctx context.Context, doc *textdoc.Document) (*textdoc.Document, error)
}

type Command struct {
	Title     string
	Name      string
	Arguments []textdoc.URI
}

type CodeAction struct {
	Title       string
	Kind        string
	Diagnostics []diagnostics.Diagnostic
	Command     Command
}

// FolderResult describes one workspace pass over one folder.
type FolderResult struct {
	Folder workspace.Folder
	PassID string
	// Files are the files handed to the tool.
	Files    []string
	Duration time.Duration
	Err      error
}

type Provider struct {
	host       Host
	handler    *interaction.Handler
	runner     *execshell.Runner
	collection *diagnostics.Collection

	mu       sync.RWMutex
	settings settings.Settings
	folders  workspace.Folders
	running  map[textdoc.URI]int
}

// NewProvider returns a provider for folders. The output and process
// ceilings of s are fixed for the lifetime of the provider.
func NewProvider(host Host, folders workspace.Folders, s settings.Settings) *Provider {
	p := &Provider{
		host:       host,
		runner:     execshell.NewRunner(s.MaxOutputBytes, s.MaxProcesses),
		collection: diagnostics.NewCollection(),
		settings:   s,
		folders:    folders,
		running:    map[textdoc.URI]int{},
	}
	p.handler = interaction.NewHandler(remediationHost{Host: host, provider: p}, s.Lang)
	return p
}

// remediationHost resets the provider's own settings before telling the
// editor to do the same.
type remediationHost struct {
	Host
	provider *Provider
}

func (h remediationHost) ResetToolPath() {
	h.provider.mu.Lock()
	h.provider.settings.ResetPath()
	h.provider.mu.Unlock()
	h.Host.ResetToolPath()
}

func (p *Provider) Diagnostics() *diagnostics.Collection {
	return p.collection
}

func (p *Provider) Settings() settings.Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

func (p *Provider) SetSettings(s settings.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Lang != p.settings.Lang {
		p.handler = interaction.NewHandler(remediationHost{Host: p.host, provider: p}, s.Lang)
	}
	p.settings = s
}

func (p *Provider) Folders() workspace.Folders {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append(workspace.Folders(nil), p.folders...)
}

func (p *Provider) SetFolders(folders workspace.Folders) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.folders = folders
}

// Running reports whether a document pass for uri is in flight.
func (p *Provider) Running(uri textdoc.URI) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running[uri] > 0
}

func (p *Provider) begin(uri textdoc.URI) {
	p.mu.Lock()
	p.running[uri]++
	p.mu.Unlock()
}

func (p *Provider) end(uri textdoc.URI) {
	p.mu.Lock()
	if p.running[uri]--; p.running[uri] <= 0 {
		delete(p.running, uri)
	}
	p.mu.Unlock()
}

// report hands a failed pass to the user once.
func (p *Provider) report(err error, toolPath string) {
	p.mu.RLock()
	handler := p.handler
	p.mu.RUnlock()
	handler.Handle(err, toolPath)
}

func isLintable(doc *textdoc.Document) bool {
	return doc.LanguageID == textdoc.SwiftLanguageID && doc.URI.Scheme() != "git"
}

// target is what one pass resolved before running the tool.
type target struct {
	root     string
	toolPath string
	config   *lintconfig.Config
	extra    []string
}

// resolve looks up the config and tool for root. A nil target
// without error means the pass is disabled for root.
func (p *Provider) resolve(s settings.Settings, root string) (*target, error) {
	if !s.Enable {
		return nil, nil
	}
	cfg, err := lintconfig.Search(root, s.ConfigSearchPaths)
	if err != nil {
		return nil, err
	}
	if s.OnlyEnableWithConfig && cfg == nil {
		glog.V(1).Infof("no config in %s, skipped", root)
		return nil, nil
	}
	if s.OnlyEnableOnSwiftPMProjects && !workspace.IsSwiftPMProject(root) {
		glog.V(1).Infof("%s is not a swift package, skipped", root)
		return nil, nil
	}
	extra, err := s.AdditionalArgs()
	if err != nil {
		return nil, err
	}
	return &target{root: root, toolPath: s.ToolPath(root), config: cfg, extra: extra}, nil
}

func (p *Provider) rootOf(path string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if folder, ok := p.folders.FolderFor(path); ok {
		return folder.Path
	}
	return filepath.Dir(path)
}

func (t *target) includes(path string) bool {
	return t.config == nil || t.config.Includes(path)
}

// args builds the tool arguments. Extra parameters come last.
func (t *target) args(fix bool, input string) []string {
	args := []string{"--quiet", "--reporter", "json"}
	if t.config != nil {
		args = append(args, t.config.Arguments()...)
	}
	if fix {
		args = append(args, "--fix")
	}
	args = append(args, input)
	return append(args, t.extra...)
}

// ScriptInputEnv lists files the way Xcode build phases pass them.
func ScriptInputEnv(files []string) []string {
	env := make([]string, 0, len(files)+1)
	for i, file := range files {
		env = append(env, "SCRIPT_INPUT_FILE_"+strconv.Itoa(i)+"="+file)
	}
	return append(env, "SCRIPT_INPUT_FILE_COUNT="+strconv.Itoa(len(files)))
}

func parseReports(stdout []byte, overflowed bool, what string) []report.Report {
	if overflowed {
		glog.Warningf("swiftlint output for %s exceeded the output ceiling, findings dropped", what)
		return nil
	}
	reports, err := report.Parse(stdout)
	if err != nil {
		glog.Warningf("%s: %v", what, err)
		return nil
	}
	return reports
}

func countOf(diags []diagnostics.Diagnostic) stats.SeverityCount {
	var cnt stats.SeverityCount
	for _, d := range diags {
		stats.AccumulateBySeverity(&cnt, d.Severity, d.Code)
	}
	return cnt
}

// LintDocument lints the buffer of doc and publishes the findings for its
// version. Failures are reported to the user before being returned.
func (p *Provider) LintDocument(ctx context.Context, doc *textdoc.Document) error {
	if !isLintable(doc) {
		return nil
	}
	if latest, ok := p.collection.LatestVersion(doc.URI); ok && latest >= doc.Version {
		glog.V(1).Infof("%s@%d already linted at %d", doc.URI, doc.Version, latest)
		return nil
	}
	s := p.Settings()
	if !s.Enable {
		return nil
	}

	p.begin(doc.URI)
	defer p.end(doc.URI)

	passID := uuid.NewString()
	ctx, span := startPassSpan(ctx, kindDocument, string(doc.URI), passID)
	start := time.Now()
	outcome, diags, err := p.lintDocument(ctx, s, doc)
	count := countOf(diags)
	endPassSpan(span, outcome, count, err)
	recordPass(ctx, kindDocument, outcome, time.Since(start), count)
	return err
}

func (p *Provider) lintDocument(ctx context.Context, s settings.Settings, doc *textdoc.Document) (string, []diagnostics.Diagnostic, error) {
	apply := func(diags []diagnostics.Diagnostic) (string, []diagnostics.Diagnostic, error) {
		if !p.collection.SetIfNewer(doc.URI, doc.Version, diags) {
			glog.V(1).Infof("dropped stale results of %s@%d", doc.URI, doc.Version)
			return outcomeStale, nil, nil
		}
		return outcomeApplied, diags, nil
	}
	if strings.TrimSpace(doc.Text()) == "" {
		return apply(nil)
	}

	path := doc.URI.Path()
	root := p.rootOf(path)
	t, err := p.resolve(s, root)
	if err != nil {
		p.report(err, s.ToolPath(root))
		return outcomeFailed, nil, err
	}
	if t == nil {
		return outcomeSkipped, nil, nil
	}
	if !t.includes(path) {
		return apply(nil)
	}

	result, err := p.runner.Run(ctx, t.toolPath, t.args(false, "--use-stdin"), execshell.Options{
		Dir:   t.root,
		Input: []byte(doc.Text()),
	})
	if err != nil {
		p.report(err, t.toolPath)
		return outcomeFailed, nil, err
	}
	reports := parseReports(result.Stdout, result.Overflowed, string(doc.URI))
	return apply(report.MapDocument(reports, doc))
}

// LintWorkspace lints every folder concurrently. A failing folder does not
// stop the others; its error is reported and joined into the returned one.
func (p *Provider) LintWorkspace(ctx context.Context) ([]FolderResult, error) {
	return p.eachFolder(ctx, false)
}

// FixWorkspace autocorrects every folder. Diagnostics are left alone.
func (p *Provider) FixWorkspace(ctx context.Context) ([]FolderResult, error) {
	return p.eachFolder(ctx, true)
}

// FixAndLintWorkspace autocorrects every folder, then lints the folders whose
// fix did not fail. The results hold the lint pass of those folders followed
// by the failed fixes.
func (p *Provider) FixAndLintWorkspace(ctx context.Context) ([]FolderResult, error) {
	s := p.Settings()
	if !s.Enable {
		return nil, nil
	}
	fixed, fixErr := p.passFolders(ctx, s, p.Folders(), true)
	var relint workspace.Folders
	var failed []FolderResult
	for _, r := range fixed {
		if r.Err != nil {
			failed = append(failed, r)
			continue
		}
		relint = append(relint, r.Folder)
	}
	linted, lintErr := p.passFolders(ctx, s, relint, false)
	return append(linted, failed...), errors.Join(fixErr, lintErr)
}

func (p *Provider) eachFolder(ctx context.Context, fix bool) ([]FolderResult, error) {
	s := p.Settings()
	if !s.Enable {
		return nil, nil
	}
	return p.passFolders(ctx, s, p.Folders(), fix)
}

func (p *Provider) passFolders(ctx context.Context, s settings.Settings, folders workspace.Folders, fix bool) ([]FolderResult, error) {
	results := make([]FolderResult, len(folders))
	var g errgroup.Group
	for i, folder := range folders {
		g.Go(func() error {
			results[i] = p.folderPass(ctx, s, folder, fix)
			return nil
		})
	}
	g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Folder.Path, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

func (p *Provider) folderPass(ctx context.Context, s settings.Settings, folder workspace.Folder, fix bool) FolderResult {
	kind := kindWorkspace
	if fix {
		kind = kindFixFolder
	}
	res := FolderResult{Folder: folder, PassID: uuid.NewString()}
	ctx, span := startPassSpan(ctx, kind, folder.Path, res.PassID)
	start := time.Now()
	outcome, count := p.runFolder(ctx, s, &res, fix)
	res.Duration = time.Since(start)
	endPassSpan(span, outcome, count, res.Err)
	recordPass(ctx, kind, outcome, res.Duration, count)
	return res
}

func (p *Provider) runFolder(ctx context.Context, s settings.Settings, res *FolderResult, fix bool) (string, stats.SeverityCount) {
	var none stats.SeverityCount
	t, err := p.resolve(s, res.Folder.Path)
	if err != nil {
		res.Err = err
		p.report(err, s.ToolPath(res.Folder.Path))
		return outcomeFailed, none
	}
	if t == nil {
		return outcomeSkipped, none
	}

	skip := []string{buildDirName}
	if t.config == nil {
		skip = append(skip, s.ForceExcludePaths...)
	}
	found, err := workspace.FindSourceFiles(ctx, t.root, skip)
	if err != nil {
		res.Err = err
		p.report(err, t.toolPath)
		return outcomeFailed, none
	}
	for _, file := range found {
		if t.includes(file) {
			res.Files = append(res.Files, file)
		}
	}
	if len(res.Files) == 0 {
		glog.Infof("no swift files to lint in %s", t.root)
		return outcomeSkipped, none
	}

	glog.Infof("pass %s: %d files in %s", res.PassID, len(res.Files), t.root)
	result, err := p.runner.Run(ctx, t.toolPath, t.args(fix, "--use-script-input-files"), execshell.Options{
		Dir: t.root,
		Env: ScriptInputEnv(res.Files),
	})
	if err != nil {
		res.Err = err
		p.report(err, t.toolPath)
		return outcomeFailed, none
	}
	if fix {
		return outcomeFixed, none
	}

	grouped := report.GroupByFile(parseReports(result.Stdout, result.Overflowed, t.root), t.root)
	var count stats.SeverityCount
	publish := func(path string, diags []diagnostics.Diagnostic) {
		p.collection.Set(textdoc.FileURI(path), diags)
		for _, d := range diags {
			stats.AccumulateBySeverity(&count, d.Severity, d.Code)
		}
	}
	for _, file := range res.Files {
		publish(file, grouped[file])
		delete(grouped, file)
	}
	for path, diags := range grouped {
		publish(path, diags)
	}
	return outcomeApplied, count
}

// FixDocument autocorrects the file behind doc on disk.
func (p *Provider) FixDocument(ctx context.Context, doc *textdoc.Document) error {
	if !isLintable(doc) || doc.URI.Scheme() != "file" {
		return nil
	}
	s := p.Settings()
	passID := uuid.NewString()
	ctx, span := startPassSpan(ctx, kindFixDocument, string(doc.URI), passID)
	start := time.Now()
	outcome, err := p.fixDocument(ctx, s, doc)
	endPassSpan(span, outcome, stats.SeverityCount{}, err)
	recordPass(ctx, kindFixDocument, outcome, time.Since(start), stats.SeverityCount{})
	return err
}

func (p *Provider) fixDocument(ctx context.Context, s settings.Settings, doc *textdoc.Document) (string, error) {
	path := doc.URI.Path()
	root := p.rootOf(path)
	t, err := p.resolve(s, root)
	if err != nil {
		p.report(err, s.ToolPath(root))
		return outcomeFailed, err
	}
	if t == nil || !t.includes(path) {
		return outcomeSkipped, nil
	}
	_, err = p.runner.Run(ctx, t.toolPath, t.args(true, "--use-script-input-files"), execshell.Options{
		Dir: t.root,
		Env: ScriptInputEnv([]string{path}),
	})
	if err != nil {
		p.report(err, t.toolPath)
		return outcomeFailed, err
	}
	return outcomeFixed, nil
}

// FixDocuments saves, fixes and re-lints the documents of uris.
func (p *Provider) FixDocuments(ctx context.Context, uris ...textdoc.URI) error {
	var errs []error
	for _, uri := range uris {
		if err := p.fixAndRelint(ctx, uri); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Provider) fixAndRelint(ctx context.Context, uri textdoc.URI) error {
	doc, err := p.host.OpenDocument(ctx, uri)
	if err != nil {
		return fmt.Errorf("lint.FixDocuments: %v", err)
	}
	if doc.Dirty {
		if doc, err = p.host.SaveDocument(ctx, doc); err != nil {
			return fmt.Errorf("lint.FixDocuments: %v", err)
		}
	}
	if err := p.FixDocument(ctx, doc); err != nil {
		return err
	}
	updated, err := p.host.OpenDocument(ctx, uri)
	if err != nil {
		return fmt.Errorf("lint.FixDocuments: %v", err)
	}
	return p.LintDocument(ctx, updated)
}

// FixAll fixes every open document.
func (p *Provider) FixAll(ctx context.Context) error {
	var uris []textdoc.URI
	for _, doc := range p.host.Documents() {
		uris = append(uris, doc.URI)
	}
	return p.FixDocuments(ctx, uris...)
}

// CodeActions offers to autocorrect doc when the editor shows diagnostics
// in rng.
func (p *Provider) CodeActions(ctx context.Context, doc *textdoc.Document, rng textdoc.Range, contextDiagnostics []diagnostics.Diagnostic) []CodeAction {
	if len(contextDiagnostics) == 0 {
		return nil
	}
	if err := p.LintDocument(ctx, doc); err != nil {
		glog.Warningf("code actions for %s: %v", doc.URI, err)
	}
	var related []diagnostics.Diagnostic
	for _, d := range p.collection.Get(doc.URI) {
		if d.Range.Intersects(rng) {
			related = append(related, d)
		}
	}
	return []CodeAction{{
		Title:       fixAllTitle,
		Kind:        CodeActionKindFixAll,
		Diagnostics: related,
		Command: Command{
			Title:     fixAllTitle,
			Name:      CommandFixDocument,
			Arguments: []textdoc.URI{doc.URI},
		},
	}}
}

// ExecuteCommand runs one of the Command* names.
func (p *Provider) ExecuteCommand(ctx context.Context, name string, args ...textdoc.URI) error {
	switch name {
	case CommandLintWorkspace:
		_, err := p.LintWorkspace(ctx)
		return err
	case CommandFixWorkspace:
		_, err := p.FixAndLintWorkspace(ctx)
		return err
	case CommandFixDocument:
		return p.FixDocuments(ctx, args...)
	case CommandFixAll:
		return p.FixAll(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}

// LintWorkspaceIfNeeded runs a workspace pass when AutoLintWorkspace is on.
func (p *Provider) LintWorkspaceIfNeeded(ctx context.Context) error {
	if !p.Settings().AutoLintWorkspace {
		return nil
	}
	_, err := p.LintWorkspace(ctx)
	return err
}

func (p *Provider) Activate(ctx context.Context) error {
	if !p.Settings().Enable {
		return nil
	}
	return p.LintWorkspaceIfNeeded(ctx)
}

func (p *Provider) DidOpen(ctx context.Context, doc *textdoc.Document) error {
	return p.LintDocument(ctx, doc)
}

func (p *Provider) DidSave(ctx context.Context, doc *textdoc.Document) error {
	if p.Settings().IsConfigFile(doc.URI.Path()) {
		return p.LintWorkspaceIfNeeded(ctx)
	}
	return p.LintDocument(ctx, doc)
}

func (p *Provider) DidDelete(uris ...textdoc.URI) {
	for _, uri := range uris {
		p.collection.Delete(uri)
	}
}

func (p *Provider) DidChangeConfiguration(ctx context.Context, s settings.Settings) error {
	p.SetSettings(s)
	return p.LintWorkspaceIfNeeded(ctx)
}

// Shutdown kills the running tool processes. Their passes fail with
// execshell.ErrKilled.
func (p *Provider) Shutdown() {
	glog.Infof("shutting down, %d swiftlint processes running", p.runner.Running())
	p.runner.KillAll()
}
