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
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"naive.systems/lintbridge/diagnostics"
	"naive.systems/lintbridge/lint"
	"naive.systems/lintbridge/settings"
	"naive.systems/lintbridge/stats"
	"naive.systems/lintbridge/telemetry"
	"naive.systems/lintbridge/textdoc"
	"naive.systems/lintbridge/watch"
	"naive.systems/lintbridge/workspace"
)

// errFindings is returned when a pass found error diagnostics.
var errFindings = errors.New("error diagnostics found")

// watched directories are never entered
var alwaysSkippedDirs = []string{".git", ".build"}

type options struct {
	settingsPath   string
	resultsDir     string
	showCode       bool
	charset        string
	metricsAddr    string
	traceExporter  string
	metricExporter string

	settings      settings.Settings
	settingsFlags *flag.FlagSet
}

func newOptions() *options {
	o := &options{settings: settings.Default()}
	o.settingsFlags = flag.NewFlagSet("settings", flag.ContinueOnError)
	o.settings.RegisterFlags(o.settingsFlags)
	return o
}

// load applies the settings file, if any, under the settings flags given on
// the command line.
func (o *options) load(cmd *cobra.Command) error {
	if o.settingsPath != "" {
		loaded, err := settings.Load(o.settingsPath)
		if err != nil {
			return err
		}
		overrides := flag.NewFlagSet("overrides", flag.ContinueOnError)
		loaded.RegisterFlags(overrides)
		var setErr error
		o.settingsFlags.VisitAll(func(f *flag.Flag) {
			if setErr != nil || !cmd.Flags().Changed(f.Name) {
				return
			}
			setErr = overrides.Set(f.Name, f.Value.String())
		})
		if setErr != nil {
			return setErr
		}
		o.settings = loaded
	}
	return o.settings.Validate()
}

func newRootCmd(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "lintbridge",
		Short:         "Run SwiftLint over Swift workspaces and report its findings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.load(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.AddGoFlagSet(o.settingsFlags)
	flags.StringVar(&o.settingsPath, "settings", "", "YAML settings file, settings flags override its values")
	flags.StringVar(&o.resultsDir, "results_dir", "", "write the pass summary and diagnostics.json to this directory")
	flags.BoolVar(&o.showCode, "show_code", false, "print the source lines around each finding")
	flags.StringVar(&o.charset, "source_charset", "utf8", "charset of the Swift sources, used by --show_code")
	flags.StringVar(&o.traceExporter, "trace_exporter", telemetry.ExporterNone, "none, stdout or otlp")
	flags.StringVar(&o.metricExporter, "metric_exporter", telemetry.ExporterNone, "none, stdout or prometheus")

	root.AddCommand(
		&cobra.Command{
			Use:   "lint [folders]",
			Short: "Lint every Swift file of the folders, the current directory by default",
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.run(cmd, args, func(ctx context.Context, s *session) error {
					results, err := s.provider.LintWorkspace(ctx)
					return s.finish(results, err)
				})
			},
		},
		&cobra.Command{
			Use:   "fix [folders]",
			Short: "Autocorrect the folders, then lint them",
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.run(cmd, args, func(ctx context.Context, s *session) error {
					results, err := s.provider.FixAndLintWorkspace(ctx)
					return s.finish(results, err)
				})
			},
		},
		&cobra.Command{
			Use:   "fix-document files...",
			Short: "Autocorrect the given files, then lint them",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var uris []textdoc.URI
				for _, arg := range args {
					abs, err := filepath.Abs(arg)
					if err != nil {
						return fmt.Errorf("filepath.Abs: %v", err)
					}
					uris = append(uris, textdoc.FileURI(abs))
				}
				return o.run(cmd, nil, func(ctx context.Context, s *session) error {
					err := s.provider.ExecuteCommand(ctx, lint.CommandFixDocument, uris...)
					selected := map[textdoc.URI][]diagnostics.Diagnostic{}
					for _, uri := range uris {
						selected[uri] = s.provider.Diagnostics().Get(uri)
					}
					if s.printer.print(selected) > 0 && err == nil {
						return errFindings
					}
					return err
				})
			},
		},
		watchCmd(o),
	)
	return root
}

func watchCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [folders]",
		Short: "Lint the folders, then lint Swift files again whenever they change",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args, func(ctx context.Context, s *session) error {
				if o.metricsAddr != "" {
					stop, err := serveMetrics(o.metricsAddr)
					if err != nil {
						return err
					}
					defer stop()
				}
				var roots []string
				for _, folder := range s.provider.Folders() {
					roots = append(roots, folder.Path)
				}
				w, err := watch.New(roots, append(alwaysSkippedDirs, o.settings.ForceExcludePaths...))
				if err != nil {
					return err
				}
				if err := s.provider.Activate(ctx); err != nil {
					glog.Errorf("initial pass: %v", err)
				}
				s.printer.print(s.provider.Diagnostics().Snapshot())
				return w.Run(ctx, func(batch []watch.Change) {
					s.handleChanges(ctx, batch)
				})
			})
		},
	}
	cmd.Flags().StringVar(&o.metricsAddr, "metrics_addr", "", "serve Prometheus metrics on this address, needs --metric_exporter=prometheus")
	return cmd
}

func serveMetrics(addr string) (func(), error) {
	handler := telemetry.MetricsHandler()
	if handler == nil {
		return nil, fmt.Errorf("--metrics_addr needs --metric_exporter=%s", telemetry.ExporterPrometheus)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Errorf("metrics server: %v", err)
		}
	}()
	glog.Infof("serving metrics on %s/metrics", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}, nil
}

type session struct {
	options  *options
	provider *lint.Provider
	host     *cliHost
	printer  *printer
	started  time.Time
}

func toFolders(args []string) (workspace.Folders, error) {
	if len(args) == 0 {
		args = []string{"."}
	}
	var folders workspace.Folders
	for _, arg := range args {
		folder, err := workspace.NewFolder(arg)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(folder.Path)
		if err != nil {
			return nil, fmt.Errorf("folder %s: %v", arg, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("folder %s: not a directory", arg)
		}
		folders = append(folders, folder)
	}
	return folders, nil
}

// run sets up telemetry and a provider for the folders of args, and kills
// the running tool processes on SIGINT or SIGTERM.
func (o *options) run(cmd *cobra.Command, args []string, body func(context.Context, *session) error) error {
	folders, err := toFolders(args)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := telemetry.DefaultConfig()
	cfg.TraceExporter = o.traceExporter
	cfg.MetricExporter = o.metricExporter
	shutdown, err := telemetry.Init(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			glog.Warningf("telemetry shutdown: %v", err)
		}
	}()

	host := newCLIHost(cmd.ErrOrStderr())
	s := &session{
		options:  o,
		provider: lint.NewProvider(host, folders, o.settings),
		host:     host,
		printer:  newPrinter(cmd.OutOrStdout(), o.showCode, o.charset),
		started:  time.Now(),
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.provider.Shutdown()
		case <-done:
		}
	}()
	return body(ctx, s)
}

// finish prints the collected diagnostics and writes the results dir.
func (s *session) finish(results []lint.FolderResult, passErr error) error {
	snapshot := s.provider.Diagnostics().Snapshot()
	errorCount := s.printer.print(snapshot)
	if s.options.resultsDir != "" {
		if err := s.writeResults(results, snapshot); err != nil {
			glog.Errorf("%v", err)
		}
	}
	if passErr != nil {
		return passErr
	}
	if errorCount > 0 {
		return errFindings
	}
	return nil
}

func (s *session) writeResults(results []lint.FolderResult, snapshot map[textdoc.URI][]diagnostics.Diagnostic) error {
	if err := os.MkdirAll(s.options.resultsDir, os.ModePerm); err != nil {
		return fmt.Errorf("os.MkdirAll: %v", err)
	}
	summary := stats.Summary{
		PassID:     uuid.NewString(),
		StartedAt:  s.started,
		FinishedAt: time.Now(),
		Severity:   stats.CountSeverity(snapshot),
	}
	var files []string
	for _, r := range results {
		summary.Roots = append(summary.Roots, r.Folder.Path)
		files = append(files, r.Files...)
	}
	summary.Files = len(files)
	loc, err := stats.CountLines(files)
	if err != nil {
		glog.Warningf("stats.CountLines: %v", err)
	}
	summary.LOC = loc
	stats.WriteSummary(s.options.resultsDir, summary)
	return stats.WriteDiagnostics(s.options.resultsDir, snapshot)
}

func (s *session) handleChanges(ctx context.Context, batch []watch.Change) {
	current := s.provider.Settings()
	for _, change := range batch {
		uri := textdoc.FileURI(change.Path)
		if current.IsConfigFile(change.Path) {
			if change.Op == watch.Remove {
				continue
			}
			config := textdoc.NewDocument(uri, "yaml", 0, "")
			if err := s.provider.DidSave(ctx, config); err != nil {
				glog.Errorf("workspace pass after %s changed: %v", change.Path, err)
			}
			s.printer.print(s.provider.Diagnostics().Snapshot())
			continue
		}
		if filepath.Ext(change.Path) != workspace.SwiftExt {
			continue
		}
		if change.Op == watch.Remove {
			s.host.close(uri)
			s.provider.DidDelete(uri)
			continue
		}
		doc, err := s.host.OpenDocument(ctx, uri)
		if err != nil {
			glog.Warningf("%v", err)
			continue
		}
		if err := s.provider.DidSave(ctx, doc); err != nil {
			glog.Errorf("lint %s: %v", change.Path, err)
			continue
		}
		s.printer.print(map[textdoc.URI][]diagnostics.Diagnostic{uri: s.provider.Diagnostics().Get(uri)})
	}
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFindings):
		return 1
	default:
		fmt.Fprintf(stderr, "lintbridge: %v\n", err)
		return 2
	}
}

func main() {
	root := newRootCmd(newOptions())
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	// cobra parses the merged flags; glog only needs flag.CommandLine marked parsed
	flag.CommandLine.Parse([]string{})

	err := root.Execute()
	glog.Flush()
	os.Exit(exitCode(err, root.ErrOrStderr()))
}
