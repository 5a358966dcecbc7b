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
	"sync"
	"time"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"naive.systems/lintbridge/stats"
)

var (
	tracer = otel.Tracer("lintbridge.lint")
	meter  = otel.Meter("lintbridge.lint")
)

var (
	passDuration  metric.Float64Histogram
	passTotal     metric.Int64Counter
	findingsTotal metric.Int64Counter
	staleTotal    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// pass kinds
const (
	kindDocument    = "document"
	kindWorkspace   = "workspace"
	kindFixDocument = "fix_document"
	kindFixFolder   = "fix_workspace"
)

// pass outcomes
const (
	outcomeApplied = "applied"
	outcomeStale   = "stale"
	outcomeSkipped = "skipped"
	outcomeFixed   = "fixed"
	outcomeFailed  = "failed"
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error
		passDuration, err = meter.Float64Histogram(
			"lint_pass_duration_seconds",
			metric.WithDescription("Duration of lint and fix passes"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
		passTotal, err = meter.Int64Counter(
			"lint_passes_total",
			metric.WithDescription("Lint and fix passes by kind and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
		findingsTotal, err = meter.Int64Counter(
			"lint_findings_total",
			metric.WithDescription("Findings applied to the diagnostics collection"),
		)
		if err != nil {
			metricsErr = err
			return
		}
		staleTotal, err = meter.Int64Counter(
			"lint_stale_results_total",
			metric.WithDescription("Document passes dropped because a newer version was applied"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	if metricsErr != nil {
		glog.Warningf("lint metrics disabled: %v", metricsErr)
	}
	return metricsErr
}

func startPassSpan(ctx context.Context, kind, target, passID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Provider."+kind,
		trace.WithAttributes(
			attribute.String("lint.kind", kind),
			attribute.String("lint.target", target),
			attribute.String("lint.pass_id", passID),
		),
	)
}

func endPassSpan(span trace.Span, outcome string, count stats.SeverityCount, err error) {
	span.SetAttributes(
		attribute.String("lint.outcome", outcome),
		attribute.Int("lint.error_count", count.Error),
		attribute.Int("lint.warning_count", count.Warning),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func recordPass(ctx context.Context, kind, outcome string, duration time.Duration, count stats.SeverityCount) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	passDuration.Record(ctx, duration.Seconds(), attrs)
	passTotal.Add(ctx, 1, attrs)
	if outcome == outcomeStale {
		staleTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
	if outcome != outcomeApplied {
		return
	}
	for severity, n := range map[string]int{
		"error":       count.Error,
		"warning":     count.Warning,
		"information": count.Information,
	} {
		if n > 0 {
			findingsTotal.Add(ctx, int64(n), metric.WithAttributes(
				attribute.String("kind", kind),
				attribute.String("severity", severity),
			))
		}
	}
}
