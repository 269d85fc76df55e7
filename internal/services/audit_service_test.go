package services

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"ballotaudit/internal/config"
	apperrors "ballotaudit/internal/errors"
	"ballotaudit/internal/exporter"
	"ballotaudit/internal/infrastructure"
	"ballotaudit/internal/ingest"
	"ballotaudit/internal/shared/testutil"
	"ballotaudit/pkg/contracts/domain"
)

func formSource(t *testing.T) ingest.Source {
	t.Helper()
	csv := testutil.FormCSV(
		testutil.FormRow{Timestamp: "19/12/2024 10:00:00", Email: "ana.silva@gmail.com", Choice: "Noel A"},
		testutil.FormRow{Timestamp: "19/12/2024 10:00:01", Email: "ana.silva@gmail.com", Choice: "Noel B"},
		testutil.FormRow{Timestamp: "19/12/2024 11:00:00", Email: "bob@outlook.com", Choice: "Noel B"},
		testutil.FormRow{Timestamp: "20/12/2024 12:00:00", Email: "carl@gmail.com", Choice: "Noel B"},
		testutil.FormRow{Timestamp: "not-a-date", Email: "x@gmail.com", Choice: "Noel A"},
	)
	src, err := ingest.NewReaderSource("form.csv", ingest.FormatCSV, strings.NewReader(csv))
	require.NoError(t, err)
	return src
}

func TestAuditServiceRun(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	svc := NewAuditService(exporter.NewPseudonymizer("pepper"), logger)

	res, err := svc.Run(context.Background(), AuditRequest{
		Source: formSource(t),
		Policy: config.DefaultAudit(),
	})
	require.NoError(t, err)

	assert.Len(t, res.ID, 36)
	assert.Equal(t, "form.csv", res.Source)
	assert.Len(t, res.Artifacts.FlaggedRaw, 4)
	assert.Len(t, res.Artifacts.Cleaned, 2)
	assert.Equal(t, 1, res.Artifacts.DroppedRows)
	assert.Equal(t, 1, res.Artifacts.Summary.GlobalShortDeltas)

	require.NotNil(t, res.Insights)
	assert.Equal(t, domain.ScenarioOrganizer, res.Insights.Scenario)
	assert.Equal(t, "Noel A", winner(res.Insights))
	assert.Equal(t, []int{20, 21, 22}, res.Policy.ExcludedDays)

	testutil.AssertLogContains(t, handler, slog.LevelWarn, "rows dropped")
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "audit complete")
	testutil.AssertNoErrors(t, handler)
	assert.True(t, handler.ContainsAttr("winner", "Noel A"))
}

func TestAuditServicePublicReportHasNoEmails(t *testing.T) {
	svc := NewAuditService(exporter.NewPseudonymizer("pepper"), slog.Default())

	res, err := svc.Run(context.Background(), AuditRequest{Source: formSource(t), Policy: config.DefaultAudit()})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, exporter.EncodePublicReport(&buf, svc.PublicReport(res)))
	assert.NotContains(t, buf.String(), "ana.silva@gmail.com")
	assert.NotContains(t, buf.String(), "bob@outlook.com")
	assert.Contains(t, buf.String(), exporter.NewPseudonymizer("pepper").Hash("ana.silva@gmail.com"))
}

func TestAuditServiceScenario(t *testing.T) {
	svc := NewAuditService(nil, nil)

	res, err := svc.Run(context.Background(), AuditRequest{
		Source:   formSource(t),
		Policy:   config.DefaultAudit(),
		Scenario: domain.ScenarioAntiBot,
		TopN:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ScenarioAntiBot, res.Insights.Scenario)
	assert.Len(t, res.Insights.Ranking.Choices, 1)
}

func TestAuditServiceRunErrors(t *testing.T) {
	svc := NewAuditService(nil, nil)
	ctx := context.Background()

	_, err := svc.Run(ctx, AuditRequest{})
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeValidation))

	_, err = svc.Run(ctx, AuditRequest{Source: formSource(t), Scenario: "Z"})
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeValidation))
	assert.ErrorContains(t, err, ErrInvalidScenario.Error())

	bad, err := ingest.NewReaderSource("bad.csv", ingest.FormatCSV, strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	_, err = svc.Run(ctx, AuditRequest{Source: bad, Policy: config.DefaultAudit()})
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeSchema))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.Run(cancelled, AuditRequest{Source: formSource(t), Policy: config.DefaultAudit()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuditServiceTelemetry(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())
	metrics, err := infrastructure.NewAuditMetrics(mp.Meter("test"))
	require.NoError(t, err)

	svc := NewAuditService(nil, nil, WithTracer(tp.Tracer("test")), WithMetrics(metrics))
	_, err = svc.Run(context.Background(), AuditRequest{Source: formSource(t), Policy: config.DefaultAudit()})
	require.NoError(t, err)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"audit.ingest", "audit.pipeline", "audit.insights", "audit.run"}, names)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), sums["audit_runs_total"])
	assert.Equal(t, int64(5), sums["audit_rows_ingested_total"])
	assert.Equal(t, int64(1), sums["audit_rows_dropped_total"])
	assert.Equal(t, int64(2), sums["audit_rows_cleaned_total"])
}

func TestAuditServiceExport(t *testing.T) {
	dir := t.TempDir()
	paths := &config.Paths{BaseDir: dir, OutputDir: filepath.Join(dir, "out")}
	pseudo := exporter.NewPseudonymizer("pepper")
	now := time.Date(2024, 12, 24, 9, 0, 0, 0, time.UTC)

	svc := NewAuditService(pseudo, nil,
		WithExporter(exporter.NewExporter(paths, pseudo, nil)),
		WithClock(func() time.Time { return now }))

	res, err := svc.Run(context.Background(), AuditRequest{Source: formSource(t), Policy: config.DefaultAudit()})
	require.NoError(t, err)
	assert.Equal(t, now, res.StartedAt)

	files, err := svc.Export(context.Background(), res)
	require.NoError(t, err)
	assert.Len(t, files, 5)
	for _, f := range files {
		assert.FileExists(t, f)
	}

	_, err = NewAuditService(nil, nil).Export(context.Background(), res)
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeConfig))
}
