package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"ballotaudit/internal/audit"
	"ballotaudit/internal/config"
	apperrors "ballotaudit/internal/errors"
	"ballotaudit/internal/exporter"
	"ballotaudit/internal/infrastructure"
	"ballotaudit/internal/ingest"
	"ballotaudit/internal/insights"
	"ballotaudit/pkg/contracts/domain"
)

// AuditRequest describes one audit run.
type AuditRequest struct {
	Source   ingest.Source
	Policy   config.AuditConfig
	Location *time.Location

	Scenario    domain.ScenarioID
	TopN        int
	FocusChoice string
}

// AuditResult is the outcome of one run. Artifacts still hold raw emails;
// use PublicReport for anything leaving the process.
type AuditResult struct {
	ID        string
	Source    string
	Artifacts *domain.Artifacts
	Insights  *insights.Report
	Policy    config.PolicySnapshot
	StartedAt time.Time
	Duration  time.Duration
}

// AuditService runs the ingest, pipeline and insights stages with tracing,
// metrics and logging around them.
type AuditService struct {
	tracer   trace.Tracer
	metrics  *infrastructure.AuditMetrics
	pseudo   *exporter.Pseudonymizer
	exporter *exporter.Exporter
	logger   *slog.Logger
	now      func() time.Time
}

// AuditServiceOption customizes an AuditService.
type AuditServiceOption func(*AuditService)

// WithTracer sets the tracer used for stage spans.
func WithTracer(t trace.Tracer) AuditServiceOption {
	return func(s *AuditService) { s.tracer = t }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *infrastructure.AuditMetrics) AuditServiceOption {
	return func(s *AuditService) { s.metrics = m }
}

// WithExporter enables Export.
func WithExporter(e *exporter.Exporter) AuditServiceOption {
	return func(s *AuditService) { s.exporter = e }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) AuditServiceOption {
	return func(s *AuditService) { s.now = now }
}

// NewAuditService creates an audit service. pseudo hashes emails in
// insights and reports.
func NewAuditService(pseudo *exporter.Pseudonymizer, logger *slog.Logger, opts ...AuditServiceOption) *AuditService {
	if logger == nil {
		logger = slog.Default()
	}
	if pseudo == nil {
		pseudo = exporter.NewPseudonymizer("")
	}
	s := &AuditService{
		tracer: tracenoop.NewTracerProvider().Tracer(infrastructure.MeterName),
		pseudo: pseudo,
		logger: logger.With(slog.String("service", "audit")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run audits req.Source.
func (s *AuditService) Run(ctx context.Context, req AuditRequest) (result *AuditResult, err error) {
	if req.Source == nil {
		return nil, apperrors.NewAppValidationError(ErrNoSource.Error())
	}
	if req.Scenario == "" {
		req.Scenario = domain.ScenarioOrganizer
	}
	if !req.Scenario.Valid() {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("%s %q", ErrInvalidScenario, req.Scenario)).
			WithContext("allowed", domain.ScenarioIDs)
	}

	id := uuid.NewString()
	started := s.now()
	source := req.Source.Name()
	logger := s.logger.With(slog.String("audit_id", id), slog.String("source", source))

	ctx, span := s.tracer.Start(ctx, "audit.run", trace.WithAttributes(
		attribute.String("audit.id", id),
		attribute.String("audit.source", source),
		attribute.String("audit.scenario", string(req.Scenario)),
	))
	defer span.End()

	if s.metrics != nil {
		s.metrics.ActiveAuditRuns.Add(ctx, 1)
		defer s.metrics.ActiveAuditRuns.Add(ctx, -1)
	}

	stats := infrastructure.AuditRunStats{Source: source}
	defer func() {
		stats.Duration = time.Since(started)
		stats.Err = err
		s.metrics.RecordAuditRun(ctx, stats)
		if err != nil {
			infrastructure.RecordError(ctx, err)
			logger.ErrorContext(ctx, "audit failed",
				slog.String("error", err.Error()),
				slog.Duration("duration", stats.Duration))
		}
	}()

	logger.InfoContext(ctx, "audit started", slog.String("scenario", string(req.Scenario)))

	ballot, err := s.ingest(ctx, req)
	if err != nil {
		return nil, err
	}
	stats.RowsIngested = ballot.SourceRows
	stats.RowsDropped = ballot.DroppedRows
	if ballot.DroppedRows > 0 {
		logger.WarnContext(ctx, "rows dropped for unparsable timestamps",
			slog.Int("dropped_rows", ballot.DroppedRows),
			slog.Int("source_rows", ballot.SourceRows))
	}

	artifacts := s.pipeline(ctx, ballot, req.Policy)
	stats.RowsCleaned = len(artifacts.Cleaned)
	stats.Flags = flagCounts(artifacts.Summary)
	stats.HourlyOutliers = countOutliers(artifacts.HourlyOutliers)

	report := s.insights(ctx, artifacts, req)

	result = &AuditResult{
		ID:        id,
		Source:    source,
		Artifacts: artifacts,
		Insights:  report,
		Policy:    req.Policy.Snapshot(),
		StartedAt: started,
		Duration:  time.Since(started),
	}

	logger.InfoContext(ctx, "audit complete",
		slog.Int("votes", len(artifacts.FlaggedRaw)),
		slog.Int("cleaned", len(artifacts.Cleaned)),
		slog.Int("dropped_rows", artifacts.DroppedRows),
		slog.Int("hourly_outliers", stats.HourlyOutliers),
		slog.String("winner", winner(report)),
		slog.Duration("duration", result.Duration))

	return result, nil
}

func (s *AuditService) ingest(ctx context.Context, req AuditRequest) (*domain.Ballot, error) {
	ctx, span := s.tracer.Start(ctx, "audit.ingest")
	defer span.End()

	ballot, err := ingest.Read(ctx, req.Source, ingest.Options{Location: req.Location})
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("audit.source_rows", ballot.SourceRows),
		attribute.Int("audit.dropped_rows", ballot.DroppedRows),
	)
	return ballot, nil
}

func (s *AuditService) pipeline(ctx context.Context, ballot *domain.Ballot, policy config.AuditConfig) *domain.Artifacts {
	_, span := s.tracer.Start(ctx, "audit.pipeline")
	defer span.End()

	a := audit.BuildArtifacts(ballot, policy)
	span.SetAttributes(
		attribute.Int("audit.cleaned_rows", len(a.Cleaned)),
		attribute.Int("audit.night_votes", a.Summary.NightVotes),
		attribute.Int("audit.synthetic_suffix3", a.Summary.SyntheticEmailSuffix3),
	)
	return a
}

func (s *AuditService) insights(ctx context.Context, a *domain.Artifacts, req AuditRequest) *insights.Report {
	_, span := s.tracer.Start(ctx, "audit.insights")
	defer span.End()

	return insights.Build(a, insights.Options{
		Scenario:     req.Scenario,
		TopN:         req.TopN,
		FocusChoice:  req.FocusChoice,
		Pseudonymize: s.pseudo.Hash,
	})
}

// PublicReport renders res without emails.
func (s *AuditService) PublicReport(res *AuditResult) *exporter.PublicReport {
	return exporter.BuildPublicReport(res.Source, res.Artifacts, res.Insights, res.Policy, res.StartedAt)
}

// Export writes every audit file of res. It needs WithExporter.
func (s *AuditService) Export(ctx context.Context, res *AuditResult) ([]string, error) {
	if s.exporter == nil {
		return nil, apperrors.NewConfigError("no exporter configured", nil)
	}
	ctx, span := s.tracer.Start(ctx, "audit.export", trace.WithAttributes(attribute.String("audit.id", res.ID)))
	defer span.End()

	files, err := s.exporter.ExportAll(ctx, exporter.Bundle{
		Source:    res.Source,
		Artifacts: res.Artifacts,
		Report:    res.Insights,
		Policy:    res.Policy,
		Generated: res.StartedAt,
	})
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	return files, nil
}

func flagCounts(s domain.SuspicionSummary) map[string]int {
	return map[string]int{
		"global_short_delta":      s.GlobalShortDeltas,
		"choice_short_delta":      s.PerChoiceShortDeltas,
		"night_vote":              s.NightVotes,
		"suspicious_domain_typo":  s.SuspiciousDomains,
		"synthetic_email_suffix3": s.SyntheticEmailSuffix3,
	}
}

func countOutliers(hours []domain.HourlyOutlier) int {
	n := 0
	for _, h := range hours {
		if h.IsOutlier {
			n++
		}
	}
	return n
}

func winner(r *insights.Report) string {
	if r == nil || len(r.Ranking.Choices) == 0 {
		return ""
	}
	return r.Ranking.Choices[0].Choice
}
