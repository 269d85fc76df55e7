package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ballotaudit/internal/config"
	"ballotaudit/internal/insights"
	"ballotaudit/pkg/contracts/domain"
)

// ReportTitle heads every public report.
const ReportTitle = "Vote audit"

// PublicReport is the shareable audit summary. It carries aggregates only;
// repeat emails are pseudonymized before they get here.
type PublicReport struct {
	Title                string                      `json:"title"`
	GeneratedAt          time.Time                   `json:"generated_at"`
	Source               string                      `json:"source,omitempty"`
	Rules                config.PolicySnapshot       `json:"rules"`
	SourceRows           int                         `json:"source_rows"`
	DroppedRows          int                         `json:"dropped_rows"`
	Scenario             domain.ScenarioID           `json:"scenario"`
	Ranking              domain.Ranking              `json:"ranking"`
	Scenarios            []domain.ScenarioResult     `json:"scenarios"`
	Funnel               []domain.FunnelStage        `json:"funnel"`
	Summary              domain.SuspicionSummary     `json:"summary"`
	Quality              domain.QualityMetrics       `json:"quality"`
	PatternConcentration domain.PatternConcentration `json:"pattern_concentration"`
	Daily                []domain.DailyStats         `json:"daily"`
	Heatmap              []domain.HeatmapCell        `json:"heatmap"`
	HourlyOutliers       []domain.HourlyOutlier      `json:"hourly_outliers"`
	Domains              []domain.Count              `json:"domains"`
	RepeatEmails         []domain.RepeatEmail        `json:"repeat_emails"`
	OriginClusters       []domain.OriginCluster      `json:"origin_clusters"`
}

// BuildPublicReport assembles the report of one run. rep must have been
// built with a Pseudonymize function.
func BuildPublicReport(source string, a *domain.Artifacts, rep *insights.Report, policy config.PolicySnapshot, now time.Time) *PublicReport {
	if a == nil {
		a = &domain.Artifacts{}
	}
	if rep == nil {
		rep = insights.Build(a, insights.Options{})
	}

	sourceRows := 0
	if a.Raw != nil {
		sourceRows = a.Raw.SourceRows
	}
	hourly := a.HourlyOutliers
	if hourly == nil {
		hourly = []domain.HourlyOutlier{}
	}

	return &PublicReport{
		Title:                ReportTitle,
		GeneratedAt:          now.UTC().Truncate(time.Second),
		Source:               source,
		Rules:                policy,
		SourceRows:           sourceRows,
		DroppedRows:          a.DroppedRows,
		Scenario:             rep.Scenario,
		Ranking:              rep.Ranking,
		Scenarios:            rep.Scenarios,
		Funnel:               rep.Funnel,
		Summary:              a.Summary,
		Quality:              rep.Quality,
		PatternConcentration: rep.PatternConcentration,
		Daily:                rep.Daily,
		Heatmap:              rep.Heatmap,
		HourlyOutliers:       hourly,
		Domains:              rep.Domains,
		RepeatEmails:         rep.RepeatEmails,
		OriginClusters:       rep.OriginClusters,
	}
}

// EncodePublicReport writes r as indented JSON.
func EncodePublicReport(out io.Writer, r *PublicReport) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// WritePublicReport writes r to filePath.
func (w *CSVWriter) WritePublicReport(filePath string, r *PublicReport) error {
	fullPath := w.ResolvePath(filePath)
	slog.Info("Writing public report", slog.String("full_path", fullPath))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := EncodePublicReport(file, r); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return file.Close()
}
