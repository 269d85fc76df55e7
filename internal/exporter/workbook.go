package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"ballotaudit/internal/insights"
	"ballotaudit/pkg/contracts/domain"
)

// Workbook sheet names.
const (
	SheetCleaned = "Cleaned"
	SheetHourly  = "Hourly"
	SheetSummary = "Summary"
	SheetRanking = "Ranking"
)

// WriteWorkbook writes the audit as an XLSX workbook with one sheet per
// table. Emails are pseudonymized like in the CSV exports.
func (w *CSVWriter) WriteWorkbook(filePath string, a *domain.Artifacts, rep *insights.Report, p *Pseudonymizer) error {
	fullPath := w.ResolvePath(filePath)
	slog.Info("Writing workbook", slog.String("full_path", fullPath))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetCleaned); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeCleanedSheet(f, a.Cleaned, p); err != nil {
		return err
	}

	hourly := make([][]interface{}, len(a.HourlyOutliers))
	for i, h := range a.HourlyOutliers {
		var z interface{}
		if h.Z != nil {
			z = *h.Z
		}
		hourly[i] = []interface{}{h.Hour, h.Votes, z, h.IsOutlier}
	}
	if err := writeSheet(f, SheetHourly, HourlyHeaders, hourly); err != nil {
		return err
	}

	s := a.Summary
	summary := [][]interface{}{
		{"global_short_deltas", s.GlobalShortDeltas},
		{"per_choice_short_deltas", s.PerChoiceShortDeltas},
		{"night_votes", s.NightVotes},
		{"suspicious_domains", s.SuspiciousDomains},
		{"synthetic_email_suffix3", s.SyntheticEmailSuffix3},
		{"max_votes_same_email", s.MaxVotesSameEmail},
		{"dropped_rows", a.DroppedRows},
	}
	if err := writeSheet(f, SheetSummary, []string{"metric", "value"}, summary); err != nil {
		return err
	}

	var ranking [][]interface{}
	if rep != nil {
		for _, c := range rep.Ranking.Choices {
			ranking = append(ranking, []interface{}{c.Choice, c.Votes, c.Share})
		}
	}
	if err := writeSheet(f, SheetRanking, []string{"choice", "votes", "share"}, ranking); err != nil {
		return err
	}

	if err := f.SaveAs(fullPath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// writeCleanedSheet streams rows since the cleaned table can be large.
func writeCleanedSheet(f *excelize.File, rows []domain.AuditRow, p *Pseudonymizer) error {
	sw, err := f.NewStreamWriter(SheetCleaned)
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}

	header := make([]interface{}, len(CleanedHeaders))
	for i, h := range CleanedHeaders {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			r.Row, r.Timestamp, p.Hash(r.Email), r.EmailDomain, r.Choice,
			r.DateKey(), r.Day, r.Hour,
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	return sw.Flush()
}

func writeSheet(f *excelize.File, name string, headers []string, rows [][]interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	if err := f.SetSheetRow(name, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", name, i, err)
		}
	}
	return nil
}
