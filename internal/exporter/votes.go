package exporter

import (
	"fmt"

	"ballotaudit/pkg/contracts/domain"
)

// Column layouts of the vote exports. The raw email never appears; it is
// replaced by email_hash.
var (
	CleanedHeaders = []string{
		"row", "timestamp", "email_hash", "email_domain", "choice",
		"date", "day", "hour",
	}
	FlaggedHeaders = append(append([]string{}, CleanedHeaders...),
		"exclude_day",
		"suspicious_email_plus_3dig_gmail",
		"prev_delta_s",
		"choice_prev_delta_s",
		"flag_global_short_delta",
		"flag_choice_short_delta",
		"flag_night_vote",
		"flag_suspicious_domain_typo",
		"flag_synthetic_email_suffix3",
	)
	HourlyHeaders = []string{"hour_bucket", "votes", "z", "is_outlier"}
)

func voteRecord(r domain.AuditRow, p *Pseudonymizer) []string {
	return []string{
		formatInt(r.Row),
		formatTime(r.Timestamp),
		p.Hash(r.Email),
		r.EmailDomain,
		r.Choice,
		r.DateKey(),
		formatInt(r.Day),
		formatInt(r.Hour),
	}
}

func flaggedRecord(r domain.AuditRow, p *Pseudonymizer) []string {
	s := r.Suspicion
	return append(voteRecord(r, p),
		formatBool(r.Rules.ExcludeDay),
		formatBool(r.Rules.PlusSuffixEmail),
		formatDelta(s.PrevDeltaSeconds),
		formatDelta(s.ChoicePrevDeltaSeconds),
		formatBool(s.GlobalShortDelta),
		formatBool(s.ChoiceShortDelta),
		formatBool(s.NightVote),
		formatBool(s.DomainTypo),
		formatBool(s.SyntheticSuffix3),
	)
}

func hourlyRecord(h domain.HourlyOutlier) []string {
	z := ""
	if h.Z != nil {
		z = formatFloat(*h.Z)
	}
	return []string{formatTime(h.Hour), formatInt(h.Votes), z, formatBool(h.IsOutlier)}
}

// WriteCleanedCSV streams the cleaned table to filePath.
func (w *CSVWriter) WriteCleanedCSV(filePath string, rows []domain.AuditRow, p *Pseudonymizer) error {
	return w.streamRows(filePath, CleanedHeaders, len(rows), func(i int) []string {
		return voteRecord(rows[i], p)
	})
}

// WriteFlaggedCSV streams the flagged raw table with every flag column.
func (w *CSVWriter) WriteFlaggedCSV(filePath string, rows []domain.AuditRow, p *Pseudonymizer) error {
	return w.streamRows(filePath, FlaggedHeaders, len(rows), func(i int) []string {
		return flaggedRecord(rows[i], p)
	})
}

// WriteHourlyCSV writes the scored hourly table.
func (w *CSVWriter) WriteHourlyCSV(filePath string, hours []domain.HourlyOutlier) error {
	records := make([][]string, len(hours))
	for i, h := range hours {
		records[i] = hourlyRecord(h)
	}
	return w.WriteSimpleCSV(filePath, HourlyHeaders, records)
}

func (w *CSVWriter) streamRows(filePath string, headers []string, n int, record func(int) []string) error {
	sw, err := w.CreateStreamWriter(filePath, headers)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := sw.WriteRecord(record(i)); err != nil {
			sw.Close()
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	return sw.Close()
}
