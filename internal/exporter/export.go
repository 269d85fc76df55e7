package exporter

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ballotaudit/internal/config"
	apperrors "ballotaudit/internal/errors"
	"ballotaudit/internal/insights"
	"ballotaudit/pkg/contracts/domain"
)

// Bundle is everything one export run writes.
type Bundle struct {
	Source    string
	Artifacts *domain.Artifacts
	Report    *insights.Report
	Policy    config.PolicySnapshot
	Generated time.Time
}

// Exporter writes all audit files of a run into the output directory.
type Exporter struct {
	writer *CSVWriter
	pseudo *Pseudonymizer
	logger *slog.Logger
}

// NewExporter creates an exporter writing under paths.
func NewExporter(paths *config.Paths, pseudo *Pseudonymizer, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if pseudo == nil {
		pseudo = NewPseudonymizer("")
	}
	return &Exporter{
		writer: NewCSVWriter(paths),
		pseudo: pseudo,
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// Pseudonymizer returns the email hasher used by exports.
func (e *Exporter) Pseudonymizer() *Pseudonymizer { return e.pseudo }

// ExportAll writes the cleaned, flagged and hourly CSVs, the workbook and
// the public report concurrently. It returns the written paths sorted, or
// the first failure as a storage error.
func (e *Exporter) ExportAll(ctx context.Context, b Bundle) ([]string, error) {
	a := b.Artifacts
	if a == nil {
		a = &domain.Artifacts{}
	}
	rep := b.Report
	if rep == nil {
		rep = insights.Build(a, insights.Options{Pseudonymize: e.pseudo.Hash})
	}

	var (
		mu      sync.Mutex
		written []string
	)
	jobs := map[string]func(string) error{
		config.CleanedCSVName: func(p string) error { return e.writer.WriteCleanedCSV(p, a.Cleaned, e.pseudo) },
		config.FlaggedCSVName: func(p string) error { return e.writer.WriteFlaggedCSV(p, a.FlaggedRaw, e.pseudo) },
		config.HourlyCSVName:  func(p string) error { return e.writer.WriteHourlyCSV(p, a.HourlyOutliers) },
		config.WorkbookName:   func(p string) error { return e.writer.WriteWorkbook(p, a, rep, e.pseudo) },
		config.PublicReportName: func(p string) error {
			return e.writer.WritePublicReport(p, BuildPublicReport(b.Source, a, rep, b.Policy, b.Generated))
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, write := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := e.writer.ResolvePath(name)
			if err := write(name); err != nil {
				return apperrors.NewStorageError("failed to write "+name, err).
					WithContext("path", path)
			}
			mu.Lock()
			written = append(written, path)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.ErrorContext(ctx, "export failed", slog.String("error", err.Error()))
		return nil, err
	}

	sort.Strings(written)
	e.logger.InfoContext(ctx, "export complete", slog.Int("files", len(written)))
	return written, nil
}
