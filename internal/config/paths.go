package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Well-known export file names.
const (
	CleanedCSVName   = "cleaned_votes.csv"
	FlaggedCSVName   = "flagged_votes.csv"
	HourlyCSVName    = "hourly_outliers.csv"
	WorkbookName     = "audit.xlsx"
	PublicReportName = "analysis.json"
)

// Paths contains the resolved file system locations of one run.
type Paths struct {
	BaseDir   string
	DataDir   string
	OutputDir string
	LogsDir   string
}

// GetPaths resolves cfg against baseDir. Absolute entries are kept as-is.
func GetPaths(baseDir string, cfg PathsConfig) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}

	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	return &Paths{
		BaseDir:   baseDir,
		DataDir:   resolve(cfg.DataDir),
		OutputDir: resolve(cfg.OutputDir),
		LogsDir:   resolve(cfg.LogsDir),
	}, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.OutputDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// OutputPath returns filename inside the output directory.
func (p *Paths) OutputPath(filename string) string {
	return filepath.Join(p.OutputDir, filename)
}

// DataPath returns filename inside the data directory.
func (p *Paths) DataPath(filename string) string {
	return filepath.Join(p.DataDir, filename)
}

// LogValue groups the directories for structured logging.
func (p *Paths) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base", p.BaseDir),
		slog.String("data", p.DataDir),
		slog.String("output", p.OutputDir),
		slog.String("logs", p.LogsDir),
	)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
