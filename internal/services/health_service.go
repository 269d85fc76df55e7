package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"ballotaudit/internal/config"
	"ballotaudit/pkg/contracts"
)

// HealthService provides health check functionality
type HealthService struct {
	paths     *config.Paths
	sheets    config.SheetsConfig
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. paths may be nil when the
// process never writes exports.
func NewHealthService(paths *config.Paths, sheets config.SheetsConfig, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", contracts.Version),
		slog.Bool("sheets_configured", sheets.SpreadsheetID != ""))

	return &HealthService{
		paths:     paths,
		sheets:    sheets,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   contracts.Version,
	}
}

// ReadinessCheck reports whether exports can be written.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Services:  make(map[string]interface{}),
	}

	status.Services["output"] = hs.checkOutputHealth()
	status.Services["sheets"] = hs.checkSheetsHealth()

	for name, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status == "not_ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "service not ready",
				slog.String("service", name),
				slog.String("message", sh.Message))
		}
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":       info.Version,
		"api_version":   info.APIVersion,
		"report_format": info.ReportFormat,
		"go_version":    info.GoVersion,
		"os":            info.OS,
		"arch":          info.Architecture,
		"build_time":    info.BuildTime,
		"git_commit":    info.GitCommit,
		"uptime":        time.Since(hs.startTime).Seconds(),
		"start_time":    hs.startTime.Format(time.RFC3339),
	}
}

// checkOutputHealth verifies the output directory is writable.
func (hs *HealthService) checkOutputHealth() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{Status: "disabled", Message: "no output directory configured"}
	}

	dir := hs.paths.OutputDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Cannot create output directory: %v", err),
		}
	}

	probe, err := os.CreateTemp(dir, ".ready-*")
	if err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Cannot write to output directory: %v", err),
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	return ServiceHealth{Status: "ready", Message: "output directory is writable"}
}

// checkSheetsHealth only checks the credentials file; reaching Google is
// left to the first audit.
func (hs *HealthService) checkSheetsHealth() ServiceHealth {
	if hs.sheets.SpreadsheetID == "" {
		return ServiceHealth{Status: "disabled", Message: ErrSheetsNotConfigured.Error()}
	}
	creds := hs.sheets.CredentialsFile
	if hs.paths != nil && !filepath.IsAbs(creds) {
		creds = filepath.Join(hs.paths.BaseDir, creds)
	}
	if !config.FileExists(creds) {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("credentials file not found: %s", creds),
		}
	}
	return ServiceHealth{Status: "ready"}
}
