package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ballotaudit/internal/config"
	"ballotaudit/internal/shared/testutil"
	"ballotaudit/pkg/contracts"
)

func TestHealthService(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	dir := t.TempDir()
	paths := &config.Paths{BaseDir: dir, OutputDir: filepath.Join(dir, "out")}
	hs := NewHealthService(paths, config.SheetsConfig{}, logger)
	ctx := context.Background()

	t.Run("health", func(t *testing.T) {
		status := hs.HealthCheck(ctx)
		assert.Equal(t, "ok", status.Status)
		assert.Equal(t, contracts.Version, status.Version)
	})

	t.Run("liveness", func(t *testing.T) {
		status := hs.LivenessCheck(ctx)
		assert.Equal(t, "alive", status.Status)
		assert.Contains(t, status.Runtime, "goroutines")
	})

	t.Run("readiness", func(t *testing.T) {
		status := hs.ReadinessCheck(ctx)
		assert.Equal(t, "ready", status.Status)
		assert.Equal(t, "ready", status.Services["output"].(ServiceHealth).Status)
		assert.Equal(t, "disabled", status.Services["sheets"].(ServiceHealth).Status)
		assert.DirExists(t, paths.OutputDir)

		entries, err := os.ReadDir(paths.OutputDir)
		require.NoError(t, err)
		assert.Empty(t, entries, "probe file must be removed")
	})

	t.Run("version", func(t *testing.T) {
		v := hs.Version()
		assert.Equal(t, contracts.Version, v["version"])
		assert.Equal(t, contracts.APIVersion, v["api_version"])
	})
}

func TestReadinessMissingCredentials(t *testing.T) {
	dir := t.TempDir()
	paths := &config.Paths{BaseDir: dir, OutputDir: filepath.Join(dir, "out")}
	hs := NewHealthService(paths, config.SheetsConfig{SpreadsheetID: "sheet-1", CredentialsFile: "credentials.json"}, nil)

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", status.Status)
	assert.Equal(t, "not_ready", status.Services["sheets"].(ServiceHealth).Status)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "credentials.json"), []byte("{}"), 0600))
	status = hs.ReadinessCheck(context.Background())
	assert.Equal(t, "ready", status.Status)
}

func TestReadinessBlockedOutput(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	hs := NewHealthService(&config.Paths{BaseDir: dir, OutputDir: filepath.Join(blocker, "out")}, config.SheetsConfig{}, nil)
	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", status.Status)
}
