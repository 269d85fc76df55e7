package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileValidator_ValidateVoteTable(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("Carimbo,Email,Voto\n"), 0644))
		return path
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.csv"), 0755))

	tests := []struct {
		name          string
		path          string
		errorContains string
	}{
		{name: "csv", path: write("votes.csv")},
		{name: "upper case xlsx", path: write("VOTES.XLSX")},
		{name: "tsv", path: write("votes.tsv")},
		{name: "json", path: write("votes.json"), errorContains: "unsupported extension"},
		{name: "lock file", path: write("~$votes.xlsx"), errorContains: "lock file"},
		{name: "missing", path: filepath.Join(dir, "missing.csv"), errorContains: "does not exist"},
		{name: "directory", path: filepath.Join(dir, "folder.csv"), errorContains: "is a directory"},
	}

	v := NewFileValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateVoteTable(tt.path)
			if tt.errorContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	v := NewFileValidator(nil)

	t.Run("creates nested directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")
		require.NoError(t, v.ValidateOutputDirectory(dir))
		assert.DirExists(t, dir)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "write probe must be removed")
	})

	t.Run("path is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "out")
		require.NoError(t, os.WriteFile(file, nil, 0644))

		err := v.ValidateOutputDirectory(file)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create output directory")
	})
}
