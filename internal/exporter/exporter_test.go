package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ballotaudit/internal/audit"
	"ballotaudit/internal/config"
	apperrors "ballotaudit/internal/errors"
	"ballotaudit/internal/insights"
	"ballotaudit/internal/shared/testutil"
	"ballotaudit/pkg/contracts/domain"
)

type fixture = testutil.VoteFixture

func setupTestEnv(t *testing.T) (*CSVWriter, *config.Paths) {
	t.Helper()
	dir := t.TempDir()
	paths := &config.Paths{BaseDir: dir, OutputDir: filepath.Join(dir, "out")}
	return NewCSVWriter(paths), paths
}

func sampleArtifacts(t *testing.T) *domain.Artifacts {
	t.Helper()
	ballot := testutil.NewBallot(t,
		fixture{At: "2024-12-19 10:00:00", Email: "ana@gmail.com", Choice: "Noel A"},
		fixture{At: "2024-12-19 10:00:01", Email: "joao.silva123@gmail.com", Choice: "Noel B"},
		fixture{At: "2024-12-19 10:30:00", Email: "ana@gmail.com", Choice: "Noel B"},
		fixture{At: "2024-12-20 02:00:00", Email: "bia@gmail.com", Choice: "Noel, \"the\" C"},
	)
	ballot.SourceRows = 5
	ballot.DroppedRows = 1
	return audit.BuildArtifacts(ballot, config.DefaultAudit())
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, utf8BOM), "BOM prefix")
	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	return records
}

func TestPseudonymizer(t *testing.T) {
	p := NewPseudonymizer("salt")

	h := p.Hash("ana@gmail.com")
	assert.Len(t, h, PseudonymLength)
	assert.Equal(t, h, p.Hash("ana@gmail.com"), "stable")
	assert.NotEqual(t, h, p.Hash("bia@gmail.com"))
	assert.NotEqual(t, h, NewPseudonymizer("other").Hash("ana@gmail.com"), "salt changes tokens")
	assert.Equal(t, "", p.Hash(""))

	long := NewPseudonymizer(strings.Repeat("k", 200))
	assert.Len(t, long.Hash("ana@gmail.com"), PseudonymLength)
	assert.Len(t, NewPseudonymizer("").Hash("ana@gmail.com"), PseudonymLength)
}

func TestWriteSimpleCSV(t *testing.T) {
	w, paths := setupTestEnv(t)

	require.NoError(t, w.WriteSimpleCSV("nested/x.csv", []string{"a", "b"}, [][]string{{"1", "two, three"}}))

	records := readCSV(t, filepath.Join(paths.OutputDir, "nested", "x.csv"))
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "two, three"}}, records)
}

func TestResolvePath(t *testing.T) {
	w, paths := setupTestEnv(t)
	abs := filepath.Join(t.TempDir(), "a.csv")

	assert.Equal(t, abs, w.ResolvePath(abs))
	assert.Equal(t, filepath.Join(paths.OutputDir, "a.csv"), w.ResolvePath("a.csv"))
	assert.Equal(t, "a.csv", NewCSVWriter(nil).ResolvePath("a.csv"))
}

func TestStreamWriter(t *testing.T) {
	w, _ := setupTestEnv(t)

	sw, err := w.CreateStreamWriter("stream.csv", []string{"n"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, sw.WriteRecord([]string{formatInt(i)}))
	}
	assert.Equal(t, 3, sw.Rows())
	require.NoError(t, sw.Close())

	assert.Equal(t, [][]string{{"n"}, {"0"}, {"1"}, {"2"}}, readCSV(t, sw.Path()))
}

func TestWriteCleanedCSV(t *testing.T) {
	w, paths := setupTestEnv(t)
	a := sampleArtifacts(t)
	p := NewPseudonymizer("s")

	require.NoError(t, w.WriteCleanedCSV(config.CleanedCSVName, a.Cleaned, p))

	records := readCSV(t, paths.OutputPath(config.CleanedCSVName))
	assert.Equal(t, CleanedHeaders, records[0])
	require.Len(t, records, len(a.Cleaned)+1)
	assert.Equal(t, p.Hash("ana@gmail.com"), records[1][2])
	assert.Equal(t, "2024-12-19T10:00:00Z", records[1][1])

	raw, err := os.ReadFile(paths.OutputPath(config.CleanedCSVName))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "@gmail.com,", "no clear emails")
	assert.NotContains(t, string(raw), "ana@")
}

func TestWriteFlaggedCSV(t *testing.T) {
	w, paths := setupTestEnv(t)
	a := sampleArtifacts(t)

	require.NoError(t, w.WriteFlaggedCSV(config.FlaggedCSVName, a.FlaggedRaw, NewPseudonymizer("")))

	records := readCSV(t, paths.OutputPath(config.FlaggedCSVName))
	require.Len(t, records, 5)
	header := records[0]
	assert.Equal(t, FlaggedHeaders, header)

	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("missing column %s", name)
		return -1
	}

	assert.Equal(t, "", records[1][col("prev_delta_s")], "first row has no predecessor")
	assert.Equal(t, "1.000", records[2][col("prev_delta_s")])
	assert.Equal(t, "true", records[2][col("flag_global_short_delta")])
	assert.Equal(t, "true", records[2][col("flag_synthetic_email_suffix3")])
	assert.Equal(t, "true", records[4][col("exclude_day")])
	assert.Equal(t, "true", records[4][col("flag_night_vote")])
	assert.Equal(t, "Noel, \"the\" C", records[4][col("choice")])
}

func TestWriteHourlyCSV(t *testing.T) {
	w, paths := setupTestEnv(t)
	a := sampleArtifacts(t)

	require.NoError(t, w.WriteHourlyCSV(config.HourlyCSVName, a.HourlyOutliers))

	records := readCSV(t, paths.OutputPath(config.HourlyCSVName))
	assert.Equal(t, HourlyHeaders, records[0])
	require.Len(t, records, len(a.HourlyOutliers)+1)
	assert.Equal(t, "2024-12-19T10:00:00Z", records[1][0])
	assert.Equal(t, "3", records[1][1])
}

func TestWriteWorkbook(t *testing.T) {
	w, paths := setupTestEnv(t)
	a := sampleArtifacts(t)
	p := NewPseudonymizer("s")
	rep := insights.Build(a, insights.Options{Pseudonymize: p.Hash})

	require.NoError(t, w.WriteWorkbook(config.WorkbookName, a, rep, p))

	f, err := excelize.OpenFile(paths.OutputPath(config.WorkbookName))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetCleaned, SheetHourly, SheetSummary, SheetRanking}, f.GetSheetList())

	cleaned, err := f.GetRows(SheetCleaned)
	require.NoError(t, err)
	require.Len(t, cleaned, len(a.Cleaned)+1)
	assert.Equal(t, p.Hash("ana@gmail.com"), cleaned[1][2])

	ranking, err := f.GetRows(SheetRanking)
	require.NoError(t, err)
	assert.Equal(t, []string{"choice", "votes", "share"}, ranking[0])
	assert.Len(t, ranking, len(rep.Ranking.Choices)+1)

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"dropped_rows", "1"}, summary[len(summary)-1])
}

func TestPublicReport(t *testing.T) {
	a := sampleArtifacts(t)
	p := NewPseudonymizer("s")
	rep := insights.Build(a, insights.Options{Pseudonymize: p.Hash})
	now := time.Date(2024, 12, 23, 8, 0, 0, 0, time.UTC)

	r := BuildPublicReport("votes.csv", a, rep, config.DefaultAudit().Snapshot(), now)
	assert.Equal(t, 5, r.SourceRows)
	assert.Equal(t, 1, r.DroppedRows)
	assert.Equal(t, []int{20, 21, 22}, r.Rules.ExcludedDays)
	require.Len(t, r.RepeatEmails, 1)
	assert.Equal(t, p.Hash("ana@gmail.com"), r.RepeatEmails[0].Email)

	var buf bytes.Buffer
	require.NoError(t, EncodePublicReport(&buf, r))
	assert.NotContains(t, buf.String(), "@gmail.com\"", "no emails in public report")
	assert.NotContains(t, buf.String(), "ana@")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "2024-12-23T08:00:00Z", decoded["generated_at"])
	assert.Contains(t, decoded, "scenarios")
	assert.Contains(t, decoded, "hourly_outliers")

	empty := BuildPublicReport("", nil, nil, config.PolicySnapshot{}, now)
	assert.NotNil(t, empty.HourlyOutliers)
}

func TestExportAll(t *testing.T) {
	_, paths := setupTestEnv(t)
	logger, logs := testutil.NewTestLogger(t)
	exp := NewExporter(paths, NewPseudonymizer("s"), logger)

	files, err := exp.ExportAll(context.Background(), Bundle{
		Source:    "votes.csv",
		Artifacts: sampleArtifacts(t),
		Policy:    config.DefaultAudit().Snapshot(),
		Generated: time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, files, 5)
	for _, name := range []string{
		config.CleanedCSVName, config.FlaggedCSVName, config.HourlyCSVName,
		config.WorkbookName, config.PublicReportName,
	} {
		assert.FileExists(t, paths.OutputPath(name))
	}
	assert.True(t, logs.ContainsMessage("export complete"))
}

func TestExportAllStorageError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	logger, _ := testutil.NewTestLogger(t)
	exp := NewExporter(&config.Paths{OutputDir: filepath.Join(blocker, "out")}, nil, logger)

	_, err := exp.ExportAll(context.Background(), Bundle{Artifacts: sampleArtifacts(t)})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeStorage))
}

func TestExportAllCancelled(t *testing.T) {
	_, paths := setupTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExporter(paths, nil, nil).ExportAll(ctx, Bundle{Artifacts: sampleArtifacts(t)})
	assert.ErrorIs(t, err, context.Canceled)
}
