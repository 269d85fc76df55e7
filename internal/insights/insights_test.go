package insights

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ballotaudit/internal/audit"
	"ballotaudit/internal/config"
	"ballotaudit/internal/shared/testutil"
	"ballotaudit/pkg/contracts/domain"
)

type vf = testutil.VoteFixture

// fixture covers every rule: an excluded day, a duplicate, a plus-suffix
// address, synthetic suffix-3 addresses, a domain typo and a night vote.
func fixture(t *testing.T) *domain.Artifacts {
	t.Helper()
	ballot := testutil.NewBallot(t,
		vf{At: "2024-12-19 10:00:00", Email: "ana@gmail.com", Choice: "Noel A"},
		vf{At: "2024-12-19 10:05:00", Email: "bia@gmail.com", Choice: "Noel B"},
		vf{At: "2024-12-19 10:10:00", Email: "ana@gmail.com", Choice: "Noel B"},
		vf{At: "2024-12-19 11:00:00", Email: "joao.silva123@gmail.com", Choice: "Noel B"},
		vf{At: "2024-12-19 11:10:00", Email: "maria.souza456@gmail.com", Choice: "Noel B"},
		vf{At: "2024-12-19 11:20:00", Email: "caio@gmail.con", Choice: "Noel C"},
		vf{At: "2024-12-19 11:30:00", Email: "rui.lima+123@gmail.com", Choice: "Noel C"},
		vf{At: "2024-12-20 12:00:00", Email: "dan@gmail.com", Choice: "Noel A"},
		vf{At: "2024-12-21 03:00:00", Email: "eva@yahoo.com", Choice: "Noel A"},
	)
	return audit.BuildArtifacts(ballot, config.DefaultAudit())
}

func emailsOf(rows []domain.AuditRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Email
	}
	return out
}

func TestScenarios(t *testing.T) {
	a := fixture(t)
	sets := Scenarios(a)

	assert.Equal(t, []string{
		"ana@gmail.com", "bia@gmail.com", "joao.silva123@gmail.com",
		"maria.souza456@gmail.com", "caio@gmail.con",
	}, emailsOf(sets[domain.ScenarioOrganizer]))

	assert.Equal(t, []string{
		"ana@gmail.com", "bia@gmail.com", "caio@gmail.con", "rui.lima+123@gmail.com",
	}, emailsOf(sets[domain.ScenarioAntiBot]), "suffix-3 removed, plus-suffix kept")

	assert.Equal(t, []string{"ana@gmail.com", "bia@gmail.com"}, emailsOf(sets[domain.ScenarioStrict]))

	for _, id := range domain.ScenarioIDs {
		assert.NotNil(t, ScenarioRows(a, id))
	}
	assert.Nil(t, ScenarioRows(a, "Z"))
}

func TestScenariosKeepEarliestVote(t *testing.T) {
	ballot := testutil.NewBallot(t,
		vf{At: "2024-12-19 12:00:00", Email: "ana@gmail.com", Choice: "late"},
		vf{At: "2024-12-19 09:00:00", Email: "ana@gmail.com", Choice: "early"},
	)
	a := audit.BuildArtifacts(ballot, config.DefaultAudit())

	b := Scenarios(a)[domain.ScenarioAntiBot]
	require.Len(t, b, 1)
	assert.Equal(t, "early", b[0].Choice)
}

func TestRank(t *testing.T) {
	a := fixture(t)
	rows := Scenarios(a)[domain.ScenarioOrganizer]

	r := Rank(rows, 0)
	assert.Equal(t, 5, r.Total)
	require.Len(t, r.Choices, 3)
	assert.Equal(t, domain.RankedChoice{Choice: "Noel B", Votes: 3, Share: 0.6}, r.Choices[0])
	assert.Equal(t, "Noel A", r.Choices[1].Choice, "ties broken by name")
	assert.Equal(t, "Noel C", r.Choices[2].Choice)

	top := Rank(rows, 1)
	assert.Equal(t, 5, top.Total, "total covers all rows")
	assert.Len(t, top.Choices, 1)

	empty := Rank(nil, 5)
	assert.Equal(t, 0, empty.Total)
	assert.Empty(t, empty.Choices)
}

func TestCompareScenarios(t *testing.T) {
	got := CompareScenarios(fixture(t), DefaultRankTop)
	require.Len(t, got, 3)

	assert.Equal(t, domain.ScenarioOrganizer, got[0].Scenario)
	assert.Equal(t, "Noel B", got[0].Winner)
	assert.Equal(t, 3, got[0].WinnerVotes)

	assert.Equal(t, domain.ScenarioStrict, got[2].Scenario)
	assert.Equal(t, 2, got[2].Total)
	assert.Equal(t, "Noel A", got[2].Winner)
	assert.InDelta(t, 0.5, got[2].WinnerShare, 1e-9)

	none := CompareScenarios(nil, 3)
	require.Len(t, none, 3)
	assert.Equal(t, "", none[0].Winner)
}

func TestFunnel(t *testing.T) {
	got := Funnel(fixture(t))
	assert.Equal(t, []domain.FunnelStage{
		{Stage: "raw", Votes: 9},
		{Stage: "after_excluded_days", Votes: 7},
		{Stage: "after_email_dedupe", Votes: 6},
		{Stage: "final", Votes: 5},
	}, got)

	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i].Votes, got[i-1].Votes)
	}
}

func TestDaily(t *testing.T) {
	got := Daily(fixture(t), "Noel A")
	require.Len(t, got, 3)

	d := got[0]
	assert.Equal(t, "2024-12-19", d.Date)
	assert.Equal(t, 7, d.Submissions)
	assert.Equal(t, 6, d.UniqueEmails)
	assert.Equal(t, 1, d.Duplicates)
	assert.Equal(t, 2, d.SyntheticSuffix3)
	assert.InDelta(t, 2.0/7.0, d.Suffix3Share, 1e-9)
	assert.Equal(t, 1, d.FocusVotes)

	assert.Equal(t, "2024-12-21", got[2].Date)
	assert.Equal(t, 1, got[2].NightVotes)

	noFocus := Daily(fixture(t), "")
	assert.Zero(t, noFocus[0].FocusVotes)
	assert.Zero(t, noFocus[0].FocusShare)
}

func TestHeatmap(t *testing.T) {
	got := Heatmap(fixture(t))
	assert.Equal(t, domain.HeatmapCell{Date: "2024-12-19", Hour: 10, Votes: 3}, got[0])
	assert.Equal(t, domain.HeatmapCell{Date: "2024-12-19", Hour: 11, Votes: 4}, got[1])
	assert.Equal(t, domain.HeatmapCell{Date: "2024-12-21", Hour: 3, Votes: 1}, got[len(got)-1])

	total := 0
	for _, c := range got {
		total += c.Votes
	}
	assert.Equal(t, 9, total)
}

func TestDomains(t *testing.T) {
	got := Domains(fixture(t), 2)
	assert.Equal(t, []domain.Count{
		{Key: "gmail.com", Votes: 7},
		{Key: "gmail.con", Votes: 1},
	}, got)
}

func TestRepeatEmails(t *testing.T) {
	a := fixture(t)

	got := RepeatEmails(a, 10, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "ana@gmail.com", got[0].Email)
	assert.Equal(t, 2, got[0].Votes)
	assert.Equal(t, 2, got[0].Choices)
	assert.Equal(t, "2024-12-19T10:00:00Z", got[0].FirstVote)
	assert.Equal(t, "2024-12-19T10:10:00Z", got[0].LastVote)

	hashed := RepeatEmails(a, 10, func(string) string { return "h1" })
	assert.Equal(t, "h1", hashed[0].Email)
}

func TestOriginClusters(t *testing.T) {
	ballot := testutil.NewBallot(t,
		vf{At: "2024-12-19 10:00:00", Email: "a@x.com", Choice: "A"},
		vf{At: "2024-12-19 10:00:01", Email: "b@x.com", Choice: "A"},
		vf{At: "2024-12-19 10:00:02", Email: "b@x.com", Choice: "A"},
		vf{At: "2024-12-19 10:00:03", Email: "c@x.com", Choice: "B"},
	)
	ballot.ExtraColumns = []string{"IP", "city"}
	extras := [][]string{{"10.0.0.1", "Rio"}, {"10.0.0.1", "Rio"}, {"10.0.0.1", "Rio"}, {"", "Niterói"}}
	for i := range ballot.Votes {
		ballot.Votes[i].Extra = extras[i]
	}
	a := audit.BuildArtifacts(ballot, config.DefaultAudit())

	assert.Equal(t, []string{"IP"}, OriginColumns(ballot))

	got := OriginClusters(a, 0)
	assert.Equal(t, []domain.OriginCluster{
		{Column: "IP", Value: "10.0.0.1", Votes: 3, UniqueEmails: 2},
	}, got)

	assert.Empty(t, OriginClusters(fixture(t), 0), "no origin columns")
}

func TestPatternConcentration(t *testing.T) {
	got := PatternConcentration(fixture(t))
	assert.Equal(t, domain.PatternConcentration{
		PatternVotes: 2, TopChoice: "Noel B", TopVotes: 2, TopShare: 1,
	}, got)

	assert.Equal(t, domain.PatternConcentration{}, PatternConcentration(nil))
}

func TestQuality(t *testing.T) {
	assert.Equal(t, domain.QualityMetrics{
		ExcludedDayRows: 2,
		DuplicateRows:   1,
		PlusPatternRows: 1,
		Suffix3Rows:     2,
	}, Quality(fixture(t)))
}

func TestSuspiciousRows(t *testing.T) {
	a := fixture(t)

	got := SuspiciousRows(a, 0)
	require.NotEmpty(t, got)
	for i, r := range got {
		assert.True(t, r.Suspicion.Any())
		if i > 0 {
			assert.False(t, r.Timestamp.After(got[i-1].Timestamp), "newest first")
		}
	}
	assert.Equal(t, "eva@yahoo.com", got[0].Email)

	assert.Len(t, SuspiciousRows(a, 1), 1)
	assert.NotNil(t, SuspiciousRows(nil, 10))
}

func TestBuild(t *testing.T) {
	a := fixture(t)
	r := Build(a, Options{
		Scenario:     domain.ScenarioStrict,
		FocusChoice:  "Noel B",
		Pseudonymize: strings.ToUpper,
	})

	assert.Equal(t, domain.ScenarioStrict, r.Scenario)
	assert.Equal(t, 2, r.Ranking.Total)
	assert.Len(t, r.Scenarios, 3)
	assert.Equal(t, "ANA@GMAIL.COM", r.RepeatEmails[0].Email)
	assert.Equal(t, 4, r.Daily[0].FocusVotes)

	empty := Build(nil, Options{})
	assert.Equal(t, domain.ScenarioOrganizer, empty.Scenario)
	assert.Equal(t, 0, empty.Ranking.Total)
	assert.Empty(t, empty.Daily)
}
