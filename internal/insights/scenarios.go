package insights

import (
	"sort"

	"ballotaudit/internal/audit"
	"ballotaudit/pkg/contracts/domain"
)

// Default list sizes used by reports.
const (
	DefaultRankTop         = 12
	DefaultDomainTop       = 15
	DefaultRepeatTop       = 50
	DefaultClusterTop      = 50
	DefaultSuspiciousLimit = 500
)

// Scenarios returns the counted rows of every scenario.
//
// A is the organizer's cleaned table. B starts from the flagged table,
// drops excluded days and synthetic suffix-3 emails, then keeps the first
// vote per email in timestamp order. C additionally drops domain typos and
// plus-suffix emails. Those flags depend only on the email, so filtering
// before or after the dedupe gives the same rows.
func Scenarios(a *domain.Artifacts) map[domain.ScenarioID][]domain.AuditRow {
	if a == nil {
		a = &domain.Artifacts{}
	}

	antiBot := firstPerEmail(a.FlaggedRaw, func(r domain.AuditRow) bool {
		return !r.Rules.ExcludeDay && !r.Suspicion.SyntheticSuffix3
	})
	strict := make([]domain.AuditRow, 0, len(antiBot))
	for _, r := range antiBot {
		if !r.Suspicion.DomainTypo && !r.Rules.PlusSuffixEmail {
			strict = append(strict, r)
		}
	}

	organizer := a.Cleaned
	if organizer == nil {
		organizer = []domain.AuditRow{}
	}

	return map[domain.ScenarioID][]domain.AuditRow{
		domain.ScenarioOrganizer: organizer,
		domain.ScenarioAntiBot:   antiBot,
		domain.ScenarioStrict:    strict,
	}
}

// ScenarioRows returns the rows of a single scenario, or nil for an
// unknown id.
func ScenarioRows(a *domain.Artifacts, id domain.ScenarioID) []domain.AuditRow {
	if !id.Valid() {
		return nil
	}
	return Scenarios(a)[id]
}

func firstPerEmail(rows []domain.AuditRow, keep func(domain.AuditRow) bool) []domain.AuditRow {
	kept := make([]domain.AuditRow, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			kept = append(kept, r)
		}
	}
	audit.SortByTimestamp(kept)
	return audit.FirstPerEmail(kept)
}

// Rank counts votes per choice. Choices are ordered by votes, then by
// name. topN <= 0 keeps every choice; Total always covers all rows.
func Rank(rows []domain.AuditRow, topN int) domain.Ranking {
	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.Choice]++
	}

	total := len(rows)
	choices := make([]domain.RankedChoice, 0, len(counts))
	for choice, votes := range counts {
		choices = append(choices, domain.RankedChoice{
			Choice: choice,
			Votes:  votes,
			Share:  share(votes, total),
		})
	}
	sort.Slice(choices, func(i, j int) bool {
		if choices[i].Votes != choices[j].Votes {
			return choices[i].Votes > choices[j].Votes
		}
		return choices[i].Choice < choices[j].Choice
	})

	if topN > 0 && len(choices) > topN {
		choices = choices[:topN]
	}
	return domain.Ranking{Total: total, Choices: choices}
}

// CompareScenarios ranks every scenario and names its winner. Results
// follow domain.ScenarioIDs order.
func CompareScenarios(a *domain.Artifacts, topN int) []domain.ScenarioResult {
	sets := Scenarios(a)
	out := make([]domain.ScenarioResult, 0, len(domain.ScenarioIDs))
	for _, id := range domain.ScenarioIDs {
		out = append(out, ScenarioResultFor(id, sets[id], topN))
	}
	return out
}

// ScenarioResultFor ranks rows as scenario id.
func ScenarioResultFor(id domain.ScenarioID, rows []domain.AuditRow, topN int) domain.ScenarioResult {
	ranking := Rank(rows, topN)
	res := domain.ScenarioResult{
		Scenario: id,
		Label:    id.Label(),
		Total:    ranking.Total,
		Ranking:  ranking,
	}
	if len(ranking.Choices) > 0 {
		top := ranking.Choices[0]
		res.Winner, res.WinnerVotes, res.WinnerShare = top.Choice, top.Votes, top.Share
	}
	return res
}

// Funnel reports how many rows survive each organizer rule.
func Funnel(a *domain.Artifacts) []domain.FunnelStage {
	if a == nil {
		a = &domain.Artifacts{}
	}

	notExcluded := 0
	for _, r := range a.FlaggedRaw {
		if !r.Rules.ExcludeDay {
			notExcluded++
		}
	}
	deduped := firstPerEmail(a.FlaggedRaw, func(r domain.AuditRow) bool { return !r.Rules.ExcludeDay })

	return []domain.FunnelStage{
		{Stage: "raw", Votes: len(a.FlaggedRaw)},
		{Stage: "after_excluded_days", Votes: notExcluded},
		{Stage: "after_email_dedupe", Votes: len(deduped)},
		{Stage: "final", Votes: len(a.Cleaned)},
	}
}

func share(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
