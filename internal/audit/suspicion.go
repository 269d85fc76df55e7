package audit

import (
	"sort"

	"ballotaudit/internal/config"
	"ballotaudit/pkg/contracts/domain"
)

// rowSignal sets one row-local flag. Signals never look at other rows.
type rowSignal func(cfg config.AuditConfig, r *domain.AuditRow)

var rowSignals = []rowSignal{
	func(cfg config.AuditConfig, r *domain.AuditRow) {
		r.Suspicion.NightVote = cfg.IsNightHour(r.Hour)
	},
	func(cfg config.AuditConfig, r *domain.AuditRow) {
		r.Suspicion.DomainTypo = cfg.MatchesDomainTypo(r.Email)
	},
	func(cfg config.AuditConfig, r *domain.AuditRow) {
		r.Suspicion.SyntheticSuffix3 = cfg.MatchesSuffix3(r.Email)
	},
}

// FlagSuspicious returns a copy of rows, in the same order, with every
// suspicion flag set.
//
// Gaps are measured in stable timestamp order: globally, and among rows
// with the same choice. A row without a predecessor has an infinite gap and
// is never flagged. A gap equal to the threshold is flagged, so identical
// timestamps always are.
func FlagSuspicious(rows []domain.AuditRow, cfg config.AuditConfig) []domain.AuditRow {
	out := make([]domain.AuditRow, len(rows))
	copy(out, rows)

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return out[order[a]].Timestamp.Before(out[order[b]].Timestamp)
	})

	var prev *domain.AuditRow
	lastByChoice := make(map[string]*domain.AuditRow)
	for _, idx := range order {
		r := &out[idx]
		r.Suspicion = domain.SuspicionFlags{}

		if prev != nil {
			d := r.Timestamp.Sub(prev.Timestamp).Seconds()
			r.Suspicion.PrevDeltaSeconds = &d
			r.Suspicion.GlobalShortDelta = d <= cfg.MinGlobalDelta()
		}
		prev = r

		if last, ok := lastByChoice[r.Choice]; ok {
			d := r.Timestamp.Sub(last.Timestamp).Seconds()
			r.Suspicion.ChoicePrevDeltaSeconds = &d
			r.Suspicion.ChoiceShortDelta = d <= cfg.MinPerChoiceDelta()
		}
		lastByChoice[r.Choice] = r
	}

	for i := range out {
		for _, signal := range rowSignals {
			signal(cfg, &out[i])
		}
	}
	return out
}

// Summarize counts each suspicion flag and the largest number of rows
// sharing one email.
func Summarize(rows []domain.AuditRow) domain.SuspicionSummary {
	var s domain.SuspicionSummary
	perEmail := make(map[string]int)
	for _, r := range rows {
		if r.Suspicion.GlobalShortDelta {
			s.GlobalShortDeltas++
		}
		if r.Suspicion.ChoiceShortDelta {
			s.PerChoiceShortDeltas++
		}
		if r.Suspicion.NightVote {
			s.NightVotes++
		}
		if r.Suspicion.DomainTypo {
			s.SuspiciousDomains++
		}
		if r.Suspicion.SyntheticSuffix3 {
			s.SyntheticEmailSuffix3++
		}

		perEmail[r.Email]++
		if perEmail[r.Email] > s.MaxVotesSameEmail {
			s.MaxVotesSameEmail = perEmail[r.Email]
		}
	}
	return s
}
