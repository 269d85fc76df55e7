package audit

import (
	"sort"

	"ballotaudit/internal/config"
	"ballotaudit/pkg/contracts/domain"
)

// ApplyOrganizerRules evaluates the published cleaning rules.
//
// flagged holds every input row, in input order, with RuleFlags set.
// cleaned is built in this order: drop excluded days, stable sort by
// timestamp, keep the first vote per email, drop plus-suffix emails. Its
// slice position is the new sequential index; Row still names the
// canonical row.
func ApplyOrganizerRules(rows []domain.EnrichedVote, cfg config.AuditConfig) (cleaned, flagged []domain.AuditRow) {
	flagged = make([]domain.AuditRow, len(rows))
	for i, r := range rows {
		flagged[i] = domain.AuditRow{
			EnrichedVote: r,
			Rules: domain.RuleFlags{
				ExcludeDay:      cfg.IsExcludedDay(r.Day),
				PlusSuffixEmail: cfg.MatchesPlusSuffix(r.Email),
			},
		}
	}

	kept := make([]domain.AuditRow, 0, len(flagged))
	for _, r := range flagged {
		if !r.Rules.ExcludeDay {
			kept = append(kept, r)
		}
	}

	SortByTimestamp(kept)
	kept = FirstPerEmail(kept)

	cleaned = make([]domain.AuditRow, 0, len(kept))
	for _, r := range kept {
		if !r.Rules.PlusSuffixEmail {
			cleaned = append(cleaned, r)
		}
	}
	return cleaned, flagged
}

// SortByTimestamp orders rows by timestamp in place. Ties keep their
// relative order.
func SortByTimestamp(rows []domain.AuditRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
}

// FirstPerEmail keeps the first row of each email in slice order. Empty
// emails count as one address.
func FirstPerEmail(rows []domain.AuditRow) []domain.AuditRow {
	seen := make(map[string]struct{}, len(rows))
	out := make([]domain.AuditRow, 0, len(rows))
	for _, r := range rows {
		if _, dup := seen[r.Email]; dup {
			continue
		}
		seen[r.Email] = struct{}{}
		out = append(out, r)
	}
	return out
}
