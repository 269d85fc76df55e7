package insights

import (
	"sort"

	"ballotaudit/pkg/contracts/domain"
)

// Daily aggregates the flagged table per calendar date, oldest first.
// Focus fields are filled only when focusChoice is not empty.
func Daily(a *domain.Artifacts, focusChoice string) []domain.DailyStats {
	if a == nil {
		return []domain.DailyStats{}
	}

	type acc struct {
		stats  domain.DailyStats
		emails map[string]struct{}
	}
	byDate := make(map[string]*acc)
	for _, r := range a.FlaggedRaw {
		key := r.DateKey()
		d, ok := byDate[key]
		if !ok {
			d = &acc{stats: domain.DailyStats{Date: key}, emails: make(map[string]struct{})}
			byDate[key] = d
		}
		d.stats.Submissions++
		d.emails[r.Email] = struct{}{}
		if r.Suspicion.NightVote {
			d.stats.NightVotes++
		}
		if r.Suspicion.SyntheticSuffix3 {
			d.stats.SyntheticSuffix3++
		}
		if focusChoice != "" && r.Choice == focusChoice {
			d.stats.FocusVotes++
		}
	}

	out := make([]domain.DailyStats, 0, len(byDate))
	for _, d := range byDate {
		s := d.stats
		s.UniqueEmails = len(d.emails)
		s.Duplicates = s.Submissions - s.UniqueEmails
		s.Suffix3Share = share(s.SyntheticSuffix3, s.Submissions)
		if focusChoice != "" {
			s.FocusShare = share(s.FocusVotes, s.Submissions)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Heatmap counts flagged rows per date and hour. Only observed cells are
// returned, ordered by date then hour.
func Heatmap(a *domain.Artifacts) []domain.HeatmapCell {
	if a == nil {
		return []domain.HeatmapCell{}
	}

	type cell struct {
		date string
		hour int
	}
	counts := make(map[cell]int)
	for _, r := range a.FlaggedRaw {
		counts[cell{r.DateKey(), r.Hour}]++
	}

	out := make([]domain.HeatmapCell, 0, len(counts))
	for c, n := range counts {
		out = append(out, domain.HeatmapCell{Date: c.date, Hour: c.hour, Votes: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}
