package insights

import (
	"sort"
	"strings"
	"time"

	"ballotaudit/pkg/contracts/domain"
)

// Origin column names recognised case-insensitively among passthrough
// columns.
var (
	IPColumns     = []string{"ip", "ip_address", "ipaddress", "endereco_ip", "endereço ip"}
	AgentColumns  = []string{"user_agent", "user-agent", "useragent", "ua", "navegador"}
	DeviceColumns = []string{"device", "device_id", "dispositivo"}
)

// Domains counts flagged rows per email domain, most frequent first.
func Domains(a *domain.Artifacts, topN int) []domain.Count {
	if a == nil {
		return []domain.Count{}
	}
	counts := make(map[string]int)
	for _, r := range a.FlaggedRaw {
		counts[r.EmailDomain]++
	}
	return topCounts(counts, topN)
}

// RepeatEmails lists addresses with more than one vote in the flagged
// table. pseudonymize, when not nil, replaces the address in the output;
// ordering always uses the real address so results are stable.
func RepeatEmails(a *domain.Artifacts, topN int, pseudonymize func(string) string) []domain.RepeatEmail {
	if a == nil {
		return []domain.RepeatEmail{}
	}

	type acc struct {
		votes       int
		first, last time.Time
		choices     map[string]struct{}
	}
	byEmail := make(map[string]*acc)
	for _, r := range a.FlaggedRaw {
		e, ok := byEmail[r.Email]
		if !ok {
			e = &acc{first: r.Timestamp, last: r.Timestamp, choices: make(map[string]struct{})}
			byEmail[r.Email] = e
		}
		e.votes++
		if r.Timestamp.Before(e.first) {
			e.first = r.Timestamp
		}
		if r.Timestamp.After(e.last) {
			e.last = r.Timestamp
		}
		e.choices[r.Choice] = struct{}{}
	}

	keys := make([]string, 0, len(byEmail))
	for email, e := range byEmail {
		if e.votes > 1 {
			keys = append(keys, email)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		vi, vj := byEmail[keys[i]].votes, byEmail[keys[j]].votes
		if vi != vj {
			return vi > vj
		}
		return keys[i] < keys[j]
	})
	if topN > 0 && len(keys) > topN {
		keys = keys[:topN]
	}

	out := make([]domain.RepeatEmail, 0, len(keys))
	for _, email := range keys {
		e := byEmail[email]
		label := email
		if pseudonymize != nil {
			label = pseudonymize(email)
		}
		out = append(out, domain.RepeatEmail{
			Email:     label,
			Votes:     e.votes,
			FirstVote: e.first.Format(time.RFC3339),
			LastVote:  e.last.Format(time.RFC3339),
			Choices:   len(e.choices),
		})
	}
	return out
}

// OriginColumns returns the passthrough columns that identify a vote's
// origin, in ballot column order.
func OriginColumns(ballot *domain.Ballot) []string {
	if ballot == nil {
		return nil
	}
	var out []string
	for _, col := range ballot.ExtraColumns {
		name := strings.ToLower(strings.TrimSpace(col))
		if contains(IPColumns, name) || contains(AgentColumns, name) || contains(DeviceColumns, name) {
			out = append(out, col)
		}
	}
	return out
}

// OriginClusters groups flagged rows sharing the same non-empty origin
// value. Clusters of every origin column are merged and ordered by votes,
// then column, then value.
func OriginClusters(a *domain.Artifacts, topN int) []domain.OriginCluster {
	if a == nil || a.Raw == nil {
		return []domain.OriginCluster{}
	}

	type key struct{ column, value string }
	votes := make(map[key]int)
	emails := make(map[key]map[string]struct{})
	for _, col := range OriginColumns(a.Raw) {
		for _, r := range a.FlaggedRaw {
			v := strings.TrimSpace(a.Raw.ExtraValue(r.Vote, col))
			if v == "" {
				continue
			}
			k := key{col, v}
			votes[k]++
			if emails[k] == nil {
				emails[k] = make(map[string]struct{})
			}
			emails[k][r.Email] = struct{}{}
		}
	}

	out := make([]domain.OriginCluster, 0, len(votes))
	for k, n := range votes {
		out = append(out, domain.OriginCluster{
			Column:       k.column,
			Value:        k.value,
			Votes:        n,
			UniqueEmails: len(emails[k]),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		if out[i].Column != out[j].Column {
			return out[i].Column < out[j].Column
		}
		return out[i].Value < out[j].Value
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// PatternConcentration measures how the synthetic suffix-3 votes spread
// across choices.
func PatternConcentration(a *domain.Artifacts) domain.PatternConcentration {
	var pattern []domain.AuditRow
	if a != nil {
		for _, r := range a.FlaggedRaw {
			if r.Suspicion.SyntheticSuffix3 {
				pattern = append(pattern, r)
			}
		}
	}

	ranking := Rank(pattern, 1)
	pc := domain.PatternConcentration{PatternVotes: ranking.Total}
	if len(ranking.Choices) > 0 {
		pc.TopChoice = ranking.Choices[0].Choice
		pc.TopVotes = ranking.Choices[0].Votes
		pc.TopShare = ranking.Choices[0].Share
	}
	return pc
}

// Quality counts the flagged rows touched by each email and day rule.
func Quality(a *domain.Artifacts) domain.QualityMetrics {
	var q domain.QualityMetrics
	if a == nil {
		return q
	}

	seen := make(map[string]struct{}, len(a.FlaggedRaw))
	for _, r := range a.FlaggedRaw {
		if r.Rules.ExcludeDay {
			q.ExcludedDayRows++
		}
		if r.Rules.PlusSuffixEmail {
			q.PlusPatternRows++
		}
		if r.Suspicion.SyntheticSuffix3 {
			q.Suffix3Rows++
		}
		seen[r.Email] = struct{}{}
	}
	q.DuplicateRows = len(a.FlaggedRaw) - len(seen)
	return q
}

// SuspiciousRows returns flagged rows with at least one suspicion flag,
// newest first. limit <= 0 returns all of them.
func SuspiciousRows(a *domain.Artifacts, limit int) []domain.AuditRow {
	out := []domain.AuditRow{}
	if a == nil {
		return out
	}
	for _, r := range a.FlaggedRaw {
		if r.Suspicion.Any() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func topCounts(counts map[string]int, topN int) []domain.Count {
	out := make([]domain.Count, 0, len(counts))
	for k, n := range counts {
		out = append(out, domain.Count{Key: k, Votes: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		return out[i].Key < out[j].Key
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
