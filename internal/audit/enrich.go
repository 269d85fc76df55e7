package audit

import (
	"strings"
	"time"

	"ballotaudit/pkg/contracts/domain"
)

// Enrich derives date, day, hour and email domain for every vote. The
// result has one row per vote in the same order.
func Enrich(ballot *domain.Ballot) []domain.EnrichedVote {
	if ballot == nil {
		return []domain.EnrichedVote{}
	}

	out := make([]domain.EnrichedVote, len(ballot.Votes))
	for i, v := range ballot.Votes {
		out[i] = EnrichVote(v)
	}
	return out
}

// EnrichVote derives the features of a single vote.
func EnrichVote(v domain.Vote) domain.EnrichedVote {
	ts := v.Timestamp
	return domain.EnrichedVote{
		Vote:        v,
		Date:        time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location()),
		Day:         ts.Day(),
		Hour:        ts.Hour(),
		EmailDomain: EmailDomain(v.Email),
	}
}

// EmailDomain returns the text after the last '@', or the whole address
// when there is none.
func EmailDomain(email string) string {
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return email[i+1:]
	}
	return email
}
