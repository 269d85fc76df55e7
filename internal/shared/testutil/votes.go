package testutil

import (
	"strings"
	"testing"
	"time"

	"ballotaudit/pkg/contracts/domain"
)

// FormHeaders are the column names of a Portuguese form export.
var FormHeaders = []string{"Carimbo de data/hora", "Endereço de e-mail", "Noel escolhido"}

// FormRow is one line of a form export.
type FormRow struct {
	Timestamp string // day-first, e.g. "19/12/2024 10:00:00"
	Email     string
	Choice    string
}

// FormCSV renders rows as a comma separated form export with FormHeaders.
func FormCSV(rows ...FormRow) string {
	var b strings.Builder
	b.WriteString(strings.Join(FormHeaders, ","))
	b.WriteByte('\n')
	for _, r := range rows {
		b.WriteString(r.Timestamp + "," + r.Email + "," + r.Choice + "\n")
	}
	return b.String()
}

// TS parses a "2006-01-02 15:04:05" UTC timestamp or fails the test.
func TS(t testing.TB, s string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
	if err != nil {
		t.Fatalf("bad fixture timestamp %q: %v", s, err)
	}
	return ts
}

// VoteFixture describes a vote by timestamp text.
type VoteFixture struct {
	At     string // "2006-01-02 15:04:05", UTC
	Email  string
	Choice string
}

// NewBallot builds a canonical ballot, numbering rows in argument order.
func NewBallot(t testing.TB, fixtures ...VoteFixture) *domain.Ballot {
	t.Helper()
	b := &domain.Ballot{Votes: make([]domain.Vote, 0, len(fixtures)), SourceRows: len(fixtures)}
	for i, s := range fixtures {
		b.Votes = append(b.Votes, domain.Vote{
			Row:       i,
			Timestamp: TS(t, s.At),
			Email:     s.Email,
			Choice:    s.Choice,
		})
	}
	return b
}
