package ingest

import (
	"strings"
	"time"

	"ballotaudit/pkg/contracts/domain"
)

// Table is a raw rectangular export: one header row plus data rows.
type Table struct {
	Headers []string
	Records [][]string

	// SerialDates marks sources whose timestamp cells may hold spreadsheet
	// date serials rather than text.
	SerialDates bool
}

// Options controls normalization.
type Options struct {
	// Location interprets timestamps without an offset. Nil means UTC.
	Location *time.Location
}

// Normalize converts t into a canonical ballot. It fails only when a
// canonical column cannot be resolved.
func Normalize(t *Table, opts Options) (*domain.Ballot, error) {
	cols, err := ResolveColumns(t.Headers)
	if err != nil {
		return nil, err
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	extraIdx, extraNames := passthroughColumns(t.Headers, cols)
	ballot := &domain.Ballot{
		ExtraColumns: extraNames,
		Votes:        make([]domain.Vote, 0, len(t.Records)),
		SourceRows:   len(t.Records),
	}

	for _, rec := range t.Records {
		cell := func(i int) string {
			if i < len(rec) {
				return rec[i]
			}
			return ""
		}

		ts, ok := ParseTimestamp(cell(cols.Timestamp), loc)
		if !ok && t.SerialDates {
			ts, ok = parseSerial(cell(cols.Timestamp), loc)
		}
		if !ok {
			ballot.DroppedRows++
			continue
		}

		vote := domain.Vote{
			Row:       len(ballot.Votes),
			Timestamp: ts,
			Email:     strings.ToLower(strings.TrimSpace(cell(cols.Email))),
			Choice:    strings.TrimSpace(cell(cols.Choice)),
		}
		if len(extraIdx) > 0 {
			vote.Extra = make([]string, len(extraIdx))
			for j, idx := range extraIdx {
				vote.Extra[j] = cell(idx)
			}
		}
		ballot.Votes = append(ballot.Votes, vote)
	}

	return ballot, nil
}

// passthroughColumns keeps every non-canonical column in source order.
// Repeated names and names colliding with canonical fields keep only their
// first occurrence.
func passthroughColumns(headers []string, cols Columns) ([]int, []string) {
	seen := map[string]bool{
		FieldTimestamp: true,
		FieldEmail:     true,
		FieldChoice:    true,
	}
	var idx []int
	var names []string
	for i, h := range headers {
		if i == cols.Timestamp || i == cols.Email || i == cols.Choice {
			continue
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		idx = append(idx, i)
		names = append(names, h)
	}
	return idx, names
}
