package domain

import "time"

// Vote is one canonical submission after ingestion.
//
// Row is the position in the canonical table (0-based, counted after rows
// with unparsable timestamps were dropped). It never changes as the row
// moves through enrichment, cleaning and flagging, so any derived table can
// be joined back to the raw one.
type Vote struct {
	Row       int       `json:"row"`
	Timestamp time.Time `json:"timestamp"`
	Email     string    `json:"email"`
	Choice    string    `json:"choice"`

	// Extra holds passthrough values aligned with Ballot.ExtraColumns.
	Extra []string `json:"extra,omitempty"`
}

// Ballot is the canonical vote table produced by ingestion.
type Ballot struct {
	// ExtraColumns lists non-canonical source columns in original order.
	ExtraColumns []string `json:"extra_columns"`
	Votes        []Vote   `json:"votes"`

	// SourceRows is the number of data rows read from the source.
	SourceRows int `json:"source_rows"`
	// DroppedRows counts rows discarded because the timestamp did not parse.
	DroppedRows int `json:"dropped_rows"`
}

// ExtraValue returns the passthrough value of column for v, or "" when the
// ballot has no such column.
func (b *Ballot) ExtraValue(v Vote, column string) string {
	for i, name := range b.ExtraColumns {
		if name == column && i < len(v.Extra) {
			return v.Extra[i]
		}
	}
	return ""
}

// EnrichedVote is a Vote with derived calendar and email features.
type EnrichedVote struct {
	Vote

	// Date is the calendar date of Timestamp at midnight, same location.
	Date        time.Time `json:"date"`
	Day         int       `json:"day"`
	Hour        int       `json:"hour"`
	EmailDomain string    `json:"email_domain"`
}

// DateKey formats the calendar date as YYYY-MM-DD.
func (e EnrichedVote) DateKey() string {
	return e.Date.Format(DateLayout)
}

// DateLayout is the date format used by reports and exports.
const DateLayout = "2006-01-02"
