package domain

// ScenarioID names a counting policy.
type ScenarioID string

const (
	// ScenarioOrganizer applies the organizer's published rules.
	ScenarioOrganizer ScenarioID = "A"
	// ScenarioAntiBot drops excluded days and synthetic suffix-3 emails,
	// then keeps the first vote per email.
	ScenarioAntiBot ScenarioID = "B"
	// ScenarioStrict is ScenarioAntiBot minus domain typos and plus-suffix emails.
	ScenarioStrict ScenarioID = "C"
)

// ScenarioIDs lists every scenario in report order.
var ScenarioIDs = []ScenarioID{ScenarioOrganizer, ScenarioAntiBot, ScenarioStrict}

// Valid reports whether s is a known scenario.
func (s ScenarioID) Valid() bool {
	for _, id := range ScenarioIDs {
		if s == id {
			return true
		}
	}
	return false
}

// Label is the human description of a scenario.
func (s ScenarioID) Label() string {
	switch s {
	case ScenarioOrganizer:
		return "A - organizer rules"
	case ScenarioAntiBot:
		return "B - anti-bot (no suffix3, dedupe email)"
	case ScenarioStrict:
		return "C - strict (B + no domain typo, no plus pattern)"
	default:
		return string(s)
	}
}

// RankedChoice is one line of a ranking.
type RankedChoice struct {
	Choice string  `json:"choice"`
	Votes  int     `json:"votes"`
	Share  float64 `json:"share"`
}

// Ranking is a vote count per choice, highest first.
type Ranking struct {
	Total   int            `json:"total"`
	Choices []RankedChoice `json:"choices"`
}

// ScenarioResult is a scenario's ranking with its winner.
type ScenarioResult struct {
	Scenario    ScenarioID `json:"scenario"`
	Label       string     `json:"label"`
	Total       int        `json:"total"`
	Winner      string     `json:"winner"`
	WinnerVotes int        `json:"winner_votes"`
	WinnerShare float64    `json:"winner_share"`
	Ranking     Ranking    `json:"ranking"`
}

// FunnelStage is a row count after one cleaning step.
type FunnelStage struct {
	Stage string `json:"stage"`
	Votes int    `json:"votes"`
}

// DailyStats aggregates submissions of one calendar date.
type DailyStats struct {
	Date             string  `json:"date"`
	Submissions      int     `json:"submissions"`
	UniqueEmails     int     `json:"unique_emails"`
	Duplicates       int     `json:"duplicates"`
	NightVotes       int     `json:"night_votes"`
	SyntheticSuffix3 int     `json:"synthetic_suffix3"`
	Suffix3Share     float64 `json:"suffix3_share"`
	FocusVotes       int     `json:"focus_votes,omitempty"`
	FocusShare       float64 `json:"focus_share,omitempty"`
}

// HeatmapCell is the vote count of one hour of one date.
type HeatmapCell struct {
	Date  string `json:"date"`
	Hour  int    `json:"hour"`
	Votes int    `json:"votes"`
}

// Count is a labelled frequency.
type Count struct {
	Key   string `json:"key"`
	Votes int    `json:"votes"`
}

// RepeatEmail is an address that voted more than once. Email is expected to
// be pseudonymized before it leaves the process.
type RepeatEmail struct {
	Email     string `json:"email"`
	Votes     int    `json:"votes"`
	FirstVote string `json:"first_vote"`
	LastVote  string `json:"last_vote"`
	Choices   int    `json:"distinct_choices"`
}

// OriginCluster groups votes sharing the same origin column value.
type OriginCluster struct {
	Column       string `json:"column"`
	Value        string `json:"value"`
	Votes        int    `json:"votes"`
	UniqueEmails int    `json:"unique_emails"`
}

// PatternConcentration describes how synthetic suffix-3 votes concentrate
// on a single choice.
type PatternConcentration struct {
	PatternVotes int     `json:"pattern_votes"`
	TopChoice    string  `json:"top_choice"`
	TopVotes     int     `json:"top_votes"`
	TopShare     float64 `json:"top_share"`
}

// QualityMetrics counts rows touched by each rule.
type QualityMetrics struct {
	ExcludedDayRows int `json:"excluded_day_rows"`
	DuplicateRows   int `json:"duplicate_rows"`
	PlusPatternRows int `json:"plus_pattern_rows"`
	Suffix3Rows     int `json:"suffix3_rows"`
}
