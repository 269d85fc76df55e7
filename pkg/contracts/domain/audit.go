package domain

import "time"

// RuleFlags are the organizer's published cleaning rules evaluated per row.
type RuleFlags struct {
	ExcludeDay      bool `json:"exclude_day" csv:"exclude_day"`
	PlusSuffixEmail bool `json:"suspicious_email_plus_3dig_gmail" csv:"suspicious_email_plus_3dig_gmail"`
}

// SuspicionFlags are the heuristic bot signals. They never remove rows.
type SuspicionFlags struct {
	GlobalShortDelta bool `json:"flag_global_short_delta" csv:"flag_global_short_delta"`
	ChoiceShortDelta bool `json:"flag_choice_short_delta" csv:"flag_choice_short_delta"`
	NightVote        bool `json:"flag_night_vote" csv:"flag_night_vote"`
	DomainTypo       bool `json:"flag_suspicious_domain_typo" csv:"flag_suspicious_domain_typo"`
	SyntheticSuffix3 bool `json:"flag_synthetic_email_suffix3" csv:"flag_synthetic_email_suffix3"`

	// PrevDeltaSeconds is the gap to the previous row in timestamp order.
	// Nil means the row has no predecessor (infinite gap).
	PrevDeltaSeconds *float64 `json:"prev_delta_s,omitempty"`
	// ChoicePrevDeltaSeconds is the same gap restricted to rows with the
	// same choice.
	ChoicePrevDeltaSeconds *float64 `json:"choice_prev_delta_s,omitempty"`
}

// Any reports whether at least one suspicion flag is set.
func (f SuspicionFlags) Any() bool {
	return f.GlobalShortDelta || f.ChoiceShortDelta || f.NightVote || f.DomainTypo || f.SyntheticSuffix3
}

// AuditRow is an enriched vote carrying rule and suspicion flags.
type AuditRow struct {
	EnrichedVote
	Rules     RuleFlags      `json:"rules"`
	Suspicion SuspicionFlags `json:"suspicion"`
}

// HourlyBucket is the vote count of one observed hour.
type HourlyBucket struct {
	Hour  time.Time `json:"hour"`
	Votes int       `json:"votes"`
}

// HourlyOutlier is an hourly bucket scored with the robust z-score.
type HourlyOutlier struct {
	HourlyBucket

	// Z is nil only when scoring was impossible.
	Z         *float64 `json:"z"`
	IsOutlier bool     `json:"is_outlier"`
}

// SuspicionSummary aggregates the suspicion flags of a flagged table.
type SuspicionSummary struct {
	GlobalShortDeltas     int `json:"global_short_deltas"`
	PerChoiceShortDeltas  int `json:"per_choice_short_deltas"`
	NightVotes            int `json:"night_votes"`
	SuspiciousDomains     int `json:"suspicious_domains"`
	SyntheticEmailSuffix3 int `json:"synthetic_email_suffix3"`
	MaxVotesSameEmail     int `json:"max_votes_same_email"`
}

// Artifacts is the full audit bundle. Consumers treat it as read-only.
//
// Invariants: len(FlaggedRaw) == len(Raw.Votes) and
// len(Cleaned) <= len(FlaggedRaw).
type Artifacts struct {
	Raw            *Ballot          `json:"-"`
	Cleaned        []AuditRow       `json:"cleaned"`
	FlaggedRaw     []AuditRow       `json:"flagged_raw"`
	Hourly         []HourlyBucket   `json:"hourly"`
	HourlyOutliers []HourlyOutlier  `json:"hourly_outliers"`
	Summary        SuspicionSummary `json:"summary"`
	DroppedRows    int              `json:"dropped_rows"`
}
