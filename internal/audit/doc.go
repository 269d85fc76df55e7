// Package audit implements the vote audit pipeline.
//
// The pipeline is pure: every function takes its input by value or
// read-only slice and returns fresh tables, never logs and never touches
// I/O. BuildArtifacts runs the stages in order:
//
//	Enrich              calendar and email-domain features
//	ApplyOrganizerRules excluded days, email dedupe, plus-suffix filter
//	FlagSuspicious      timing, night, and email-pattern signals
//	Summarize           flag counters
//	HourlyCounts        per-hour volume of the raw table
//	DetectHourlyOutliers robust z-score over hourly volume
//
// Rule flags remove rows from the cleaned table; suspicion flags never do.
package audit
