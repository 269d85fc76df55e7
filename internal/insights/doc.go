// Package insights derives read-only views over audit artifacts: scenario
// rankings, the cleaning funnel, daily and hourly breakdowns, repeat
// emails, origin clusters and data quality counters.
//
// Every function is pure and takes *domain.Artifacts as produced by
// audit.BuildArtifacts. Results are sorted deterministically so reports
// diff cleanly between runs.
package insights
