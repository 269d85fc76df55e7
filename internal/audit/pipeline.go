package audit

import (
	"ballotaudit/internal/config"
	"ballotaudit/pkg/contracts/domain"
)

// BuildArtifacts runs the full audit over ballot. It is deterministic and
// leaves ballot untouched.
func BuildArtifacts(ballot *domain.Ballot, cfg config.AuditConfig) *domain.Artifacts {
	if ballot == nil {
		ballot = &domain.Ballot{}
	}

	enriched := Enrich(ballot)
	cleaned, ruled := ApplyOrganizerRules(enriched, cfg)
	flagged := FlagSuspicious(ruled, cfg)
	hourly := HourlyCounts(flagged)

	return &domain.Artifacts{
		Raw:            ballot,
		Cleaned:        cleaned,
		FlaggedRaw:     flagged,
		Hourly:         hourly,
		HourlyOutliers: DetectHourlyOutliers(hourly, cfg.OutlierThreshold()),
		Summary:        Summarize(flagged),
		DroppedRows:    ballot.DroppedRows,
	}
}
