package insights

import "ballotaudit/pkg/contracts/domain"

// Options tune Build.
type Options struct {
	// Scenario selects the headline ranking. Empty means ScenarioOrganizer.
	Scenario domain.ScenarioID
	// TopN bounds rankings; <= 0 uses DefaultRankTop.
	TopN int
	// FocusChoice adds per-day counts for one choice when set.
	FocusChoice string
	// Pseudonymize replaces email addresses in RepeatEmails. Nil keeps them.
	Pseudonymize func(string) string
}

// Report bundles every insight of one audit run.
type Report struct {
	Scenario             domain.ScenarioID           `json:"scenario"`
	Ranking              domain.Ranking              `json:"ranking"`
	Scenarios            []domain.ScenarioResult     `json:"scenarios"`
	Funnel               []domain.FunnelStage        `json:"funnel"`
	Daily                []domain.DailyStats         `json:"daily"`
	Heatmap              []domain.HeatmapCell        `json:"heatmap"`
	Domains              []domain.Count              `json:"domains"`
	RepeatEmails         []domain.RepeatEmail        `json:"repeat_emails"`
	OriginClusters       []domain.OriginCluster      `json:"origin_clusters"`
	PatternConcentration domain.PatternConcentration `json:"pattern_concentration"`
	Quality              domain.QualityMetrics       `json:"quality"`
}

// Build computes every insight with report defaults.
func Build(a *domain.Artifacts, opts Options) *Report {
	if opts.Scenario == "" {
		opts.Scenario = domain.ScenarioOrganizer
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultRankTop
	}

	return &Report{
		Scenario:             opts.Scenario,
		Ranking:              Rank(ScenarioRows(a, opts.Scenario), opts.TopN),
		Scenarios:            CompareScenarios(a, opts.TopN),
		Funnel:               Funnel(a),
		Daily:                Daily(a, opts.FocusChoice),
		Heatmap:              Heatmap(a),
		Domains:              Domains(a, DefaultDomainTop),
		RepeatEmails:         RepeatEmails(a, DefaultRepeatTop, opts.Pseudonymize),
		OriginClusters:       OriginClusters(a, DefaultClusterTop),
		PatternConcentration: PatternConcentration(a),
		Quality:              Quality(a),
	}
}
