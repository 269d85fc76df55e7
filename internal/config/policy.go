package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// PolicyFile is the YAML form of an audit policy. Every field is optional;
// absent fields keep the base policy value.
//
//	excluded_days: [20, 21, 22]
//	night_hours: {start: 0, end: 5}
//	min_global_delta_s: 2
//	min_per_choice_delta_s: 2
//	outlier_z_threshold: 3.5
//	patterns:
//	  plus_suffix: '^[a-z]+(?:\.[a-z]+)+\+\d{3}@gmail\.com$'
type PolicyFile struct {
	ExcludedDays      []int       `yaml:"excluded_days"`
	NightHours        *NightHours `yaml:"night_hours"`
	MinGlobalDelta    *float64    `yaml:"min_global_delta_s"`
	MinPerChoiceDelta *float64    `yaml:"min_per_choice_delta_s"`
	OutlierThreshold  *float64    `yaml:"outlier_z_threshold"`
	Patterns          Patterns    `yaml:"patterns"`
}

// NightHours is an inclusive hour window.
type NightHours struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// Patterns holds regular expression overrides.
type Patterns struct {
	PlusSuffix string `yaml:"plus_suffix"`
	Suffix3    string `yaml:"suffix3"`
	DomainTypo string `yaml:"domain_typo"`
}

// LoadPolicyFile reads a YAML policy file.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes a YAML policy document.
func ParsePolicy(data []byte) (*PolicyFile, error) {
	var p PolicyFile
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	return &p, nil
}

// Options converts the file into audit options. Invalid regular expressions
// are reported here; the audit core never validates.
func (p *PolicyFile) Options() ([]AuditOption, error) {
	var opts []AuditOption
	if p.ExcludedDays != nil {
		opts = append(opts, WithExcludedDays(p.ExcludedDays...))
	}
	if p.NightHours != nil {
		opts = append(opts, WithNightHours(p.NightHours.Start, p.NightHours.End))
	}
	if p.MinGlobalDelta != nil {
		opts = append(opts, WithMinGlobalDelta(*p.MinGlobalDelta))
	}
	if p.MinPerChoiceDelta != nil {
		opts = append(opts, WithMinPerChoiceDelta(*p.MinPerChoiceDelta))
	}
	if p.OutlierThreshold != nil {
		opts = append(opts, WithOutlierThreshold(*p.OutlierThreshold))
	}

	patterns := []struct {
		name string
		expr string
		opt  func(*regexp.Regexp) AuditOption
	}{
		{"plus_suffix", p.Patterns.PlusSuffix, WithPlusSuffixPattern},
		{"suffix3", p.Patterns.Suffix3, WithSuffix3Pattern},
		{"domain_typo", p.Patterns.DomainTypo, WithDomainTypoPattern},
	}
	for _, pat := range patterns {
		if pat.expr == "" {
			continue
		}
		re, err := regexp.Compile(pat.expr)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern: %w", pat.name, err)
		}
		opts = append(opts, pat.opt(re))
	}
	return opts, nil
}

// Apply returns base with the file's overrides applied.
func (p *PolicyFile) Apply(base AuditConfig) (AuditConfig, error) {
	opts, err := p.Options()
	if err != nil {
		return base, err
	}
	return base.With(opts...), nil
}

// ParseExcludedDays reads a comma separated day list such as "20,21,22".
// Tokens that are not plain numbers are ignored.
func ParseExcludedDays(s string) []int {
	days := []int{}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		d, err := strconv.Atoi(tok)
		if err != nil || d < 0 {
			continue
		}
		days = append(days, d)
	}
	return days
}

// PolicySnapshot is a serializable view of an AuditConfig.
type PolicySnapshot struct {
	ExcludedDays      []int      `json:"excluded_days" yaml:"excluded_days"`
	NightHours        NightHours `json:"night_hours" yaml:"night_hours"`
	MinGlobalDelta    float64    `json:"min_global_delta_s" yaml:"min_global_delta_s"`
	MinPerChoiceDelta float64    `json:"min_per_choice_delta_s" yaml:"min_per_choice_delta_s"`
	OutlierThreshold  float64    `json:"outlier_z_threshold" yaml:"outlier_z_threshold"`
	PlusSuffix        string     `json:"plus_suffix_pattern" yaml:"plus_suffix_pattern"`
	Suffix3           string     `json:"suffix3_pattern" yaml:"suffix3_pattern"`
	DomainTypo        string     `json:"domain_typo_pattern" yaml:"domain_typo_pattern"`
}

// Snapshot describes c for reports and the HTTP API.
func (c AuditConfig) Snapshot() PolicySnapshot {
	start, end := c.NightHours()
	s := PolicySnapshot{
		ExcludedDays:      c.ExcludedDays(),
		NightHours:        NightHours{Start: start, End: end},
		MinGlobalDelta:    c.minGlobalDelta,
		MinPerChoiceDelta: c.minPerChoiceDelta,
		OutlierThreshold:  c.outlierThreshold,
	}
	if c.plusSuffix != nil {
		s.PlusSuffix = c.plusSuffix.String()
	}
	if c.suffix3 != nil {
		s.Suffix3 = c.suffix3.String()
	}
	if c.domainTypo != nil {
		s.DomainTypo = c.domainTypo.String()
	}
	return s
}
