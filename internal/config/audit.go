package config

import (
	"regexp"
	"sort"
	"sync"
)

// Default audit policy values.
const (
	DefaultMinGlobalDelta    = 2.0
	DefaultMinPerChoiceDelta = 2.0
	DefaultNightStart        = 0
	DefaultNightEnd          = 5
	DefaultOutlierThreshold  = 3.5

	DefaultPlusSuffixPattern = `^[a-z]+(?:\.[a-z]+)+\+\d{3}@gmail\.com$`
	DefaultSuffix3Pattern    = `^[a-z]+(?:\.[a-z]+)+\d{3}@gmail\.com$`
	DefaultDomainTypoPattern = `@(?:gmail\.cm|gmail\.con|gmail\.comj|gmal\.com|gmial\.com)$`
)

// DefaultExcludedDays are the days of month the organizer annulled.
var DefaultExcludedDays = []int{20, 21, 22}

var (
	defaultPlusSuffix = regexp.MustCompile(DefaultPlusSuffixPattern)
	defaultSuffix3    = regexp.MustCompile(DefaultSuffix3Pattern)
	defaultDomainTypo = regexp.MustCompile(DefaultDomainTypoPattern)
)

// AuditConfig is the immutable detection policy. Construct it with
// DefaultAudit and derive variants with With; it is safe to share between
// goroutines.
type AuditConfig struct {
	excludedDays      map[int]struct{}
	plusSuffix        *regexp.Regexp
	suffix3           *regexp.Regexp
	domainTypo        *regexp.Regexp
	nightStart        int
	nightEnd          int
	minGlobalDelta    float64
	minPerChoiceDelta float64
	outlierThreshold  float64
}

// AuditOption overrides one field of an AuditConfig copy.
type AuditOption func(*AuditConfig)

// DefaultAudit returns the organizer's published policy.
func DefaultAudit() AuditConfig {
	return AuditConfig{
		excludedDays:      daySet(DefaultExcludedDays),
		plusSuffix:        defaultPlusSuffix,
		suffix3:           defaultSuffix3,
		domainTypo:        defaultDomainTypo,
		nightStart:        DefaultNightStart,
		nightEnd:          DefaultNightEnd,
		minGlobalDelta:    DefaultMinGlobalDelta,
		minPerChoiceDelta: DefaultMinPerChoiceDelta,
		outlierThreshold:  DefaultOutlierThreshold,
	}
}

// With returns a copy of c with opts applied. c is left untouched.
func (c AuditConfig) With(opts ...AuditOption) AuditConfig {
	next := c
	next.excludedDays = make(map[int]struct{}, len(c.excludedDays))
	for d := range c.excludedDays {
		next.excludedDays[d] = struct{}{}
	}
	for _, opt := range opts {
		opt(&next)
	}
	return next
}

// WithExcludedDays replaces the excluded day-of-month set.
func WithExcludedDays(days ...int) AuditOption {
	set := daySet(days)
	return func(c *AuditConfig) { c.excludedDays = set }
}

// WithNightHours sets the inclusive night window. start > end wraps midnight.
func WithNightHours(start, end int) AuditOption {
	return func(c *AuditConfig) {
		c.nightStart = start
		c.nightEnd = end
	}
}

// WithMinGlobalDelta sets the global short-gap threshold in seconds.
func WithMinGlobalDelta(seconds float64) AuditOption {
	return func(c *AuditConfig) { c.minGlobalDelta = seconds }
}

// WithMinPerChoiceDelta sets the per-choice short-gap threshold in seconds.
func WithMinPerChoiceDelta(seconds float64) AuditOption {
	return func(c *AuditConfig) { c.minPerChoiceDelta = seconds }
}

// WithPlusSuffixPattern replaces the plus-suffix email pattern.
func WithPlusSuffixPattern(re *regexp.Regexp) AuditOption {
	return func(c *AuditConfig) { c.plusSuffix = re }
}

// WithSuffix3Pattern replaces the synthetic suffix-3 email pattern.
func WithSuffix3Pattern(re *regexp.Regexp) AuditOption {
	return func(c *AuditConfig) { c.suffix3 = re }
}

// WithDomainTypoPattern replaces the domain typo pattern.
func WithDomainTypoPattern(re *regexp.Regexp) AuditOption {
	return func(c *AuditConfig) { c.domainTypo = re }
}

// WithOutlierThreshold sets the |z| threshold for hourly outliers.
func WithOutlierThreshold(z float64) AuditOption {
	return func(c *AuditConfig) { c.outlierThreshold = z }
}

// ExcludedDays returns the excluded days in ascending order.
func (c AuditConfig) ExcludedDays() []int {
	days := make([]int, 0, len(c.excludedDays))
	for d := range c.excludedDays {
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}

// IsExcludedDay reports whether day is annulled.
func (c AuditConfig) IsExcludedDay(day int) bool {
	_, ok := c.excludedDays[day]
	return ok
}

// NightHours returns the inclusive night window.
func (c AuditConfig) NightHours() (start, end int) {
	return c.nightStart, c.nightEnd
}

// IsNightHour reports whether hour falls in the night window.
func (c AuditConfig) IsNightHour(hour int) bool {
	if c.nightStart <= c.nightEnd {
		return hour >= c.nightStart && hour <= c.nightEnd
	}
	return hour >= c.nightStart || hour <= c.nightEnd
}

func (c AuditConfig) MinGlobalDelta() float64    { return c.minGlobalDelta }
func (c AuditConfig) MinPerChoiceDelta() float64 { return c.minPerChoiceDelta }
func (c AuditConfig) OutlierThreshold() float64  { return c.outlierThreshold }

// PlusSuffixPattern returns the plus-suffix pattern. Matching is anchored.
func (c AuditConfig) PlusSuffixPattern() *regexp.Regexp { return c.plusSuffix }

// Suffix3Pattern returns the synthetic suffix-3 pattern. Matching is anchored.
func (c AuditConfig) Suffix3Pattern() *regexp.Regexp { return c.suffix3 }

// DomainTypoPattern returns the domain typo pattern. Matching is a search.
func (c AuditConfig) DomainTypoPattern() *regexp.Regexp { return c.domainTypo }

// MatchesPlusSuffix reports a full match of the plus-suffix pattern.
func (c AuditConfig) MatchesPlusSuffix(email string) bool {
	return fullMatch(c.plusSuffix, email)
}

// MatchesSuffix3 reports a full match of the suffix-3 pattern.
func (c AuditConfig) MatchesSuffix3(email string) bool {
	return fullMatch(c.suffix3, email)
}

// MatchesDomainTypo reports whether the domain typo pattern occurs in email.
func (c AuditConfig) MatchesDomainTypo(email string) bool {
	return c.domainTypo != nil && c.domainTypo.MatchString(email)
}

// fullMatch anchors re on both ends, so patterns supplied without anchors
// still behave as full matches.
func fullMatch(re *regexp.Regexp, s string) bool {
	if re == nil {
		return false
	}
	return anchored(re).MatchString(s)
}

var anchoredCache sync.Map // *regexp.Regexp -> *regexp.Regexp

func anchored(re *regexp.Regexp) *regexp.Regexp {
	if v, ok := anchoredCache.Load(re); ok {
		return v.(*regexp.Regexp)
	}
	full := regexp.MustCompile(`^(?:` + re.String() + `)$`)
	anchoredCache.Store(re, full)
	return full
}

func daySet(days []int) map[int]struct{} {
	set := make(map[int]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	return set
}
