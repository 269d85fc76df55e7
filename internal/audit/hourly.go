package audit

import (
	"math"
	"sort"
	"time"

	"ballotaudit/internal/config"
	"ballotaudit/pkg/contracts/domain"
)

// HourlyCounts buckets rows by timestamp floored to the hour. Only hours
// with at least one vote appear; buckets are ascending.
func HourlyCounts(rows []domain.AuditRow) []domain.HourlyBucket {
	counts := make(map[time.Time]int)
	for _, r := range rows {
		counts[floorHour(r.Timestamp)]++
	}

	out := make([]domain.HourlyBucket, 0, len(counts))
	for h, n := range counts {
		out = append(out, domain.HourlyBucket{Hour: h, Votes: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour.Before(out[j].Hour) })
	return out
}

// floorHour truncates to the hour in the timestamp's own location, so
// zones with sub-hour offsets keep local hour boundaries.
func floorHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// DetectHourlyOutliers scores each bucket with a robust z-score:
// 0.6745*(count-median)/MAD, or |count-median| when MAD is zero. A bucket
// is an outlier when |z| >= threshold. Empty input yields an empty table.
func DetectHourlyOutliers(buckets []domain.HourlyBucket, threshold float64) []domain.HourlyOutlier {
	out := make([]domain.HourlyOutlier, len(buckets))
	if len(buckets) == 0 {
		return out
	}

	votes := make([]float64, len(buckets))
	for i, b := range buckets {
		votes[i] = float64(b.Votes)
	}
	med := median(votes)
	mad := medianAbsDeviation(votes, med)

	for i, b := range buckets {
		z := robustZ(votes[i], med, mad)
		out[i] = domain.HourlyOutlier{
			HourlyBucket: b,
			Z:            &z,
			IsOutlier:    math.Abs(z) >= threshold,
		}
	}
	return out
}

// DefaultOutliers runs DetectHourlyOutliers with the default threshold.
func DefaultOutliers(buckets []domain.HourlyBucket) []domain.HourlyOutlier {
	return DetectHourlyOutliers(buckets, config.DefaultOutlierThreshold)
}
