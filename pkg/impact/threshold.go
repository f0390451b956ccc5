package impact

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/elonfeng/impactgate/pkg/cluster"
)

// Calibration constants.
const (
	// DefaultThreshold is used when no historical population exists at
	// all, or when the target cluster is unknown.
	DefaultThreshold = 0.95

	// ThresholdPercentile is the historical-score percentile that
	// becomes the decision threshold.
	ThresholdPercentile = 0.99

	// CalibrationWindowDays bounds the historical population to
	// recently assessed clusters.
	CalibrationWindowDays = 180

	// minBucketSamples is the statistical-power floor: a bucket with
	// fewer historical points is too noisy to calibrate against.
	minBucketSamples = 100
)

// ErrNotFound is returned by History implementations when a cluster
// does not exist. The resolver maps it to the default threshold rather
// than failing: calibration degrades gracefully, it never blocks scoring.
var ErrNotFound = errors.New("cluster not found")

// ScoreStatsQuery selects the historical population for one calibration
// level: active, eligible, finally-scored clusters assessed within the
// trailing window, optionally narrowed by topic and/or age bucket.
type ScoreStatsQuery struct {
	WindowDays int
	Topic      string            // empty = topic-agnostic
	AgeBucket  cluster.AgeBucket // empty = all ages
}

// ScoreStats is the aggregate a History returns for one population.
type ScoreStats struct {
	P99   float64
	Count int
}

// DebugQuery selects ranked audit rows for the calibration report.
type DebugQuery struct {
	Limit        int
	EligibleOnly bool
	HighImpact   bool
}

// History is the read-only view of previously assessed clusters that
// threshold calibration, guardrail monitoring, and reporting run
// against. Implemented by the SQLite store and by in-memory fakes in
// tests.
type History interface {
	ClusterMeta(ctx context.Context, clusterID string) (cluster.Meta, error)
	ScoreStats(ctx context.Context, q ScoreStatsQuery) (ScoreStats, error)
	RateCounts(ctx context.Context, windowDays int) (eligible, labeled int, err error)
	DebugRows(ctx context.Context, q DebugQuery) ([]cluster.DebugRow, error)
}

// calibrationLevel is one row of the fallback chain. Levels are tried
// in order; the first one with enough samples wins.
type calibrationLevel struct {
	bucket     cluster.Bucket
	minSamples int
	byTopic    bool
	byAge      bool
}

var calibrationLevels = []calibrationLevel{
	{bucket: cluster.BucketTopicAge, minSamples: minBucketSamples, byTopic: true, byAge: true},
	{bucket: cluster.BucketAgeGlobal, minSamples: minBucketSamples, byAge: true},
	{bucket: cluster.BucketGlobal},
}

// Resolver derives the decision threshold for a cluster from historical
// score distributions.
type Resolver struct {
	history History
}

// NewResolver creates a threshold resolver over the given history.
func NewResolver(h History) *Resolver {
	return &Resolver{history: h}
}

// Resolve walks the calibration chain for the cluster: topic+age bucket
// first, then age-only, then global. A coarser bucket is only chosen
// when the finer one lacks sufficient samples. Unknown clusters and
// empty populations resolve to the global default.
func (r *Resolver) Resolve(ctx context.Context, clusterID string) (cluster.ThresholdResolution, error) {
	meta, err := r.history.ClusterMeta(ctx, clusterID)
	if errors.Is(err, ErrNotFound) {
		return cluster.ThresholdResolution{Bucket: cluster.BucketGlobal, Threshold: DefaultThreshold}, nil
	}
	if err != nil {
		return cluster.ThresholdResolution{}, fmt.Errorf("cluster meta %s: %w", clusterID, err)
	}

	ageBucket := cluster.AgeBucketFor(meta.CreatedAt, time.Now().UTC())

	levels := calibrationLevels
	if meta.Topic == "" {
		// No topic assignment: nothing to compare against but the
		// global population.
		levels = calibrationLevels[len(calibrationLevels)-1:]
	}

	for _, lvl := range levels {
		q := ScoreStatsQuery{WindowDays: CalibrationWindowDays}
		if lvl.byTopic {
			q.Topic = meta.Topic
		}
		if lvl.byAge {
			q.AgeBucket = ageBucket
		}

		stats, err := r.history.ScoreStats(ctx, q)
		if err != nil {
			return cluster.ThresholdResolution{}, fmt.Errorf("score stats %s/%s: %w", lvl.bucket, clusterID, err)
		}
		if stats.Count < lvl.minSamples {
			continue
		}

		threshold := stats.P99
		if stats.Count == 0 {
			threshold = DefaultThreshold
		}
		return cluster.ThresholdResolution{Bucket: lvl.bucket, Threshold: threshold}, nil
	}

	return cluster.ThresholdResolution{Bucket: cluster.BucketGlobal, Threshold: DefaultThreshold}, nil
}

// Percentile computes the p-quantile of an ascending-sorted slice with
// continuous (linear) interpolation. Returns 0 for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	rank := p * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}
