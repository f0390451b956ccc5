package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/impactgate/pkg/cluster"
	"github.com/elonfeng/impactgate/pkg/impact"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "impactgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testCluster(id string, createdAt time.Time) cluster.Cluster {
	return cluster.Cluster{
		ID:                  id,
		Title:               "Cluster " + id,
		Takeaway:            "Takeaway for " + id,
		URL:                 "https://example.com/" + id,
		ContentTypes:        []string{cluster.ContentPreprint},
		RiskFlags:           []string{cluster.RiskSingleSource},
		ItemIDs:             []string{id + "-item-1"},
		DistinctSourceCount: 2,
		HasFullDocument:     true,
		Active:              true,
		CreatedAt:           createdAt,
		UpdatedAt:           createdAt,
	}
}

// saveAssessed upserts a cluster and marks it assessed with the given
// final score.
func saveAssessed(t *testing.T, s *SQLiteStore, c cluster.Cluster, final float64, highImpact bool, assessedAt time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertCluster(ctx, &c))

	a := &cluster.Assessment{
		Result: cluster.ScoreResult{
			Provisional: final * 0.96,
			Final:       &final,
			Confidence:  0.8,
			Eligible:    true,
			Version:     cluster.ScoreVersionFinal,
			ReasonCodes: []string{cluster.ReasonEvidenceGate},
		},
		Components: cluster.ComponentScores{Novelty: 0.6, Translation: 0.5, Evidence: 0.4},
		Resolution: cluster.ThresholdResolution{Bucket: cluster.BucketGlobal, Threshold: 0.95},
		PassedThreshold: highImpact, PassedConfidence: true, PassedEvidence: true,
		HighImpact: highImpact,
		AssessedAt: assessedAt,
	}
	require.NoError(t, s.SaveAssessment(ctx, c.ID, a))
}

func TestUpsertGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	c := testCluster("abc", now)
	require.NoError(t, s.UpsertCluster(ctx, &c))

	got, err := s.GetCluster(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, c.Title, got.Title)
	assert.Equal(t, c.Takeaway, got.Takeaway)
	assert.Equal(t, []string{cluster.ContentPreprint}, got.ContentTypes)
	assert.Equal(t, []string{cluster.RiskSingleSource}, got.RiskFlags)
	assert.Equal(t, []string{"abc-item-1"}, got.ItemIDs)
	assert.True(t, got.HasFullDocument)
	assert.Nil(t, got.FinalScore)
	assert.Nil(t, got.AssessedAt)

	// Upserting again replaces the mutable fields in place.
	c.Title = "Updated"
	c.DistinctSourceCount = 5
	require.NoError(t, s.UpsertCluster(ctx, &c))

	got, err = s.GetCluster(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Title)
	assert.Equal(t, 5, got.DistinctSourceCount)
}

func TestGetClusterNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetCluster(context.Background(), "missing")
	require.ErrorIs(t, err, impact.ErrNotFound)
}

func TestSaveAssessmentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	saveAssessed(t, s, testCluster("abc", now), 0.97, true, now)

	got, err := s.GetCluster(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got.FinalScore)
	assert.InDelta(t, 0.97, *got.FinalScore, 1e-9)
	require.NotNil(t, got.Confidence)
	assert.InDelta(t, 0.8, *got.Confidence, 1e-9)
	assert.Equal(t, cluster.ScoreVersionFinal, got.ScoreVersion)
	assert.Equal(t, []string{cluster.ReasonEvidenceGate}, got.ReasonCodes)
	assert.Equal(t, string(cluster.BucketGlobal), got.ThresholdBucket)
	assert.True(t, got.HighImpact)
	require.NotNil(t, got.AssessedAt)
	assert.Nil(t, got.ShadowPayload)
}

func TestListScorableActiveOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	active := testCluster("active", now)
	inactive := testCluster("inactive", now.Add(-time.Hour))
	inactive.Active = false
	require.NoError(t, s.UpsertClusters(ctx, []cluster.Cluster{active, inactive}))

	got, err := s.ListScorable(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "active", got[0].ID)
}

func TestClusterMetaPrimaryTopic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	c := testCluster("abc", now)
	require.NoError(t, s.UpsertCluster(ctx, &c))

	meta, err := s.ClusterMeta(ctx, "abc")
	require.NoError(t, err)
	assert.Empty(t, meta.Topic)

	require.NoError(t, s.AssignTopics(ctx, "abc", map[string]float64{
		"robotics": 0.5,
		"llm":      0.9,
	}))

	meta, err = s.ClusterMeta(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "llm", meta.Topic)
	assert.InDelta(t, 0.9, meta.TopicScore, 1e-9)

	// Equal scores break ties alphabetically.
	require.NoError(t, s.AssignTopics(ctx, "abc", map[string]float64{
		"robotics": 0.7,
		"llm":      0.7,
	}))
	meta, err = s.ClusterMeta(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "llm", meta.Topic)

	_, err = s.ClusterMeta(ctx, "missing")
	require.ErrorIs(t, err, impact.ErrNotFound)
}

func TestScoreStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	recent := now.Add(-5 * 24 * time.Hour)
	old := now.Add(-45 * 24 * time.Hour)
	stale := now.Add(-300 * 24 * time.Hour)

	saveAssessed(t, s, testCluster("a", recent), 0.70, false, recent)
	saveAssessed(t, s, testCluster("b", recent), 0.80, false, recent)
	saveAssessed(t, s, testCluster("c", old), 0.90, false, old)
	// Assessed outside the calibration window: excluded everywhere.
	saveAssessed(t, s, testCluster("d", stale), 0.99, true, stale)

	require.NoError(t, s.AssignTopics(ctx, "a", map[string]float64{"llm": 0.9}))
	require.NoError(t, s.AssignTopics(ctx, "b", map[string]float64{"robotics": 0.9}))

	// Whole window, all ages.
	stats, err := s.ScoreStats(ctx, impact.ScoreStatsQuery{WindowDays: impact.CalibrationWindowDays})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
	assert.InDelta(t, impact.Percentile([]float64{0.70, 0.80, 0.90}, 0.99), stats.P99, 1e-9)

	// Topic narrows to the single llm cluster.
	stats, err = s.ScoreStats(ctx, impact.ScoreStatsQuery{WindowDays: impact.CalibrationWindowDays, Topic: "llm"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.InDelta(t, 0.70, stats.P99, 1e-9)

	// Age bucket 31..90 days picks only the older cluster.
	stats, err = s.ScoreStats(ctx, impact.ScoreStatsQuery{WindowDays: impact.CalibrationWindowDays, AgeBucket: cluster.Age31to90})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.InDelta(t, 0.90, stats.P99, 1e-9)

	// Empty population.
	stats, err = s.ScoreStats(ctx, impact.ScoreStatsQuery{WindowDays: impact.CalibrationWindowDays, Topic: "healthcare_ai"})
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
}

func TestRateCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	recent := now.Add(-2 * 24 * time.Hour)
	older := now.Add(-20 * 24 * time.Hour)

	saveAssessed(t, s, testCluster("a", recent), 0.99, true, recent)
	saveAssessed(t, s, testCluster("b", recent), 0.70, false, recent)
	saveAssessed(t, s, testCluster("c", older), 0.65, false, older)

	eligible, labeled, err := s.RateCounts(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, eligible)
	assert.Equal(t, 1, labeled)

	eligible, labeled, err = s.RateCounts(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 3, eligible)
	assert.Equal(t, 1, labeled)
}

func TestDebugRowsRankedByDelta(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Near misses at deltas -0.05, -0.15, -0.25 and one pass at +0.04.
	saveAssessed(t, s, testCluster("far", now), 0.70, false, now)
	saveAssessed(t, s, testCluster("close", now), 0.90, false, now)
	saveAssessed(t, s, testCluster("mid", now), 0.80, false, now)
	saveAssessed(t, s, testCluster("pass", now), 0.99, true, now)

	misses, err := s.DebugRows(ctx, impact.DebugQuery{Limit: 10, HighImpact: false})
	require.NoError(t, err)
	require.Len(t, misses, 3)
	assert.Equal(t, []string{"close", "mid", "far"},
		[]string{misses[0].ClusterID, misses[1].ClusterID, misses[2].ClusterID})
	assert.InDelta(t, -0.05, misses[0].ThresholdDelta, 1e-9)

	passes, err := s.DebugRows(ctx, impact.DebugQuery{Limit: 10, HighImpact: true})
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.Equal(t, "pass", passes[0].ClusterID)
	assert.True(t, passes[0].PassedThreshold)

	// Limit caps the miss list at the top of the ranking.
	misses, err = s.DebugRows(ctx, impact.DebugQuery{Limit: 2, HighImpact: false})
	require.NoError(t, err)
	require.Len(t, misses, 2)
	assert.Equal(t, "close", misses[0].ClusterID)
}

func TestListClustersFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	assessed := testCluster("assessed", now.Add(-time.Hour))
	saveAssessed(t, s, assessed, 0.9, false, now)

	fresh := testCluster("fresh", now)
	require.NoError(t, s.UpsertCluster(ctx, &fresh))

	all, err := s.ListClusters(ctx, ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := s.ListClusters(ctx, ListOpts{AssessedOnly: true})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "assessed", only[0].ID)

	since, err := s.ListClusters(ctx, ListOpts{Since: now.Add(-30 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "fresh", since[0].ID)
}
