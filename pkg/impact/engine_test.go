package impact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/impactgate/pkg/cluster"
)

type fakeStore struct {
	*fakeHistory
	clusters []cluster.Cluster
	saved    map[string]*cluster.Assessment
}

func newFakeStore(h *fakeHistory, clusters ...cluster.Cluster) *fakeStore {
	return &fakeStore{
		fakeHistory: h,
		clusters:    clusters,
		saved:       map[string]*cluster.Assessment{},
	}
}

func (f *fakeStore) ListScorable(_ context.Context, _ int) ([]cluster.Cluster, error) {
	return f.clusters, nil
}

func (f *fakeStore) SaveAssessment(_ context.Context, id string, a *cluster.Assessment) error {
	f.saved[id] = a
	return nil
}

func strongCluster(id string) cluster.Cluster {
	return cluster.Cluster{
		ID:                  id,
		Title:               "First novel AI system approved in clinical trial",
		Takeaway:            "A new state-of-the-art model was approved by the FDA after a clinical trial with 2300 patients, and is now deployed in production at scale across real-world hospital settings.",
		ContentTypes:        []string{cluster.ContentPeerReviewed},
		DistinctSourceCount: 4,
		HasFullDocument:     true,
		Active:              true,
		CreatedAt:           time.Now().UTC().Add(-3 * 24 * time.Hour),
	}
}

func TestRescoreLabelsAndPersists(t *testing.T) {
	weak := cluster.Cluster{
		ID:                  "weak",
		Title:               "Quarterly update on model training",
		Takeaway:            "Throughput figures across hardware generations.",
		DistinctSourceCount: 1,
		Active:              true,
	}

	h := &fakeHistory{
		meta: map[string]cluster.Meta{
			"strong": recentMeta(""),
			"weak":   recentMeta(""),
		},
		stats: map[string]ScoreStats{
			statsKey("", ""): {P99: 0.50, Count: 200},
		},
	}
	store := newFakeStore(h, strongCluster("strong"), weak)

	outcomes, err := NewEngine(store, nil).Rescore(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	strong := store.saved["strong"]
	require.NotNil(t, strong)
	require.True(t, strong.Result.Eligible)
	require.NotNil(t, strong.Result.Final)
	assert.Greater(t, *strong.Result.Final, 0.50)
	assert.True(t, strong.HighImpact)
	assert.True(t, strong.PassedThreshold)
	assert.Equal(t, cluster.BucketGlobal, strong.Resolution.Bucket)
	assert.InDelta(t, 0.50, strong.Resolution.Threshold, 1e-9)
	assert.False(t, strong.AssessedAt.IsZero())

	assert.True(t, outcomes[0].NewlyLabeled)

	weakSaved := store.saved["weak"]
	require.NotNil(t, weakSaved)
	assert.False(t, weakSaved.Result.Eligible)
	assert.Nil(t, weakSaved.Result.Final)
	assert.False(t, weakSaved.HighImpact)
	assert.Equal(t, cluster.ScoreVersionProvisional, weakSaved.Result.Version)
}

func TestRescoreAlreadyLabeledIsNotNewlyLabeled(t *testing.T) {
	c := strongCluster("strong")
	c.HighImpact = true

	h := &fakeHistory{
		meta:  map[string]cluster.Meta{"strong": recentMeta("")},
		stats: map[string]ScoreStats{statsKey("", ""): {P99: 0.50, Count: 200}},
	}
	store := newFakeStore(h, c)

	outcomes, err := NewEngine(store, nil).Rescore(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Assessment.HighImpact)
	assert.False(t, outcomes[0].NewlyLabeled)
}

func TestRescoreKeepsLastThresholdOnCalibrationFailure(t *testing.T) {
	c := strongCluster("strong")
	prev := 0.88
	c.Threshold = &prev
	c.ThresholdBucket = string(cluster.BucketTopicAge)

	h := &fakeHistory{
		meta:     map[string]cluster.Meta{"strong": recentMeta("llm")},
		statsErr: errors.New("database is locked"),
	}
	store := newFakeStore(h, c)

	outcomes, err := NewEngine(store, nil).Rescore(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	saved := store.saved["strong"]
	require.NotNil(t, saved)
	assert.Equal(t, cluster.BucketTopicAge, saved.Resolution.Bucket)
	assert.InDelta(t, 0.88, saved.Resolution.Threshold, 1e-9)
}

func TestRescoreEmptyStore(t *testing.T) {
	store := newFakeStore(&fakeHistory{})

	outcomes, err := NewEngine(store, nil).Rescore(context.Background())
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}
