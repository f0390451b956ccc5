package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/impactgate/pkg/cluster"
)

func item(id, source, title string, published time.Time) Item {
	return Item{
		ID:          id,
		Source:      source,
		Title:       title,
		URL:         "https://example.com/" + id,
		PublishedAt: published,
	}
}

func TestBuildClustersGroupsSimilarTitles(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	items := []Item{
		item("a", "techblog", "OpenAI releases new reasoning model for developers", base),
		item("b", "hackernews", "OpenAI releases reasoning model", base.Add(time.Hour)),
		item("c", "arxiv", "Sparse attention kernels for long context transformers", base.Add(2*time.Hour)),
	}

	clusters := BuildClusters(items)
	require.Len(t, clusters, 2)

	// Oldest representative first.
	first := clusters[0]
	assert.Equal(t, "OpenAI releases new reasoning model for developers", first.Title)
	assert.Equal(t, 2, first.DistinctSourceCount)
	assert.ElementsMatch(t, []string{"a", "b"}, first.ItemIDs)
	assert.Equal(t, base, first.CreatedAt)

	second := clusters[1]
	assert.Equal(t, 1, second.DistinctSourceCount)
	assert.Contains(t, second.RiskFlags, cluster.RiskSingleSource)
}

func TestBuildClustersEmpty(t *testing.T) {
	assert.Nil(t, BuildClusters(nil))
}

func TestClusterIDStableAcrossRewording(t *testing.T) {
	// Stopword and punctuation changes must not move the story to a new
	// cluster record.
	a := clusterID("OpenAI releases a new reasoning model")
	b := clusterID("OpenAI Releases New Reasoning Model!")
	c := clusterID("Anthropic releases a new reasoning model")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestContentTypes(t *testing.T) {
	base := time.Now().UTC()

	group := []Item{
		item("a", "arxiv", "Paper title", base),
		{ID: "b", Source: "journal-feed", Title: "Same story", Tags: []string{"peer-reviewed"}, PublishedAt: base},
		{ID: "c", Source: "techblog", Title: "Coverage", PublishedAt: base},
	}

	types := contentTypes(group)
	assert.ElementsMatch(t, []string{
		cluster.ContentPreprint,
		cluster.ContentPeerReviewed,
		cluster.ContentNews,
	}, types)
}

func TestRiskFlagsPressReleaseOnly(t *testing.T) {
	base := time.Now().UTC()

	press := []Item{
		{ID: "a", Source: "wire", Title: "Vendor announces new platform", PublishedAt: base},
		{ID: "b", Source: "wire2", Title: "Press release: vendor platform launch", PublishedAt: base},
	}
	flags := riskFlags(press, 2)
	assert.Contains(t, flags, cluster.RiskPressReleaseOnly)
	assert.NotContains(t, flags, cluster.RiskSingleSource)

	mixed := append(press, Item{ID: "c", Source: "paper", Title: "Independent evaluation of vendor platform", PublishedAt: base})
	assert.NotContains(t, riskFlags(mixed, 3), cluster.RiskPressReleaseOnly)
}

func TestHasFullDocumentPropagates(t *testing.T) {
	base := time.Now().UTC()

	group := []Item{
		item("a", "techblog", "Some story", base),
		{ID: "b", Source: "arxiv", Title: "Some story", FullText: true, PublishedAt: base.Add(time.Hour)},
	}

	c := buildCluster(group, base)
	assert.True(t, c.HasFullDocument)
}

func TestTakeawayIsLongestSummary(t *testing.T) {
	base := time.Now().UTC()

	group := []Item{
		{ID: "a", Source: "s1", Title: "Story", Summary: "short", PublishedAt: base},
		{ID: "b", Source: "s2", Title: "Story", Summary: "a considerably longer summary of the story", PublishedAt: base.Add(time.Hour)},
	}

	c := buildCluster(group, base)
	assert.Equal(t, "Story", c.Title)
	assert.Equal(t, "a considerably longer summary of the story", c.Takeaway)
}

func TestJaccardSimilarity(t *testing.T) {
	a := []string{"openai", "releases", "reasoning", "model"}
	b := []string{"openai", "releases", "reasoning", "model", "developers"}

	assert.InDelta(t, 0.8, jaccardSimilarity(a, b), 1e-9)
	assert.Zero(t, jaccardSimilarity(a, nil))
	assert.Zero(t, jaccardSimilarity(nil, nil))
}

func TestTopicScores(t *testing.T) {
	c := &cluster.Cluster{
		Title:    "New transformer architecture sets benchmark record",
		Takeaway: "A large language model trained with reinforcement learning.",
	}

	scores := TopicScores(c, nil)
	require.Contains(t, scores, "llm")
	require.Contains(t, scores, "ml_research")
	assert.NotContains(t, scores, "robotics")

	// Diminishing returns, capped at 1.0.
	assert.InDelta(t, 0.7, scores["llm"], 1e-9)       // transformer + large language model
	assert.LessOrEqual(t, scores["ml_research"], 1.0) // benchmark + training + architecture + rl
}

func TestFilterMatches(t *testing.T) {
	f := NewFilter(nil, []string{"webinar"})

	assert.True(t, f.Matches("New large language model released"))
	assert.False(t, f.Matches("Gardening tips for the summer"))
	assert.False(t, f.Matches("Join our LLM webinar next week"))
}
