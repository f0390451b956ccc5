package ingest

import (
	"context"
	"fmt"
	"os"

	"github.com/elonfeng/impactgate/pkg/cluster"
)

// Sink is where ingestion lands its clusters.
type Sink interface {
	UpsertCluster(ctx context.Context, c *cluster.Cluster) error
	AssignTopics(ctx context.Context, clusterID string, topics map[string]float64) error
}

// Run collects from all sources, groups the items into story clusters,
// and persists them with topic assignments. Per-source failures are
// logged and skipped so one dead feed does not block the rest.
func Run(ctx context.Context, sources []Source, sink Sink, topicKeywords map[string][]string) (items, clusters int, err error) {
	var collected []Item

	for _, src := range sources {
		batch, err := src.Collect(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s error: %v\n", src.Name(), err)
			continue
		}
		fmt.Fprintf(os.Stderr, "  %s: %d items\n", src.Name(), len(batch))
		collected = append(collected, batch...)
	}

	grouped := BuildClusters(collected)
	for i := range grouped {
		c := &grouped[i]
		if err := sink.UpsertCluster(ctx, c); err != nil {
			return len(collected), clusters, fmt.Errorf("upsert cluster %s: %w", c.ID, err)
		}
		if topics := TopicScores(c, topicKeywords); len(topics) > 0 {
			if err := sink.AssignTopics(ctx, c.ID, topics); err != nil {
				return len(collected), clusters, fmt.Errorf("assign topics %s: %w", c.ID, err)
			}
		}
		clusters++
	}

	return len(collected), clusters, nil
}
