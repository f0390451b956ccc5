package ingest

import (
	"context"
	"time"
)

// Item is a single collected story before clustering.
type Item struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	Tags        []string  `json:"tags"`
	FullText    bool      `json:"full_text"`
	PublishedAt time.Time `json:"published_at"`
}

// Source is the interface every collector implements.
type Source interface {
	Name() string
	Collect(ctx context.Context) ([]Item, error)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
