package ingest

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mmcdole/gofeed"
)

// Feed is a named RSS/Atom feed URL.
type Feed struct {
	Name string
	URL  string
}

// RSS collects research/news stories from RSS/Atom feeds.
type RSS struct {
	client *http.Client
	parser *gofeed.Parser
	feeds  []Feed
	filter *Filter
	maxAge time.Duration
}

// NewRSS creates a new RSS collector. maxAge bounds how far back
// collected entries may reach; zero means 7 days.
func NewRSS(feeds []Feed, filter *Filter, maxAge time.Duration) *RSS {
	if maxAge == 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &RSS{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		feeds:  feeds,
		filter: filter,
		maxAge: maxAge,
	}
}

func (r *RSS) Name() string { return "rss" }

func (r *RSS) Collect(ctx context.Context) ([]Item, error) {
	var allItems []Item

	for _, feed := range r.feeds {
		items, err := r.collectFeed(ctx, feed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  rss feed %s error: %v\n", feed.Name, err)
			continue
		}
		allItems = append(allItems, items...)
	}

	return allItems, nil
}

func (r *RSS) collectFeed(ctx context.Context, feed Feed) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create rss request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "impactgate/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss %s status %d", feed.Name, resp.StatusCode)
	}

	parsed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", feed.Name, err)
	}

	var items []Item
	cutoff := time.Now().Add(-r.maxAge)

	for _, entry := range parsed.Items {
		published := time.Now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}

		if published.Before(cutoff) {
			continue
		}

		// Some feeds are AI-specific, others need filtering.
		if r.filter != nil && !r.filter.Matches(entry.Title+" "+entry.Description) {
			continue
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}

		items = append(items, Item{
			ID:          fmt.Sprintf("rss:%s:%s", feed.Name, entry.GUID),
			Source:      feed.Name,
			Title:       entry.Title,
			Summary:     truncate(summary, 800),
			URL:         link,
			Tags:        entry.Categories,
			FullText:    entry.Content != "",
			PublishedAt: published,
		})
	}

	return items, nil
}
