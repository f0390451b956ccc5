package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/elonfeng/impactgate/pkg/cluster"
)

// similarityThreshold is the Jaccard index above which two item titles
// are considered the same story.
const similarityThreshold = 0.3

// BuildClusters groups collected items into story clusters. Cluster IDs
// are derived from the representative title's significant tokens, so
// re-ingesting the same story updates the existing record instead of
// creating a new one.
func BuildClusters(items []Item) []cluster.Cluster {
	if len(items) == 0 {
		return nil
	}

	n := len(items)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(x, y int) {
		px, py := find(x), find(y)
		if px != py {
			parent[px] = py
		}
	}

	tokens := make([][]string, n)
	for i, item := range items {
		tokens[i] = significantTokens(item.Title)
	}

	// All pairs; n is bounded by the collectors' result limits.
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if jaccardSimilarity(tokens[i], tokens[j]) >= similarityThreshold {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	now := time.Now().UTC()
	var clusters []cluster.Cluster

	for _, indices := range groups {
		group := make([]Item, 0, len(indices))
		for _, idx := range indices {
			group = append(group, items[idx])
		}
		clusters = append(clusters, buildCluster(group, now))
	}

	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].CreatedAt.Before(clusters[j].CreatedAt)
	})
	return clusters
}

func buildCluster(group []Item, now time.Time) cluster.Cluster {
	sort.Slice(group, func(i, j int) bool {
		return group[i].PublishedAt.Before(group[j].PublishedAt)
	})

	// Earliest item names the story; the longest summary becomes the
	// takeaway.
	representative := group[0]
	takeaway := ""
	fullDoc := false
	sources := make(map[string]bool)
	var itemIDs []string

	for _, item := range group {
		if len(item.Summary) > len(takeaway) {
			takeaway = item.Summary
		}
		if item.FullText {
			fullDoc = true
		}
		sources[item.Source] = true
		itemIDs = append(itemIDs, item.ID)
	}

	c := cluster.Cluster{
		ID:                  clusterID(representative.Title),
		Title:               representative.Title,
		Takeaway:            takeaway,
		URL:                 representative.URL,
		ContentTypes:        contentTypes(group),
		RiskFlags:           riskFlags(group, len(sources)),
		ItemIDs:             itemIDs,
		DistinctSourceCount: len(sources),
		HasFullDocument:     fullDoc,
		Active:              true,
		CreatedAt:           representative.PublishedAt.UTC(),
		UpdatedAt:           now,
	}
	return c
}

func contentTypes(group []Item) []string {
	seen := make(map[string]bool)
	var types []string
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}

	for _, item := range group {
		if item.Source == "arxiv" {
			add(cluster.ContentPreprint)
			continue
		}
		tagged := false
		for _, tag := range item.Tags {
			switch strings.ToLower(tag) {
			case "journal", "peer-reviewed", "peer_reviewed":
				add(cluster.ContentPeerReviewed)
				tagged = true
			case "report", "whitepaper":
				add(cluster.ContentReport)
				tagged = true
			}
		}
		if !tagged {
			add(cluster.ContentNews)
		}
	}
	return types
}

func riskFlags(group []Item, sourceCount int) []string {
	var flags []string
	if sourceCount <= 1 {
		flags = append(flags, cluster.RiskSingleSource)
	}

	pressOnly := len(group) > 0
	for _, item := range group {
		text := strings.ToLower(item.Title + " " + item.Summary)
		if !strings.Contains(text, "press release") && !strings.Contains(text, "announces") {
			pressOnly = false
			break
		}
	}
	if pressOnly {
		flags = append(flags, cluster.RiskPressReleaseOnly)
	}
	return flags
}

// clusterID hashes the sorted significant tokens of the representative
// title, so minor rewordings map to the same cluster.
func clusterID(title string) string {
	tokens := significantTokens(title)
	sort.Strings(tokens)
	sum := sha1.Sum([]byte(strings.Join(tokens, " ")))
	return hex.EncodeToString(sum[:])[:16]
}

// significantTokens extracts meaningful words from a title.
func significantTokens(title string) []string {
	stopwords := map[string]bool{
		"a": true, "an": true, "the": true, "and": true, "or": true,
		"but": true, "in": true, "on": true, "at": true, "to": true,
		"for": true, "of": true, "with": true, "by": true, "from": true,
		"is": true, "are": true, "was": true, "were": true, "be": true,
		"been": true, "being": true, "have": true, "has": true, "had": true,
		"do": true, "does": true, "did": true, "will": true, "would": true,
		"could": true, "should": true, "may": true, "might": true,
		"this": true, "that": true, "these": true, "those": true,
		"it": true, "its": true, "i": true, "we": true, "you": true,
		"how": true, "what": true, "when": true, "where": true, "why": true,
		"not": true, "no": true, "just": true, "about": true,
		"up": true, "out": true, "if": true, "so": true, "can": true,
		"all": true, "more": true, "also": true, "than": true, "very": true,
	}

	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tokens []string
	for _, w := range words {
		if len(w) >= 2 && !stopwords[w] {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// jaccardSimilarity returns the Jaccard index of two token sets.
func jaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]bool)
	for _, t := range a {
		setA[t] = true
	}

	setB := make(map[string]bool)
	for _, t := range b {
		setB[t] = true
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}

	unionSize := len(setA) + len(setB) - intersection
	if unionSize == 0 {
		return 0
	}
	return float64(intersection) / float64(unionSize)
}
