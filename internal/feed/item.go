// Package feed collects news items from RSS sources and normalizes them
// into the pipeline's working model.
package feed

import (
	"time"

	"vestnik/internal/normalize"
)

// NewsItem is one story as the pipeline sees it. Collection fills the raw
// fields; classification and scoring attach theirs before aggregation.
type NewsItem struct {
	Title       string
	URL         string
	Description string
	Source      string
	Category    string
	PublishedAt time.Time
	Images      []string

	// Set by the classifier.
	Region     string
	Topic      string
	Categories []string

	// Set by the scorer.
	PriorityScore float64
	IsBreaking    bool
}

// Hash identifies the item for exact-duplicate checks in the store.
func (n *NewsItem) Hash() string {
	return normalize.ItemHash(n.Title, n.URL, n.Source)
}

// ContentHash identifies the story text independent of source and URL.
func (n *NewsItem) ContentHash() string {
	return normalize.ContentHash(n.Title, n.Description)
}

// NormalizedURL is the aggregation key for this item.
func (n *NewsItem) NormalizedURL() string {
	return normalize.URL(n.URL)
}

// BucketKey composes the digest bucket this item belongs to. Empty when the
// classifier left the topic undetermined.
func (n *NewsItem) BucketKey() string {
	if n.Topic == "" || n.Region == "" {
		return ""
	}
	return n.Topic + "_" + n.Region
}
