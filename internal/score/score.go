// Package score ranks items by importance and flags breaking news. The
// score combines topic weight, keyword signal, source reliability and
// recency decay.
package score

import (
	"math"
	"strings"
	"time"

	"vestnik/internal/config"
	"vestnik/internal/feed"
)

const (
	highKeywordWeight   = 1.2
	mediumKeywordWeight = 0.5

	// Keeps stale-but-important items from decaying to zero.
	freshnessFloor = 0.7

	defaultTopicBase    = 1.0
	defaultSourceWeight = 1.0

	minBreakingThreshold = 1.0

	// High-importance hits alone can flag breaking, regardless of score.
	breakingHighHits = 2
)

type Scorer struct {
	highKeywords   []string
	mediumKeywords []string
	topicBase      map[string]float64
	sourceWeights  map[string]float64
	halfLifeHours  float64

	breaking config.BreakingConfig
}

func New(cfg *config.Config) *Scorer {
	return &Scorer{
		highKeywords:   cfg.Keywords.HighImportance,
		mediumKeywords: cfg.Keywords.MediumImportance,
		topicBase:      cfg.TopicPriorities,
		sourceWeights:  cfg.SourceWeights(),
		halfLifeHours:  cfg.FreshnessHalfLifeHours,
		breaking:       cfg.Breaking,
	}
}

// Apply scores every item in the batch and flags breaking candidates
// against a threshold adapted to the batch size.
func (s *Scorer) Apply(items []feed.NewsItem, now time.Time) {
	threshold := s.AdaptiveThreshold(len(items))
	for i := range items {
		s.Score(&items[i], now, threshold)
	}
}

// Score computes the item's priority and breaking flag in place.
func (s *Scorer) Score(item *feed.NewsItem, now time.Time, threshold float64) {
	text := strings.ToLower(item.Title + " " + item.Description)

	highHits := countHits(text, s.highKeywords)
	mediumHits := countHits(text, s.mediumKeywords)
	importance := float64(highHits)*highKeywordWeight + float64(mediumHits)*mediumKeywordWeight

	base, ok := s.topicBase[item.Topic]
	if !ok {
		base = defaultTopicBase
	}
	weight, ok := s.sourceWeights[item.Source]
	if !ok {
		weight = defaultSourceWeight
	}

	ageHours := now.Sub(item.PublishedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	freshness := math.Exp(-ageHours / s.halfLifeHours)

	item.PriorityScore = (base + importance) * weight * (freshnessFloor + freshness)
	item.IsBreaking = s.breaking.Enabled &&
		(highHits >= breakingHighHits || item.PriorityScore >= threshold)
}

// AdaptiveThreshold raises the breaking bar during high-volume batches and
// lowers it during quiet ones, never below 1.0.
func (s *Scorer) AdaptiveThreshold(batchSize int) float64 {
	threshold := s.breaking.BaseThreshold
	switch {
	case batchSize >= s.breaking.LargeBatch:
		threshold += s.breaking.ThresholdDelta
	case batchSize <= s.breaking.SmallBatch:
		threshold -= s.breaking.ThresholdDelta / 2
	}
	if threshold < minBreakingThreshold {
		threshold = minBreakingThreshold
	}
	return threshold
}

func countHits(text string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return hits
}
