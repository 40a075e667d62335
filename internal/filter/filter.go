// Package filter drops unwanted items before classification: local crime
// chronicle, source-specific excluded topics, non-global crime and
// low-value clickbait.
package filter

import (
	"strings"

	"vestnik/internal/config"
	"vestnik/internal/feed"
	"vestnik/internal/logger"
	"vestnik/internal/metrics"
	"vestnik/internal/normalize"
)

// Drop reasons, also used as metric labels.
const (
	ReasonLocalNoise    = "local_noise"
	ReasonExcludedTopic = "excluded_topic"
	ReasonBlockedCrime  = "blocked_crime"
	ReasonLowValue      = "low_value"
)

const (
	minTitleLength = 12

	// Description that only restates the title by this margin is filler.
	titleEchoTailLength  = 30
	titleOverlapRatio    = 0.9
	shortWithLowValueCap = 220
)

type Chain struct {
	keywords             config.Keywords
	excludedSources      map[string]struct{}
	stopWords            map[string]struct{}
	minDescriptionLength int
}

func NewChain(cfg *config.Config) *Chain {
	excluded := make(map[string]struct{}, len(cfg.Keywords.ExcludedSources))
	for _, s := range cfg.Keywords.ExcludedSources {
		excluded[s] = struct{}{}
	}
	return &Chain{
		keywords:             cfg.Keywords,
		excludedSources:      excluded,
		stopWords:            cfg.StopWordSet(),
		minDescriptionLength: cfg.MinDescriptionLength,
	}
}

// Apply runs the chain and returns the surviving items.
func (c *Chain) Apply(items []feed.NewsItem) []feed.NewsItem {
	kept := make([]feed.NewsItem, 0, len(items))
	for _, item := range items {
		if reason := c.DropReason(&item); reason != "" {
			metrics.ItemsFiltered.WithLabelValues(reason).Inc()
			logger.Debug("item filtered", "reason", reason, "title", item.Title, "source", item.Source)
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// DropReason returns the first matching drop reason, or "" to keep the item.
func (c *Chain) DropReason(item *feed.NewsItem) string {
	switch {
	case c.isLocalNoise(item):
		return ReasonLocalNoise
	case c.isExcludedTopic(item):
		return ReasonExcludedTopic
	case c.isBlockedCrime(item):
		return ReasonBlockedCrime
	case c.isLowValue(item):
		return ReasonLowValue
	}
	return ""
}

func itemText(item *feed.NewsItem) string {
	return strings.ToLower(item.Title + " " + item.Description)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// isLocalNoise needs both a petty-crime keyword and a local geography
// marker. Crime words alone may still be federal news.
func (c *Chain) isLocalNoise(item *feed.NewsItem) bool {
	text := itemText(item)
	return containsAny(text, c.keywords.LocalCrime) && containsAny(text, c.keywords.LocalMarkers)
}

// isExcludedTopic suppresses configured topics, but only for sources on the
// exclusion list.
func (c *Chain) isExcludedTopic(item *feed.NewsItem) bool {
	if _, ok := c.excludedSources[item.Source]; !ok {
		return false
	}
	return containsAny(itemText(item), c.keywords.ExcludedTopics)
}

// isBlockedCrime drops crime coverage unless it carries a globally
// significant marker.
func (c *Chain) isBlockedCrime(item *feed.NewsItem) bool {
	text := itemText(item)
	if !containsAny(text, c.keywords.Crime) {
		return false
	}
	return !containsAny(text, c.keywords.AllowedGlobalCrime)
}

// isLowValue catches empty or clickbait filler: short titles, missing or
// title-echoing descriptions and stock teaser phrasing.
func (c *Chain) isLowValue(item *feed.NewsItem) bool {
	title := strings.ToLower(strings.TrimSpace(item.Title))
	description := strings.ToLower(strings.TrimSpace(item.Description))

	if len([]rune(title)) < minTitleLength {
		return true
	}

	normalizedTitle := strings.Join(strings.Fields(title), " ")
	normalizedDescription := strings.Join(strings.Fields(description), " ")
	if normalizedDescription == "" {
		return true
	}
	if len([]rune(normalizedDescription)) < c.minDescriptionLength {
		return true
	}
	if normalizedDescription == normalizedTitle {
		return true
	}
	if strings.HasPrefix(normalizedDescription, normalizedTitle) {
		tail := strings.Trim(normalizedDescription[len(normalizedTitle):], " .:-—")
		if len([]rune(tail)) < titleEchoTailLength {
			return true
		}
	}

	titleTokens := normalize.TitleTokens(normalizedTitle, c.stopWords)
	descriptionTokens := normalize.TitleTokens(normalizedDescription, c.stopWords)
	if len(titleTokens) > 0 && len(descriptionTokens) > 0 {
		common := 0
		for w := range titleTokens {
			if _, ok := descriptionTokens[w]; ok {
				common++
			}
		}
		overlap := float64(common) / float64(len(titleTokens))
		if overlap >= titleOverlapRatio && len(descriptionTokens) <= len(titleTokens)+2 {
			return true
		}
	}

	text := normalizedTitle + " " + normalizedDescription
	if containsAny(text, c.keywords.LowValuePatterns) {
		if len([]rune(normalizedDescription)) < shortWithLowValueCap {
			return true
		}
	}
	return false
}
