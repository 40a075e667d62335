// Package classify assigns each item a region (рф/мир) and a topic, both
// derived from case-insensitive keyword counts over title and description.
package classify

import (
	"strings"

	"vestnik/internal/config"
	"vestnik/internal/feed"
)

// Region labels.
const (
	RegionRussia = "рф"
	RegionWorld  = "мир"
)

// Topic labels, in priority order.
const (
	TopicConflict = "конфликты"
	TopicEconomy  = "экономика"
	TopicSociety  = "общество"
	TopicPolitics = "политика"
)

type Classifier struct {
	keywords config.Keywords
}

func New(cfg *config.Config) *Classifier {
	return &Classifier{keywords: cfg.Keywords}
}

// KeywordScore counts how many list members occur in text as substrings.
// It is a signal strength, not a boolean.
func KeywordScore(text string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return hits
}

// Classify fills Region, Topic, Categories and the primary Category on the
// item. It returns false when no topic could be determined; such items are
// dropped from the pipeline entirely.
func (c *Classifier) Classify(item *feed.NewsItem) bool {
	text := strings.ToLower(item.Title + " " + item.Description)

	item.Region = c.region(text, item.Category)
	item.Topic = c.topic(text)
	if item.Topic == "" {
		return false
	}

	item.Categories = c.categories(text)
	item.Category = item.Categories[0]
	return true
}

// region prefers whichever keyword set scores higher. When neither scores,
// the static source category decides: feeds curated as domestic default to
// рф, everything else to мир.
func (c *Classifier) region(text, sourceCategory string) string {
	russia := KeywordScore(text, c.keywords.Russia)
	world := KeywordScore(text, c.keywords.World)

	switch {
	case russia > world:
		return RegionRussia
	case world > 0:
		return RegionWorld
	case russia == 0 && world == 0 && domesticSourceHint(sourceCategory):
		return RegionRussia
	default:
		return RegionWorld
	}
}

func domesticSourceHint(category string) bool {
	return category == "general" || category == "politics"
}

// topic walks the priority chain, first match wins. Conflict coverage is
// vetoed by noise counter-keywords (films, anniversaries, drills).
func (c *Classifier) topic(text string) string {
	conflict := KeywordScore(text, c.keywords.Conflict)
	noise := KeywordScore(text, c.keywords.ConflictNoise)
	economy := KeywordScore(text, c.keywords.Economy)
	society := KeywordScore(text, c.keywords.Society)
	politics := KeywordScore(text, c.keywords.Politics)

	switch {
	case conflict > 0 && noise == 0:
		return TopicConflict
	case economy > 0 && economy >= society:
		return TopicEconomy
	case society > 0 && society >= politics:
		return TopicSociety
	case politics > 0:
		return TopicPolitics
	default:
		return ""
	}
}

// categories collects every topic with any keyword signal, in priority
// order, for the cross-category related-news index. The first entry becomes
// the item's primary category.
func (c *Classifier) categories(text string) []string {
	var out []string
	checks := []struct {
		topic    string
		keywords []string
	}{
		{TopicConflict, c.keywords.Conflict},
		{TopicEconomy, c.keywords.Economy},
		{TopicSociety, c.keywords.Society},
		{TopicPolitics, c.keywords.Politics},
	}
	for _, check := range checks {
		if KeywordScore(text, check.keywords) > 0 {
			if check.topic == TopicConflict && KeywordScore(text, c.keywords.ConflictNoise) > 0 {
				continue
			}
			out = append(out, check.topic)
		}
	}
	return out
}
