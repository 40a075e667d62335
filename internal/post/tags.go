package post

import "strings"

var categoryEmoji = map[string]string{
	"general":       "📰",
	"politics":      "🏛️",
	"world":         "🌍",
	"мир":           "🌍",
	"россия":        "🇷🇺",
	"экономика":     "💹",
	"общество":      "👥",
	"конфликты":     "⚔️",
	"экономика_рф":  "💹🇷🇺",
	"экономика_мир": "💹🌍",
	"политика_рф":   "🏛️🇷🇺",
	"политика_мир":  "🏛️🌍",
	"общество_рф":   "👥🇷🇺",
	"общество_мир":  "👥🌍",
	"конфликты_рф":  "🇷🇺⚔️",
	"конфликты_мир": "🌍⚔️",
}

// CategoryEmoji maps a category label to its tag emoji.
func CategoryEmoji(category string) string {
	if emoji, ok := categoryEmoji[category]; ok {
		return emoji
	}
	return "📰"
}

// AddCategoryTag prefixes the post with an emoji tag line covering every
// category the story carries.
func AddCategoryTag(text string, categories []string) string {
	if len(categories) == 0 {
		return text
	}
	tags := make([]string, 0, len(categories))
	for _, c := range categories {
		tags = append(tags, CategoryEmoji(c)+" "+strings.ToUpper(c))
	}
	return strings.Join(tags, " | ") + "\n\n" + text
}
