// Package post renders pipeline output into channel-ready Markdown text.
package post

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"vestnik/internal/aggregate"
	"vestnik/internal/storage"
)

const (
	summaryMaxLength  = 180
	factLineMaxLength = 180

	// Room reserved for the source line and link formatting when capping
	// the description inside a single post.
	postFormattingReserve = 200

	maxAlternateLinks = 3
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	sentenceRe   = regexp.MustCompile(`(?:[.!?])\s+`)
	digitRe      = regexp.MustCompile(`\d`)
	quoteRe      = regexp.MustCompile(`[«"].{0,120}?[»"]`)
	hearsayRe    = regexp.MustCompile(`(?i)(по его словам|по её словам|как считает|как полагает).*$`)
)

type Formatter struct {
	maxLength int
}

func NewFormatter(maxLength int) *Formatter {
	return &Formatter{maxLength: maxLength}
}

// CleanText decodes HTML entities, normalizes exotic spaces and collapses
// runs of whitespace.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = html.UnescapeString(text)
	text = strings.NewReplacer(" ", " ", " ", " ", " ", " ", "\r\n", "\n", "\r", "\n").Replace(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// EscapeMarkdown escapes Telegram Markdown control characters.
func EscapeMarkdown(text string) string {
	escaper := strings.NewReplacer(
		"*", "\\*", "_", "\\_", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
		"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
		"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
	)
	return escaper.Replace(text)
}

// RemoveTitleEcho strips a description lead that merely repeats the title.
func RemoveTitleEcho(title, description string) string {
	cleanTitle := CleanText(title)
	cleanDescription := CleanText(description)
	if cleanDescription == "" {
		return ""
	}

	titleLC := strings.Trim(strings.ToLower(cleanTitle), " .:;-")
	descriptionLC := strings.TrimSpace(strings.ToLower(cleanDescription))

	if descriptionLC == titleLC {
		return ""
	}
	if strings.HasPrefix(descriptionLC, titleLC) {
		return strings.TrimLeft(cleanDescription[len(cleanTitle):], " .,:;-\n\t")
	}
	return cleanDescription
}

// SummarizeDescription picks the most informative early sentence: longer
// ones, those with numbers and those with attribution verbs score higher.
func SummarizeDescription(description string, maxLength int) string {
	clean := CleanText(description)
	if clean == "" {
		return ""
	}

	sentences := splitSentences(clean)
	if len(sentences) == 0 {
		return ""
	}
	if len(sentences) > 4 {
		sentences = sentences[:4]
	}

	best := sentences[0]
	bestScore := sentenceScore(best)
	for _, s := range sentences[1:] {
		if score := sentenceScore(s); score > bestScore {
			best, bestScore = s, score
		}
	}

	return truncateRunes(best, maxLength)
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		// Keep the terminal punctuation with the sentence.
		s := strings.TrimSpace(text[start : loc[0]+1])
		if s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func sentenceScore(sentence string) int {
	score := len([]rune(sentence))
	if score > 220 {
		score = 220
	}
	if digitRe.MatchString(sentence) {
		score += 40
	}
	lower := strings.ToLower(sentence)
	for _, marker := range []string{"заявил", "сообщил", "принял", "подписал", "одобрил"} {
		if strings.Contains(lower, marker) {
			score += 25
			break
		}
	}
	return score
}

func truncateRunes(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return strings.TrimRight(string(runes[:maxLength-1]), " ") + "…"
}

// FactLine compresses a post to a single factual line for digest bullets:
// title plus summary, with quotes and hearsay tails removed.
func FactLine(title, description string) string {
	cleanTitle := CleanText(title)

	base := cleanTitle
	if description != "" {
		summary := SummarizeDescription(description, 110)
		if summary != "" && !strings.Contains(strings.ToLower(cleanTitle), strings.ToLower(summary)) {
			base = cleanTitle + " — " + summary
		}
	}

	base = quoteRe.ReplaceAllString(base, "")
	base = hearsayRe.ReplaceAllString(base, "")
	base = whitespaceRe.ReplaceAllString(base, " ")
	base = strings.Trim(base, " .,-")

	return truncateRunes(base, factLineMaxLength)
}

// FormatPost renders one publishable post: merged-topic header, title,
// description, source attribution and links, optionally a related-news line.
func (f *Formatter) FormatPost(p *aggregate.MergedPost, related *storage.RecentNews) string {
	title := CleanText(p.Title)
	description := RemoveTitleEcho(title, p.Description)

	source := p.Source()

	var parts []string

	if p.IsMerged() {
		parts = append(parts, fmt.Sprintf("🧩 *Сводка по теме* · объединено источников: %d", p.TopicSize), "")
	} else if related != nil {
		parts = append(parts, "📰 *Дополнение к новости*", "")
	}

	parts = append(parts, fmt.Sprintf("*%s*", title), "")

	if description != "" {
		maxDescLength := f.maxLength - utf8.RuneCountInString(title) - utf8.RuneCountInString(source) - postFormattingReserve
		if maxDescLength > 0 {
			description = truncateRunes(description, maxDescLength)
		}
		parts = append(parts, description, "")
	}

	parts = append(parts,
		fmt.Sprintf("📌 Источник: %s", source),
		fmt.Sprintf("🔗 [Читать полностью](%s)", p.URL),
	)
	alternates := p.AlternateURLs
	if len(alternates) > maxAlternateLinks {
		alternates = alternates[:maxAlternateLinks]
	}
	for _, u := range alternates {
		parts = append(parts, fmt.Sprintf("🔗 [Дополнительный источник](%s)", u))
	}

	if related != nil && !p.IsMerged() {
		parts = append(parts, "", fmt.Sprintf("📖 *Связанная новость:* %s", related.Title))
	}

	text := strings.Join(parts, "\n")
	return truncateRunes(text, f.maxLength)
}

// FormatCurrencyPost renders the exchange-rate service post.
func (f *Formatter) FormatCurrencyPost(snap storage.CurrencySnapshot, updatedAt time.Time) string {
	text := fmt.Sprintf(
		"*Курсы валют*\n%s\n\n"+
			"$ Доллар — %.2f ₽\n"+
			"€ Евро — %.2f ₽\n"+
			"¥ Юань — %.2f ₽\n"+
			"₽ Рубль — %.4f $\n"+
			"₿ Bitcoin — %s $ / %s ₽\n\n"+
			"Обновлено: %s МСК",
		updatedAt.Format("02.01.2006"),
		snap.USDRUB, snap.EURRUB, snap.CNYRUB, snap.RUBUSD,
		groupThousands(snap.BTCUSD), groupThousands(snap.BTCRUB),
		updatedAt.Format("15:04"),
	)
	return text
}

// groupThousands prints a whole number with thin spacing between groups.
func groupThousands(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
