// Package normalize holds the canonical text and URL normalization shared by
// the dedup gate, the aggregator and the digest assembler. The store persists
// hashes produced here, so every function must stay deterministic across
// restarts.
package normalize

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode"
)

// ItemHash identifies one published item exactly: same source, same URL,
// same title (case-insensitive).
func ItemHash(title, url, source string) string {
	raw := source + "|" + url + "|" + strings.ToLower(strings.TrimSpace(title))
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// URL lowercases a link and strips fragment, query string and trailing
// slashes, collapsing tracking variants of the same address into one key.
func URL(rawURL string) string {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	if u == "" {
		return ""
	}
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	return strings.TrimRight(u, "/")
}

// Title lowercases a headline, drops punctuation and collapses whitespace.
func Title(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	b.Grow(len(t))
	for _, r := range t {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Content produces the comparable form of title+description used for the
// content fingerprint. Punctuation becomes a space so word boundaries
// survive.
func Content(title, description string) string {
	text := strings.ToLower(strings.TrimSpace(title + " " + description))
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ContentHash fingerprints the normalized title+description. Empty content
// yields an empty hash; callers must treat that as "cannot dedupe by
// content".
func ContentHash(title, description string) string {
	normalized := Content(title, description)
	if normalized == "" {
		return ""
	}
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// TitleTokens extracts the significant words of a text: lowercased runs of
// letters and digits at least four runes long, minus stop words. The result
// is a set; it feeds similarity only, never display.
func TitleTokens(text string, stopWords map[string]struct{}) map[string]struct{} {
	tokens := make(map[string]struct{})
	var current []rune
	flush := func() {
		if len(current) >= 4 {
			word := string(current)
			if _, stop := stopWords[word]; !stop {
				tokens[word] = struct{}{}
			}
		}
		current = current[:0]
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current = append(current, r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// Similarity is the token-set overlap of two token sets:
// |common| / max(|a|, |b|). Zero when either side has no tokens.
func Similarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	common := 0
	for token := range small {
		if _, ok := large[token]; ok {
			common++
		}
	}
	max := len(a)
	if len(b) > max {
		max = len(b)
	}
	return float64(common) / float64(max)
}
