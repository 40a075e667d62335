package post

import (
	"strings"
	"unicode/utf8"
)

// ChunkLines joins digest lines into payloads under the length limit.
// Splits happen on line boundaries; every continuation chunk is prefixed
// with the digest title and a "(продолжение)" marker. A single line longer
// than the limit is hard-wrapped at rune boundaries.
func (f *Formatter) ChunkLines(title string, lines []string) []string {
	full := strings.TrimSpace(strings.Join(lines, "\n"))
	if len(full) <= f.maxLength {
		return []string{full}
	}

	continuation := "*" + title + " (продолжение)*\n"

	var chunks []string
	current := ""
	for _, line := range lines {
		for _, piece := range wrapLine(line, f.maxLength-len(continuation)) {
			candidate := piece
			if current != "" {
				candidate = strings.TrimSpace(current + "\n" + piece)
			}
			if len(candidate) <= f.maxLength {
				current = candidate
				continue
			}
			if current != "" {
				chunks = append(chunks, current)
			}
			if len(chunks) == 0 {
				// The opening chunk keeps the original header, no marker.
				current = piece
			} else {
				current = continuation + piece
			}
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// wrapLine splits a line into pieces of at most limit bytes without cutting
// inside a rune.
func wrapLine(line string, limit int) []string {
	if limit <= 0 || len(line) <= limit {
		return []string{line}
	}
	var pieces []string
	var b strings.Builder
	for _, r := range line {
		if b.Len()+utf8.RuneLen(r) > limit {
			pieces = append(pieces, b.String())
			b.Reset()
		}
		b.WriteRune(r)
	}
	if b.Len() > 0 {
		pieces = append(pieces, b.String())
	}
	return pieces
}
