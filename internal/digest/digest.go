// Package digest assembles matured posts into the fixed-section daily
// digest, with per-bucket caps and a deferred second wave for overflow.
package digest

import (
	"fmt"
	"sort"
	"time"

	"vestnik/internal/aggregate"
	"vestnik/internal/normalize"
	"vestnik/internal/post"
)

// Rubric keys inside the digest, composed as block|rubric.
const (
	rubricRussiaPolitics = "РОССИЯ|Политика"
	rubricRussiaEconomy  = "РОССИЯ|Экономика"
	rubricRussiaSecurity = "РОССИЯ|Безопасность"
	rubricWorldGeo       = "МИР|Геополитика"
	rubricWorldEconomy   = "МИР|Экономика"
	rubricWorldLife      = "МИР|Жизнь за рубежом"
)

// bucketRubrics maps a classified topic_region key onto its digest rubric.
// Keys missing here (e.g. общество_рф) are excluded from the digest.
var bucketRubrics = map[string]string{
	"политика_рф":   rubricRussiaPolitics,
	"экономика_рф":  rubricRussiaEconomy,
	"конфликты_рф":  rubricRussiaSecurity,
	"политика_мир":  rubricWorldGeo,
	"конфликты_мир": rubricWorldGeo,
	"экономика_мир": rubricWorldEconomy,
	"общество_мир":  rubricWorldLife,
}

// orderedSections fixes the rendering order of blocks and rubrics.
var orderedSections = []struct {
	block   string
	rubrics []string
}{
	{"РОССИЯ", []string{"Политика", "Экономика", "Безопасность"}},
	{"МИР", []string{"Геополитика", "Экономика", "Жизнь за рубежом"}},
}

// Result is one assembled digest: ready-to-send chunks, the posts that
// actually made it into a rendered line, and the overflow held back for the
// second wave. Posts in unmapped buckets or deduplicated away appear in
// neither list.
type Result struct {
	Chunks   []string
	Rendered []aggregate.MergedPost
	Overflow []aggregate.MergedPost
	Included int
}

type Assembler struct {
	formatter *post.Formatter
	bucketCap int
}

func NewAssembler(formatter *post.Formatter, bucketCap int) *Assembler {
	return &Assembler{formatter: formatter, bucketCap: bucketCap}
}

// Assemble buckets the posts into the fixed sections, orders each bucket by
// (priority, published) descending, deduplicates across buckets and caps
// each bucket, deferring overflow.
func (a *Assembler) Assemble(title string, posts []aggregate.MergedPost, generatedAt time.Time) Result {
	buckets := make(map[string][]aggregate.MergedPost)
	for _, p := range posts {
		rubric, ok := bucketRubrics[p.BucketKey()]
		if !ok {
			continue
		}
		buckets[rubric] = append(buckets[rubric], p)
	}

	for rubric := range buckets {
		items := buckets[rubric]
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].PriorityScore != items[j].PriorityScore {
				return items[i].PriorityScore > items[j].PriorityScore
			}
			return items[i].PublishedAt.After(items[j].PublishedAt)
		})
		buckets[rubric] = items
	}

	result := Result{}
	usedURLs := make(map[string]struct{})
	usedHashes := make(map[string]struct{})

	lines := []string{fmt.Sprintf("*%s*", title)}
	if !generatedAt.IsZero() {
		lines = append(lines, fmt.Sprintf("🕛 %s МСК", generatedAt.Format("02.01.2006 15:04")))
	}
	lines = append(lines, "")

	for _, section := range orderedSections {
		lines = append(lines, fmt.Sprintf("*%s*", section.block))
		for _, rubric := range section.rubrics {
			lines = append(lines, fmt.Sprintf("_%s_", rubric))

			taken := 0
			empty := true
			for _, item := range buckets[section.block+"|"+rubric] {
				if a.isDuplicate(&item, usedURLs, usedHashes) {
					continue
				}
				if taken >= a.bucketCap {
					result.Overflow = append(result.Overflow, item)
					continue
				}
				lines = append(lines, "• "+post.FactLine(item.Title, item.Description))
				a.markUsed(&item, usedURLs, usedHashes)
				taken++
				empty = false
				result.Included++
				result.Rendered = append(result.Rendered, item)
			}
			if empty {
				lines = append(lines, "• —")
			}
			lines = append(lines, "")
		}
	}

	result.Chunks = a.formatter.ChunkLines(title, lines)
	return result
}

func (a *Assembler) isDuplicate(item *aggregate.MergedPost, usedURLs, usedHashes map[string]struct{}) bool {
	if u := normalize.URL(item.URL); u != "" {
		if _, ok := usedURLs[u]; ok {
			return true
		}
	}
	if h := normalize.ContentHash(item.Title, item.Description); h != "" {
		if _, ok := usedHashes[h]; ok {
			return true
		}
	}
	return false
}

func (a *Assembler) markUsed(item *aggregate.MergedPost, usedURLs, usedHashes map[string]struct{}) {
	if u := normalize.URL(item.URL); u != "" {
		usedURLs[u] = struct{}{}
	}
	if h := normalize.ContentHash(item.Title, item.Description); h != "" {
		usedHashes[h] = struct{}{}
	}
}
