package post

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vestnik/internal/aggregate"
	"vestnik/internal/storage"
)

func TestCleanText(t *testing.T) {
	assert.Equal(t, "A & B", CleanText("A &amp;  B"))
	assert.Equal(t, "две строки", CleanText("  две \r\n строки \t"))
	assert.Empty(t, CleanText(""))
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `цена \- 100\.5\!`, EscapeMarkdown("цена - 100.5!"))
}

func TestRemoveTitleEcho(t *testing.T) {
	title := "Заголовок новости"

	assert.Empty(t, RemoveTitleEcho(title, "Заголовок новости"))
	assert.Equal(t, "а дальше подробности",
		RemoveTitleEcho(title, "Заголовок новости: а дальше подробности"))
	assert.Equal(t, "Независимое описание",
		RemoveTitleEcho(title, "Независимое описание"))
	assert.Empty(t, RemoveTitleEcho(title, ""))
}

func TestSummarizeDescriptionPrefersInformative(t *testing.T) {
	description := "Коротко. Министр заявил, что бюджет вырастет на 12 процентов в следующем году. Прочее."
	summary := SummarizeDescription(description, 180)
	assert.Contains(t, summary, "Министр заявил")

	long := strings.Repeat("слово ", 60) + "."
	assert.LessOrEqual(t, len([]rune(SummarizeDescription(long, 100))), 100)

	assert.Empty(t, SummarizeDescription("", 100))
}

func TestFactLineStripsQuotesAndHearsay(t *testing.T) {
	line := FactLine(
		"Министр прокомментировал «очень важное решение» совета",
		"По его словам, всё будет хорошо.",
	)
	assert.NotContains(t, line, "«")
	assert.NotContains(t, line, "по его словам")
	assert.LessOrEqual(t, len([]rune(line)), factLineMaxLength)
}

func TestFormatPostSingle(t *testing.T) {
	f := NewFormatter(4500)
	p := &aggregate.MergedPost{
		Title:       "Главная новость дня",
		URL:         "https://example.org/1",
		Description: "Главная новость дня. Подробное описание события.",
		Sources:     []string{"Источник"},
		TopicSize:   1,
	}
	text := f.FormatPost(p, nil)

	assert.Contains(t, text, "*Главная новость дня*")
	assert.Contains(t, text, "Подробное описание события.")
	assert.NotContains(t, text, "Главная новость дня. Подробное", "title echo is removed")
	assert.Contains(t, text, "📌 Источник: Источник")
	assert.Contains(t, text, "[Читать полностью](https://example.org/1)")
	assert.NotContains(t, text, "🧩")
}

func TestFormatPostMerged(t *testing.T) {
	f := NewFormatter(4500)
	p := &aggregate.MergedPost{
		Title:         "Тема с несколькими источниками",
		URL:           "https://example.org/main",
		AlternateURLs: []string{"https://a.example/1", "https://b.example/2", "https://c.example/3", "https://d.example/4"},
		Description:   "Сводное описание.",
		Sources:       []string{"Первый", "Второй"},
		TopicSize:     2,
	}
	text := f.FormatPost(p, nil)

	assert.Contains(t, text, "🧩 *Сводка по теме* · объединено источников: 2")
	assert.Contains(t, text, "📌 Источник: Первый, Второй")
	assert.Equal(t, 3, strings.Count(text, "Дополнительный источник"), "alternate links capped at three")
}

func TestFormatPostRelated(t *testing.T) {
	f := NewFormatter(4500)
	p := &aggregate.MergedPost{
		Title:     "Новость",
		URL:       "https://example.org/1",
		Sources:   []string{"Источник"},
		TopicSize: 1,
	}
	related := &storage.RecentNews{Title: "Ранее по теме"}
	text := f.FormatPost(p, related)

	assert.Contains(t, text, "📰 *Дополнение к новости*")
	assert.Contains(t, text, "📖 *Связанная новость:* Ранее по теме")
}

func TestFormatPostLengthCapped(t *testing.T) {
	f := NewFormatter(600)
	p := &aggregate.MergedPost{
		Title:       "Заголовок",
		URL:         "https://example.org/1",
		Description: strings.Repeat("очень длинное описание ", 100),
		Sources:     []string{"Источник"},
		TopicSize:   1,
	}
	text := f.FormatPost(p, nil)
	assert.LessOrEqual(t, utf8.RuneCountInString(text), 600)
	assert.True(t, utf8.ValidString(text), "truncation must not split a rune")
}

func TestFormatPostTruncationKeepsValidUTF8(t *testing.T) {
	// A limit small enough that the whole-post cap kicks in mid-Cyrillic.
	f := NewFormatter(200)
	p := &aggregate.MergedPost{
		Title:       strings.Repeat("Д", 50),
		URL:         "https://example.org/1",
		Description: strings.Repeat("ы", 600),
		Sources:     []string{"Источник"},
		TopicSize:   1,
	}
	text := f.FormatPost(p, nil)
	assert.True(t, utf8.ValidString(text))
	assert.Equal(t, 200, utf8.RuneCountInString(text))
	assert.True(t, strings.HasSuffix(text, "…"))
}

func TestAddCategoryTag(t *testing.T) {
	tagged := AddCategoryTag("текст", []string{"экономика", "политика"})
	assert.True(t, strings.HasPrefix(tagged, "💹 ЭКОНОМИКА | 🏛️ ПОЛИТИКА\n\n"))
	assert.Equal(t, "текст", AddCategoryTag("текст", nil))
}

func TestFormatCurrencyPost(t *testing.T) {
	f := NewFormatter(4500)
	snap := storage.CurrencySnapshot{
		USDRUB: 92.5, EURRUB: 100.13, CNYRUB: 12.7,
		RUBUSD: 0.0108, BTCUSD: 64000, BTCRUB: 5920000,
	}
	updatedAt := time.Date(2025, 6, 2, 12, 30, 0, 0, time.UTC)
	text := f.FormatCurrencyPost(snap, updatedAt)

	assert.Contains(t, text, "*Курсы валют*")
	assert.Contains(t, text, "02.06.2025")
	assert.Contains(t, text, "$ Доллар — 92.50 ₽")
	assert.Contains(t, text, "€ Евро — 100.13 ₽")
	assert.Contains(t, text, "₿ Bitcoin — 64 000 $ / 5 920 000 ₽")
	assert.Contains(t, text, "Обновлено: 12:30 МСК")
}

func TestChunkLinesSingleChunk(t *testing.T) {
	f := NewFormatter(4500)
	chunks := f.ChunkLines("Сводка", []string{"*Сводка*", "", "• первая строка", "• вторая строка"})
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "• первая строка")
}

func TestChunkLinesSplitsWithContinuation(t *testing.T) {
	f := NewFormatter(200)
	lines := []string{"*Сводка*"}
	for i := 0; i < 6; i++ {
		lines = append(lines, "• "+strings.Repeat("о", 40))
	}
	chunks := f.ChunkLines("Сводка", lines)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 200)
	}
	for _, chunk := range chunks[1:] {
		assert.True(t, strings.HasPrefix(chunk, "*Сводка (продолжение)*"))
	}
}

func TestChunkLinesWrapsOversizedLine(t *testing.T) {
	f := NewFormatter(120)
	lines := []string{"*Сводка*", "", "• " + strings.Repeat("ю", 200)}
	chunks := f.ChunkLines("Сводка", lines)

	require.Greater(t, len(chunks), 1)
	assert.False(t, strings.Contains(chunks[0], "(продолжение)"))
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 120, "chunk %d", i)
		assert.True(t, utf8.ValidString(chunk), "chunk %d", i)
	}
	for _, chunk := range chunks[1:] {
		assert.True(t, strings.HasPrefix(chunk, "*Сводка (продолжение)*"))
	}
}
