package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndExactDuplicate(t *testing.T) {
	s := newTestStore(t)

	id, err := s.SaveNews("Заголовок новости", "https://example.org/n/1", "Тест", "политика", "описание", time.Now())
	require.NoError(t, err)
	assert.Positive(t, id)

	published, err := s.IsPublished("Заголовок новости", "https://example.org/n/1", "Тест", "описание")
	require.NoError(t, err)
	assert.True(t, published)
}

func TestSaveDuplicateReturnsExistingID(t *testing.T) {
	s := newTestStore(t)

	first, err := s.SaveNews("Та же новость", "https://example.org/n/2", "Тест", "общество", "", time.Now())
	require.NoError(t, err)

	second, err := s.SaveNews("Та же новость", "https://example.org/n/2", "Тест", "общество", "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalizedURLDuplicate(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveNews("Новость", "https://example.org/story/", "Первый", "политика", "", time.Now())
	require.NoError(t, err)

	// Different source, same story URL modulo fragment and trailing slash.
	published, err := s.IsPublished("Совсем другой заголовок про иное", "https://example.org/story#anchor", "Второй", "")
	require.NoError(t, err)
	assert.True(t, published)
}

func TestFuzzyTitleDuplicate(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveNews(
		"Центробанк резко повысил ключевую ставку до рекордного уровня",
		"https://a.example/1", "Первый", "экономика", "", time.Now())
	require.NoError(t, err)

	published, err := s.IsPublished(
		"Центробанк резко повысил ключевую ставку до рекордного уровня!",
		"https://b.example/2", "Второй", "")
	require.NoError(t, err)
	assert.True(t, published, "punctuation-only difference is the same story")

	published, err = s.IsPublished(
		"Правительство обсудило новую программу поддержки семей",
		"https://b.example/3", "Второй", "")
	require.NoError(t, err)
	assert.False(t, published)
}

func TestContentHashDuplicateOutlivesTitleWindow(t *testing.T) {
	s := newTestStore(t)

	title := "Минфин представил проект трёхлетнего бюджета"
	description := "Документ предусматривает рост расходов на социальные программы " +
		"и сохранение дефицита в пределах одного процента ВВП."

	// Published 10 days ago: outside the 7-day title window, inside nothing
	// but the unbounded content-hash check.
	_, err := s.SaveNews(title, "https://a.example/old", "Первый", "экономика",
		description, time.Now().AddDate(0, 0, -10))
	require.NoError(t, err)

	published, err := s.IsPublished(title, "https://b.example/new", "Второй", description)
	require.NoError(t, err)
	assert.True(t, published, "same title+description under a new URL is the same story")

	// A different description is different content.
	published, err = s.IsPublished(title, "https://b.example/new", "Второй",
		"Совсем иное содержание заметки о другом решении ведомства.")
	require.NoError(t, err)
	assert.False(t, published)
}

func TestRecentByCategory(t *testing.T) {
	s := newTestStore(t)

	now := time.Now()
	_, err := s.SaveNews("Свежая", "https://example.org/r/1", "Тест", "экономика", "", now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = s.SaveNews("Старая", "https://example.org/r/2", "Тест", "экономика", "", now.Add(-48*time.Hour))
	require.NoError(t, err)
	_, err = s.SaveNews("Чужая", "https://example.org/r/3", "Тест", "политика", "", now.Add(-time.Hour))
	require.NoError(t, err)

	recent, err := s.RecentByCategory("экономика", 24, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Свежая", recent[0].Title)
}

func TestNewsStats(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveNews("А", "https://example.org/s/1", "Тест", "политика", "", time.Now())
	require.NoError(t, err)
	_, err = s.SaveNews("Б", "https://example.org/s/2", "Тест", "политика", "", time.Now())
	require.NoError(t, err)
	_, err = s.SaveNews("В", "https://example.org/s/3", "Тест", "экономика", "", time.Now())
	require.NoError(t, err)

	stats, err := s.NewsStats(0)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByCategory["политика"])
	assert.Equal(t, 1, stats.ByCategory["экономика"])
}

func TestCleanup(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveNews("Старая", "https://example.org/c/1", "Тест", "политика", "", time.Now().AddDate(0, 0, -40))
	require.NoError(t, err)
	_, err = s.SaveNews("Новая", "https://example.org/c/2", "Тест", "политика", "", time.Now())
	require.NoError(t, err)

	deleted, err := s.Cleanup(30)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	stats, err := s.NewsStats(0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestLinkRelatedIdempotent(t *testing.T) {
	s := newTestStore(t)

	a, err := s.SaveNews("А", "https://example.org/l/1", "Тест", "политика", "", time.Now())
	require.NoError(t, err)
	b, err := s.SaveNews("Б", "https://example.org/l/2", "Тест", "политика", "", time.Now())
	require.NoError(t, err)

	require.NoError(t, s.LinkRelated(a, b))
	require.NoError(t, s.LinkRelated(a, b))
}

func TestCurrencySnapshots(t *testing.T) {
	s := newTestStore(t)

	snap := CurrencySnapshot{
		PostType: "morning",
		USDRUB:   92.5, EURRUB: 100.1, CNYRUB: 12.7,
		RUBUSD: 0.0108, BTCUSD: 64000, BTCRUB: 5920000,
		PublishedAt: time.Now(),
	}

	saved, err := s.SaveCurrencySnapshot(snap)
	require.NoError(t, err)
	assert.True(t, saved)

	// Identical rates are a duplicate regardless of time.
	snap.PublishedAt = snap.PublishedAt.Add(time.Hour)
	saved, err = s.SaveCurrencySnapshot(snap)
	require.NoError(t, err)
	assert.False(t, saved)

	latest, err := s.LatestCurrencySnapshot()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.InDelta(t, 92.5, latest.USDRUB, 1e-9)

	has, err := s.HasCurrencyPostForDay(time.Now(), "morning")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.HasCurrencyPostForDay(time.Now(), "evening")
	require.NoError(t, err)
	assert.False(t, has)
}
