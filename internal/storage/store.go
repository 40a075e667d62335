// Package storage persists published news and currency snapshots in SQLite.
// It is the duplicate-detection authority for the whole pipeline.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"vestnik/internal/normalize"
)

const (
	urlDedupWindow   = 30 * 24 * time.Hour
	titleDedupWindow = 7 * 24 * time.Hour

	// Word-overlap ratio above which two normalized titles count as the
	// same story.
	titleDuplicateOverlap = 0.9
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// RecentNews is a published story row used for related-news lookups.
type RecentNews struct {
	ID          int64
	Title       string
	URL         string
	Source      string
	Category    string
	PublishedAt time.Time
}

// Stats summarizes published volume, optionally over a trailing window.
type Stats struct {
	Total      int
	ByCategory map[string]int
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The store is touched from one cycle at a time; a single connection
	// avoids SQLITE_BUSY on concurrent statement setup.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question).RunWith(db),
	}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS news (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			news_hash TEXT UNIQUE NOT NULL,
			title TEXT NOT NULL,
			source TEXT NOT NULL,
			url TEXT NOT NULL,
			category TEXT NOT NULL,
			content_hash TEXT,
			published_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS related_posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			original_post_id INTEGER NOT NULL,
			related_post_id INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (original_post_id) REFERENCES news(id),
			FOREIGN KEY (related_post_id) REFERENCES news(id),
			UNIQUE (original_post_id, related_post_id)
		)`,
		`CREATE TABLE IF NOT EXISTS currency_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_hash TEXT UNIQUE NOT NULL,
			post_type TEXT NOT NULL,
			usd_rub REAL NOT NULL,
			eur_rub REAL NOT NULL,
			cny_rub REAL NOT NULL,
			rub_usd REAL NOT NULL,
			btc_usd REAL NOT NULL,
			btc_rub REAL NOT NULL,
			published_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_news_hash ON news(news_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_news_published_at ON news(published_at)`,
		`CREATE INDEX IF NOT EXISTS idx_news_category ON news(category)`,
		`CREATE INDEX IF NOT EXISTS idx_news_url ON news(url)`,
		`CREATE INDEX IF NOT EXISTS idx_news_content_hash ON news(content_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_currency_published_at ON currency_snapshots(published_at)`,
		`CREATE INDEX IF NOT EXISTS idx_currency_post_type ON currency_snapshots(post_type)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// IsPublished runs the duplicate gate: exact hash, then normalized URL over
// the last 30 days, then content hash, then normalized/fuzzy title over the
// last 7 days. Any hit means the story was already posted.
func (s *Store) IsPublished(title, url, source, description string) (bool, error) {
	newsHash := normalize.ItemHash(title, url, source)

	var id int64
	err := s.sb.Select("id").From("news").
		Where(sq.Eq{"news_hash": newsHash}).
		QueryRow().Scan(&id)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("hash lookup: %w", err)
	}

	if normalizedURL := normalize.URL(url); normalizedURL != "" {
		dup, err := s.hasNormalizedURL(normalizedURL)
		if err != nil {
			return false, err
		}
		if dup {
			return true, nil
		}
	}

	if contentHash := normalize.ContentHash(title, description); contentHash != "" {
		err = s.sb.Select("id").From("news").
			Where(sq.Eq{"content_hash": contentHash}).
			QueryRow().Scan(&id)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("content hash lookup: %w", err)
		}
	}

	return s.hasSimilarTitle(title)
}

func (s *Store) hasNormalizedURL(normalizedURL string) (bool, error) {
	rows, err := s.sb.Select("url").From("news").
		Where(sq.Gt{"published_at": time.Now().Add(-urlDedupWindow)}).
		Query()
	if err != nil {
		return false, fmt.Errorf("url lookup: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var published string
		if err := rows.Scan(&published); err != nil {
			return false, err
		}
		if normalize.URL(published) == normalizedURL {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (s *Store) hasSimilarTitle(title string) (bool, error) {
	normalized := normalize.Title(title)

	rows, err := s.sb.Select("title").From("news").
		Where(sq.Gt{"published_at": time.Now().Add(-titleDedupWindow)}).
		Query()
	if err != nil {
		return false, fmt.Errorf("title lookup: %w", err)
	}
	defer rows.Close()

	current := wordSet(normalized)
	for rows.Next() {
		var published string
		if err := rows.Scan(&published); err != nil {
			return false, err
		}
		normalizedPublished := normalize.Title(published)
		if normalized == normalizedPublished {
			return true, nil
		}
		other := wordSet(normalizedPublished)
		if overlap(current, other) > titleDuplicateOverlap {
			return true, nil
		}
	}
	return false, rows.Err()
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	common := 0
	for w := range a {
		if _, ok := b[w]; ok {
			common++
		}
	}
	max := len(a)
	if len(b) > max {
		max = len(b)
	}
	return float64(common) / float64(max)
}

// SaveNews records a published story. A hash conflict returns the existing
// row id instead of an error, so repeated saves are idempotent.
func (s *Store) SaveNews(title, url, source, category, description string, publishedAt time.Time) (int64, error) {
	newsHash := normalize.ItemHash(title, url, source)
	contentHash := normalize.ContentHash(title, description)

	res, err := s.sb.Insert("news").
		Columns("news_hash", "title", "source", "url", "category", "content_hash", "published_at").
		Values(newsHash, title, source, url, category, contentHash, publishedAt).
		Exec()
	if err == nil {
		return res.LastInsertId()
	}

	var id int64
	lookupErr := s.sb.Select("id").From("news").
		Where(sq.Eq{"news_hash": newsHash}).
		QueryRow().Scan(&id)
	if lookupErr == nil {
		return id, nil
	}
	return 0, fmt.Errorf("save news: %w", err)
}

// RecentByCategory returns the latest published stories in a category, used
// to attach a related-news line to posts.
func (s *Store) RecentByCategory(category string, hours, limit int) ([]RecentNews, error) {
	rows, err := s.sb.Select("id", "title", "url", "source", "category", "published_at").
		From("news").
		Where(sq.Eq{"category": category}).
		Where(sq.Gt{"published_at": time.Now().Add(-time.Duration(hours) * time.Hour)}).
		OrderBy("published_at DESC").
		Limit(uint64(limit)).
		Query()
	if err != nil {
		return nil, fmt.Errorf("recent by category: %w", err)
	}
	defer rows.Close()

	var out []RecentNews
	for rows.Next() {
		var n RecentNews
		if err := rows.Scan(&n.ID, &n.Title, &n.URL, &n.Source, &n.Category, &n.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// LinkRelated connects a follow-up post to the story it supplements.
func (s *Store) LinkRelated(originalID, relatedID int64) error {
	_, err := s.sb.Insert("related_posts").
		Columns("original_post_id", "related_post_id").
		Values(originalID, relatedID).
		Suffix("ON CONFLICT DO NOTHING").
		Exec()
	if err != nil {
		return fmt.Errorf("link related: %w", err)
	}
	return nil
}

// NewsStats aggregates publication counts, over the trailing window when
// hours > 0, otherwise for all time.
func (s *Store) NewsStats(hours int) (Stats, error) {
	stats := Stats{ByCategory: make(map[string]int)}

	totalQ := s.sb.Select("COUNT(*)").From("news")
	catQ := s.sb.Select("category", "COUNT(*)").From("news").GroupBy("category")
	if hours > 0 {
		cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
		totalQ = totalQ.Where(sq.Gt{"created_at": cutoff})
		catQ = catQ.Where(sq.Gt{"created_at": cutoff})
	}

	if err := totalQ.QueryRow().Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("stats total: %w", err)
	}

	rows, err := catQ.Query()
	if err != nil {
		return stats, fmt.Errorf("stats by category: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			category string
			count    int
		)
		if err := rows.Scan(&category, &count); err != nil {
			return stats, err
		}
		stats.ByCategory[category] = count
	}
	return stats, rows.Err()
}

// Cleanup deletes news rows older than the retention window.
func (s *Store) Cleanup(days int) (int64, error) {
	res, err := s.sb.Delete("news").
		Where(sq.Lt{"published_at": time.Now().AddDate(0, 0, -days)}).
		Exec()
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	return res.RowsAffected()
}
