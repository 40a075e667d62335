package storage

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// CurrencySnapshot is one published set of exchange rates. PostType tells
// the morning slot from the evening one.
type CurrencySnapshot struct {
	PostType    string
	USDRUB      float64
	EURRUB      float64
	CNYRUB      float64
	RUBUSD      float64
	BTCUSD      float64
	BTCRUB      float64
	PublishedAt time.Time
}

// Hash fingerprints the rates so identical consecutive snapshots are not
// re-posted.
func (c CurrencySnapshot) Hash() string {
	payload := fmt.Sprintf("%.4f|%.4f|%.4f|%.6f|%.2f|%.2f",
		c.USDRUB, c.EURRUB, c.CNYRUB, c.RUBUSD, c.BTCUSD, c.BTCRUB)
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// SaveCurrencySnapshot stores the snapshot. Returns false when an identical
// snapshot already exists.
func (s *Store) SaveCurrencySnapshot(snap CurrencySnapshot) (bool, error) {
	_, err := s.sb.Insert("currency_snapshots").
		Columns("snapshot_hash", "post_type", "usd_rub", "eur_rub", "cny_rub",
			"rub_usd", "btc_usd", "btc_rub", "published_at").
		Values(snap.Hash(), snap.PostType, snap.USDRUB, snap.EURRUB, snap.CNYRUB,
			snap.RUBUSD, snap.BTCUSD, snap.BTCRUB, snap.PublishedAt).
		Exec()
	if err != nil {
		var exists bool
		lookupErr := s.sb.Select("1").From("currency_snapshots").
			Where(sq.Eq{"snapshot_hash": snap.Hash()}).
			QueryRow().Scan(&exists)
		if lookupErr == nil {
			return false, nil
		}
		return false, fmt.Errorf("save currency snapshot: %w", err)
	}
	return true, nil
}

// LatestCurrencySnapshot returns the most recent snapshot, or nil when none
// was ever saved.
func (s *Store) LatestCurrencySnapshot() (*CurrencySnapshot, error) {
	var snap CurrencySnapshot
	err := s.sb.Select("post_type", "usd_rub", "eur_rub", "cny_rub",
		"rub_usd", "btc_usd", "btc_rub", "published_at").
		From("currency_snapshots").
		OrderBy("published_at DESC").
		Limit(1).
		QueryRow().
		Scan(&snap.PostType, &snap.USDRUB, &snap.EURRUB, &snap.CNYRUB,
			&snap.RUBUSD, &snap.BTCUSD, &snap.BTCRUB, &snap.PublishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest currency snapshot: %w", err)
	}
	return &snap, nil
}

// HasCurrencyPostForDay reports whether a snapshot of the given type was
// already published on the day containing t (in t's location).
func (s *Store) HasCurrencyPostForDay(t time.Time, postType string) (bool, error) {
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var one int
	err := s.sb.Select("1").From("currency_snapshots").
		Where(sq.Eq{"post_type": postType}).
		Where(sq.GtOrEq{"published_at": dayStart}).
		Where(sq.Lt{"published_at": dayEnd}).
		Limit(1).
		QueryRow().Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("currency post lookup: %w", err)
	}
	return true, nil
}
