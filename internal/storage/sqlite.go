package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"newswire_bot/internal/model"
	"newswire_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// EnsureUser registers a user id; repeated calls are no-ops.
func (s *SQLite) EnsureUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (user_id) VALUES (?)`, userID,
	)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// AddSubscription creates the feed row if absent, then subscribes the
// user to it. The feed insert and the subscription insert run in one
// transaction.
func (s *SQLite) AddSubscription(ctx context.Context, userID int64, feedURL string, rule model.Rule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO feeds (url, created_at) VALUES (?, ?)`, feedURL, now,
	); err != nil {
		return fmt.Errorf("insert feed: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, feed_id, rule_id, created_at)
		 VALUES (?,
		         (SELECT id FROM feeds WHERE url = ?),
		         (SELECT id FROM processing_rules WHERE rule = ?),
		         ?)`,
		userID, feedURL, string(rule), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSubscription
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return tx.Commit()
}

// RemoveSubscription deletes a (user, feed) pair. The backup trigger
// archives the row before it goes.
func (s *SQLite) RemoveSubscription(ctx context.Context, userID int64, feedURL string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions
		 WHERE user_id = ? AND feed_id = (SELECT id FROM feeds WHERE url = ?)`,
		userID, feedURL,
	)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// ListUsers returns all known user ids.
func (s *SQLite) ListUsers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// ListSubscriptions returns the user's subscriptions with their rules.
func (s *SQLite) ListSubscriptions(ctx context.Context, userID int64) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.user_id, f.url, COALESCE(r.rule, ''), s.created_at
		 FROM subscriptions s
		 JOIN feeds f ON f.id = s.feed_id
		 LEFT JOIN processing_rules r ON r.id = s.rule_id
		 WHERE s.user_id = ?
		 ORDER BY f.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []model.Subscription
	for rows.Next() {
		var sub model.Subscription
		var rule, created string
		if err := rows.Scan(&sub.UserID, &sub.FeedURL, &rule, &created); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.Rule = model.Rule(rule)
		sub.CreatedAt, _ = time.Parse(timeLayout, created)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// KnownLinks returns every link URL reachable through the user's
// subscriptions. Used by the ingestion loop as the deduplication set.
func (s *SQLite) KnownLinks(ctx context.Context, userID int64) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.url
		 FROM subscriptions s
		 JOIN links l ON l.feed_id = s.feed_id
		 WHERE s.user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query known links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	known := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		known[url] = struct{}{}
	}
	return known, rows.Err()
}

// RecordItem stores a link and its description in one transaction.
func (s *SQLite) RecordItem(ctx context.Context, feedURL, linkURL, description string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var feedID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM feeds WHERE url = ?`, feedURL).Scan(&feedID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("record item: unknown feed %q", feedURL)
	}
	if err != nil {
		return fmt.Errorf("lookup feed: %w", err)
	}

	now := time.Now().UTC().Format(timeLayout)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO links (feed_id, url, created_at) VALUES (?, ?, ?)`,
		feedID, linkURL, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateLink
		}
		return fmt.Errorf("insert link: %w", err)
	}
	linkID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO descriptions (link_id, body) VALUES (?, ?)`,
		linkID, description,
	); err != nil {
		return fmt.Errorf("insert description: %w", err)
	}
	return tx.Commit()
}

// ListUnsent returns items the user has not been sent yet, in the
// order they were recorded.
func (s *SQLite) ListUnsent(ctx context.Context, userID int64) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.id, l.url, d.body
		 FROM subscriptions s
		 JOIN links l ON l.feed_id = s.feed_id
		 JOIN descriptions d ON d.link_id = l.id
		 LEFT JOIN sent_posts sp ON sp.link_id = l.id AND sp.user_id = s.user_id
		 WHERE s.user_id = ? AND sp.link_id IS NULL
		 ORDER BY l.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query unsent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.Item
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.Link, &it.Description); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// MarkSent records a delivery; a duplicate call is a no-op.
func (s *SQLite) MarkSent(ctx context.Context, userID int64, linkURL string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sent_posts (user_id, link_id, sent_at)
		 VALUES (?, (SELECT id FROM links WHERE url = ?), ?)`,
		userID, linkURL, now,
	)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// SetLiked records a like; a duplicate call is a no-op.
func (s *SQLite) SetLiked(ctx context.Context, userID, linkID int64) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO likes (user_id, link_id, liked_at) VALUES (?, ?, ?)`,
		userID, linkID, now,
	)
	if err != nil {
		return fmt.Errorf("set liked: %w", err)
	}
	return nil
}

// SetMarked saves an item for later; a duplicate call is a no-op.
func (s *SQLite) SetMarked(ctx context.Context, userID, linkID int64) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO marked (user_id, link_id, marked_at) VALUES (?, ?, ?)`,
		userID, linkID, now,
	)
	if err != nil {
		return fmt.Errorf("set marked: %w", err)
	}
	return nil
}

// LikedRatio returns liked/delivered for the user as a float.
func (s *SQLite) LikedRatio(ctx context.Context, userID int64) (float64, error) {
	var ratio sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT CAST(COUNT(lk.link_id) AS REAL) / COUNT(sp.link_id)
		 FROM sent_posts sp
		 LEFT JOIN likes lk ON lk.link_id = sp.link_id AND lk.user_id = sp.user_id
		 WHERE sp.user_id = ?`,
		userID,
	).Scan(&ratio)
	if err != nil {
		return 0, fmt.Errorf("liked ratio: %w", err)
	}
	if !ratio.Valid {
		return 0, nil
	}
	return ratio.Float64, nil
}

// SubscriptionStats counts subscribed feeds per user.
func (s *SQLite) SubscriptionStats(ctx context.Context) ([]model.UserStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.user_id, COUNT(s.feed_id)
		 FROM users u
		 JOIN subscriptions s ON s.user_id = u.user_id
		 GROUP BY u.user_id
		 ORDER BY u.user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscription stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []model.UserStat
	for rows.Next() {
		var st model.UserStat
		if err := rows.Scan(&st.UserID, &st.Feeds); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// FeedLinkStats counts recorded links per feed.
func (s *SQLite) FeedLinkStats(ctx context.Context) ([]model.FeedStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.url, COUNT(l.id)
		 FROM feeds f
		 LEFT JOIN links l ON l.feed_id = f.id
		 GROUP BY f.id
		 ORDER BY f.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query feed stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []model.FeedStat
	for rows.Next() {
		var st model.FeedStat
		if err := rows.Scan(&st.FeedURL, &st.Links); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
