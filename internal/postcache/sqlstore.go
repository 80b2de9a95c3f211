package postcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Schema is the pending post table. One row per user.
const Schema = `
CREATE TABLE IF NOT EXISTS pending_posts (
	user_id TEXT PRIMARY KEY,
	source_message_id TEXT NOT NULL,
	channel_id TEXT NOT NULL DEFAULT '',
	thread_ts TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	queued_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_posts_expires ON pending_posts(expires_at);
`

// SQLStore keeps pending posts in a SQL table.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens a private in-memory sqlite database.
// Pending posts never outlive the process.
func OpenSQLStore() (*SQLStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open post store db: %w", err)
	}
	// Every new connection to :memory: is a fresh database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	s, err := NewSQLStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore applies the schema to db and wraps it.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("failed to apply post store schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, userID string) (PendingPost, bool, error) {
	var (
		p                 PendingPost
		queued, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, source_message_id, channel_id, thread_ts, content, queued_at, expires_at
		FROM pending_posts WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.SourceMessageID, &p.ChannelID, &p.ThreadTS, &p.Content, &queued, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingPost{}, false, nil
	}
	if err != nil {
		return PendingPost{}, false, fmt.Errorf("get pending post: %w", err)
	}
	p.QueuedAt = time.Unix(0, queued)
	p.ExpiresAt = time.Unix(0, expiresAt)
	return p, true, nil
}

func (s *SQLStore) Put(ctx context.Context, post PendingPost) error {
	if err := validate(post); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_posts (user_id, source_message_id, channel_id, thread_ts, content, queued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			source_message_id = excluded.source_message_id,
			channel_id = excluded.channel_id,
			thread_ts = excluded.thread_ts,
			content = excluded.content,
			queued_at = excluded.queued_at,
			expires_at = excluded.expires_at`,
		post.UserID, post.SourceMessageID, post.ChannelID, post.ThreadTS, post.Content,
		post.QueuedAt.UnixNano(), post.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("put pending post: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_posts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete pending post: %w", err)
	}
	return nil
}

func (s *SQLStore) MarkSent(ctx context.Context, userID string) error {
	return s.Delete(ctx, userID)
}

func (s *SQLStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending posts: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
