// Package postcache holds the per-user queue of posts awaiting confirmation.
package postcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultExpiry is how long a queued post stays confirmable.
const DefaultExpiry = 15 * time.Minute

// ErrInvalidPost is returned when a post is stored without a user.
var ErrInvalidPost = errors.New("postcache: pending post has no user id")

// PendingPost is a queued, not yet published piece of content.
type PendingPost struct {
	UserID          string    `json:"user_id"`
	SourceMessageID string    `json:"source_message_id"`
	ChannelID       string    `json:"channel_id"`
	ThreadTS        string    `json:"thread_ts,omitempty"`
	Content         string    `json:"content"`
	QueuedAt        time.Time `json:"queued_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// NewPendingPost builds a post queued at now that expires after expiry.
// A non-positive expiry falls back to DefaultExpiry.
func NewPendingPost(userID, messageID, channelID, threadTS, content string, now time.Time, expiry time.Duration) PendingPost {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return PendingPost{
		UserID:          userID,
		SourceMessageID: messageID,
		ChannelID:       channelID,
		ThreadTS:        threadTS,
		Content:         content,
		QueuedAt:        now,
		ExpiresAt:       now.Add(expiry),
	}
}

// Expired reports whether the post can no longer be published at now.
func (p PendingPost) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// BoundTo reports whether a confirmation for messageID answers this post's prompt.
func (p PendingPost) BoundTo(messageID string) bool {
	return strings.TrimSpace(messageID) != "" && p.SourceMessageID == strings.TrimSpace(messageID)
}

// Store maps a user to that user's single pending post.
// Put overwrites; expiry is never enforced by the store itself.
type Store interface {
	Get(ctx context.Context, userID string) (PendingPost, bool, error)
	Put(ctx context.Context, post PendingPost) error
	Delete(ctx context.Context, userID string) error
	// MarkSent retires a published post. Sent posts are removed, not flagged.
	MarkSent(ctx context.Context, userID string) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Open returns the store backend selected by driver.
func Open(driver string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return OpenSQLStore()
	default:
		return nil, fmt.Errorf("postcache: unknown store driver %q", driver)
	}
}

func validate(post PendingPost) error {
	if strings.TrimSpace(post.UserID) == "" {
		return ErrInvalidPost
	}
	return nil
}
