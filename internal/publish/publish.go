// Package publish sends confirmed posts to the microblogging service.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MaxRunes is the longest post the service accepts.
const MaxRunes = 280

// ErrPublish wraps every failure to publish a post.
var ErrPublish = errors.New("publish failed")

// Receipt acknowledges a published post.
type Receipt struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Publisher sends text to the external feed and returns its receipt.
type Publisher interface {
	Publish(ctx context.Context, text string) (Receipt, error)
}

// APIError is a non-success response from the service.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("twitter api status: %d", e.StatusCode)
	}
	return fmt.Sprintf("twitter api status: %d: %s", e.StatusCode, e.Detail)
}

type requesterKey struct{}

// WithRequester tags ctx with the chat user who asked for the post.
func WithRequester(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, requesterKey{}, userID)
}

// RequesterFrom returns the user set by WithRequester.
func RequesterFrom(ctx context.Context) string {
	v, _ := ctx.Value(requesterKey{}).(string)
	return v
}
