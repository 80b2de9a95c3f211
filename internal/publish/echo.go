package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// EchoPublisher logs posts instead of sending them. Used in debug mode.
type EchoPublisher struct {
	now func() time.Time
}

// NewEchoPublisher creates a debug publisher.
func NewEchoPublisher() *EchoPublisher {
	return &EchoPublisher{now: time.Now}
}

func (p *EchoPublisher) Publish(ctx context.Context, text string) (Receipt, error) {
	ts := p.now()
	slog.Info("EchoPublisher: DEBUG_MODE, did not really send", "text", text, "requester", RequesterFrom(ctx))
	return Receipt{
		ID:          fmt.Sprintf("debug-%d", ts.UnixNano()),
		Text:        text,
		PublishedAt: ts,
	}, nil
}
