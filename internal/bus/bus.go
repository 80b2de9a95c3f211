// Package bus queues inbound chat events for a single consumer.
//
// Transports publish from many goroutines; Run handles one event at a time, so
// pipeline runs never interleave on the post cache.
package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/KafClaw/tweetbot/internal/pipeline"
	"github.com/KafClaw/tweetbot/internal/tweetflow"
)

// DefaultCapacity is the inbound queue size.
const DefaultCapacity = 100

// ErrQueueFull is returned when the consumer falls behind.
var ErrQueueFull = errors.New("bus: inbound queue full")

// ErrStopped is returned when publishing after Stop.
var ErrStopped = errors.New("bus: stopped")

// InboundEvent is either a chat message or a button click.
type InboundEvent struct {
	Message     *tweetflow.MessageEvent
	Interaction *tweetflow.Interaction
	Timestamp   time.Time
}

// Handler processes inbound events.
type Handler interface {
	HandleMessage(ctx context.Context, ev tweetflow.MessageEvent) pipeline.Outcome
	HandleInteraction(ctx context.Context, ia tweetflow.Interaction, ack func()) pipeline.Outcome
}

// MessageBus decouples transports from the bot.
type MessageBus struct {
	inbound chan *InboundEvent
	mu      sync.RWMutex
	stopped bool
}

// NewMessageBus creates a bus with room for capacity pending events.
func NewMessageBus(capacity int) *MessageBus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MessageBus{inbound: make(chan *InboundEvent, capacity)}
}

// PublishMessage enqueues an inbound chat message.
func (b *MessageBus) PublishMessage(ev tweetflow.MessageEvent) error {
	return b.publish(&InboundEvent{Message: &ev})
}

// PublishInteraction enqueues an already acknowledged button click.
func (b *MessageBus) PublishInteraction(ia tweetflow.Interaction) error {
	return b.publish(&InboundEvent{Interaction: &ia})
}

func (b *MessageBus) publish(ev *InboundEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return ErrStopped
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case b.inbound <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run dispatches events to h until ctx is cancelled. Events still queued at
// that point are not handled.
// This should be run as a goroutine.
func (b *MessageBus) Run(ctx context.Context, h Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-b.inbound:
			b.dispatch(ctx, h, ev)
		}
	}
}

func (b *MessageBus) dispatch(ctx context.Context, h Handler, ev *InboundEvent) {
	var out pipeline.Outcome
	switch {
	case ev.Message != nil:
		out = h.HandleMessage(ctx, *ev.Message)
	case ev.Interaction != nil:
		out = h.HandleInteraction(ctx, *ev.Interaction, nil)
	default:
		return
	}
	slog.Debug("MessageBus: event handled",
		"pipeline", out.Pipeline,
		"status", out.Status,
		"stage", out.Stage,
		"queued_for", time.Since(ev.Timestamp))
}

// Stop rejects further publishes. It does not drain the queue: events left
// when Run's context ends are dropped.
func (b *MessageBus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
}

// InboundSize returns the number of pending inbound events.
func (b *MessageBus) InboundSize() int {
	return len(b.inbound)
}
