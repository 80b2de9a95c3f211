// Package channels connects the bot to Slack.
//
// Inbound, it translates Events API callbacks and block actions into tweetflow
// events and hands them to a Sink. Outbound, SlackChannel implements
// tweetflow.ChatGateway.
package channels

import (
	"context"

	"github.com/KafClaw/tweetbot/internal/tweetflow"
)

// Sink receives translated inbound events. *bus.MessageBus implements it.
type Sink interface {
	PublishMessage(ev tweetflow.MessageEvent) error
	PublishInteraction(ia tweetflow.Interaction) error
}

// Receiver is an inbound transport.
type Receiver interface {
	// Name returns the receiver name (e.g. "socketmode").
	Name() string
	// Start blocks until ctx is cancelled or the transport fails.
	Start(ctx context.Context) error
}
