package channels

import (
	"context"
	"log/slog"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// SocketModeReceiver receives events over a Socket Mode websocket.
type SocketModeReceiver struct {
	client *socketmode.Client
	sink   Sink
}

// NewSocketModeReceiver needs a client built with an app-level token.
func NewSocketModeReceiver(api *slack.Client, sink Sink) *SocketModeReceiver {
	return &SocketModeReceiver{client: socketmode.New(api), sink: sink}
}

// Name returns the receiver name.
func (r *SocketModeReceiver) Name() string { return "socketmode" }

// Start runs the websocket loop until ctx is cancelled.
func (r *SocketModeReceiver) Start(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-r.client.Events:
				if !ok {
					return
				}
				r.handle(evt, func(req socketmode.Request) { r.client.Ack(req) })
			}
		}
	}()
	return r.client.RunContext(ctx)
}

// handle acknowledges evt before handing it to the sink.
func (r *SocketModeReceiver) handle(evt socketmode.Event, ack func(socketmode.Request)) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		slog.Info("Socket Mode connecting")
	case socketmode.EventTypeConnected:
		slog.Info("Socket Mode connected")
	case socketmode.EventTypeConnectionError:
		slog.Warn("Socket Mode connection error", "data", evt.Data)
	case socketmode.EventTypeEventsAPI:
		if evt.Request != nil {
			ack(*evt.Request)
		}
		ev, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || ev.Type != slackevents.CallbackEvent {
			return
		}
		msg, ok := ev.InnerEvent.Data.(*slackevents.MessageEvent)
		if !ok || msg == nil {
			return
		}
		if err := r.sink.PublishMessage(MessageFromSlack(msg)); err != nil {
			slog.Warn("Socket Mode event dropped", "error", err)
		}
	case socketmode.EventTypeInteractive:
		if evt.Request != nil {
			ack(*evt.Request)
		}
		cb, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			return
		}
		ia, ok := InteractionFromSlack(cb)
		if !ok {
			return
		}
		if err := r.sink.PublishInteraction(ia); err != nil {
			slog.Warn("Socket Mode interaction dropped", "user", ia.UserID, "error", err)
		}
	}
}
