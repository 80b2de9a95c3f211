package tweetflow

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/KafClaw/tweetbot/internal/cooldown"
	"github.com/KafClaw/tweetbot/internal/pipeline"
	"github.com/KafClaw/tweetbot/internal/postcache"
	"github.com/KafClaw/tweetbot/internal/publish"
)

// Pipeline names, used in logs and metrics.
const (
	MessagePipelineName      = "message"
	ConfirmationPipelineName = "tweetConfirmation"
)

// DefaultMarker is the text a message must carry to be tweeted.
const DefaultMarker = ":twitter:"

// MatchMode selects how the trigger marker is detected.
type MatchMode string

const (
	MatchPrefix   MatchMode = "prefix"
	MatchContains MatchMode = "contains"
)

// Settings tune the posting flow.
type Settings struct {
	Marker           string
	MatchMode        MatchMode
	Expiry           time.Duration
	Debug            bool // skip the marker check on every message
	AnnounceInThread bool // reply with the tweet link under the trigger message
}

// Deps are the collaborators of a Bot. Cooldown, Observer and Now are optional.
type Deps struct {
	Store     postcache.Store
	Chat      ChatGateway
	Publisher publish.Publisher
	Cooldown  *cooldown.Tracker
	Observer  pipeline.Observer
	Now       func() time.Time
}

// Bot owns the message and confirmation pipelines.
type Bot struct {
	settings  Settings
	store     postcache.Store
	chat      ChatGateway
	publisher publish.Publisher
	cooldown  *cooldown.Tracker
	now       func() time.Time

	// published holds posts that were tweeted but could not be removed from
	// the store, keyed by user, valued by source message ID.
	publishedMu sync.Mutex
	published   map[string]string

	messages      *pipeline.Pipeline[messageRun]
	confirmations *pipeline.Pipeline[confirmationRun]
}

// NewBot wires the pipelines.
func NewBot(s Settings, d Deps) *Bot {
	if strings.TrimSpace(s.Marker) == "" {
		s.Marker = DefaultMarker
	}
	if s.MatchMode == "" {
		s.MatchMode = MatchPrefix
	}
	if s.Expiry <= 0 {
		s.Expiry = postcache.DefaultExpiry
	}
	b := &Bot{
		settings:  s,
		store:     d.Store,
		chat:      d.Chat,
		publisher: d.Publisher,
		cooldown:  d.Cooldown,
		now:       d.Now,
		published: make(map[string]string),
	}
	if b.cooldown == nil {
		b.cooldown = cooldown.New(cooldown.DefaultWindow)
	}
	if b.now == nil {
		b.now = time.Now
	}

	b.messages = pipeline.New(MessagePipelineName,
		pipeline.Stage[messageRun]{Name: "filter-system-events", Run: b.filterSystemEvents},
		pipeline.Stage[messageRun]{Name: "check-trigger", Run: b.checkTrigger},
		pipeline.Stage[messageRun]{Name: "check-cooldown", Run: b.checkCooldown},
		pipeline.Stage[messageRun]{Name: "queue-post", Run: b.queuePost},
		pipeline.Stage[messageRun]{Name: "request-confirmation", Run: b.requestConfirmation},
	)
	b.confirmations = pipeline.New(ConfirmationPipelineName,
		pipeline.Stage[confirmationRun]{Name: "check-decline", Run: b.checkDecline},
		pipeline.Stage[confirmationRun]{Name: "check-pending", Run: b.checkPending},
		pipeline.Stage[confirmationRun]{Name: "check-binding", Run: b.checkBinding},
		pipeline.Stage[confirmationRun]{Name: "check-expiry", Run: b.checkExpiry},
		pipeline.Stage[confirmationRun]{Name: "publish", Run: b.publishPost},
	)
	if d.Observer != nil {
		b.messages = b.messages.WithObserver(d.Observer)
		b.confirmations = b.confirmations.WithObserver(d.Observer)
	}
	return b
}

// HandleMessage runs the message pipeline for one inbound chat message.
func (b *Bot) HandleMessage(ctx context.Context, ev MessageEvent) pipeline.Outcome {
	return b.messages.Run(ctx, messageRun{event: ev, now: b.now()})
}

// HandleInteraction acknowledges a button click, then runs the confirmation
// pipeline. ack may be nil when the transport already acknowledged.
func (b *Bot) HandleInteraction(ctx context.Context, ia Interaction, ack func()) pipeline.Outcome {
	if ack != nil {
		ack()
	}
	return b.confirmations.Run(ctx, confirmationRun{interaction: ia, now: b.now()})
}

// Settings returns the effective settings.
func (b *Bot) Settings() Settings { return b.settings }

// notify sends a best-effort ephemeral notice; failures are only logged.
func (b *Bot) notify(ctx context.Context, channelID, userID, text string) {
	if err := b.chat.PostEphemeral(ctx, channelID, userID, text, nil); err != nil {
		slog.Warn("Bot: ephemeral notice failed", "channel", channelID, "user", userID, "error", err)
	}
}

func (b *Bot) rememberPublished(userID, messageID string) {
	b.publishedMu.Lock()
	b.published[userID] = messageID
	b.publishedMu.Unlock()
}

func (b *Bot) forgetPublished(userID string) {
	b.publishedMu.Lock()
	delete(b.published, userID)
	b.publishedMu.Unlock()
}

// alreadyPublished reports whether post was tweeted but is still cached.
func (b *Bot) alreadyPublished(post postcache.PendingPost) bool {
	b.publishedMu.Lock()
	defer b.publishedMu.Unlock()
	id, ok := b.published[post.UserID]
	return ok && id == post.SourceMessageID
}
