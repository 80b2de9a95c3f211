package tweetflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/KafClaw/tweetbot/internal/pipeline"
	"github.com/KafClaw/tweetbot/internal/postcache"
	"github.com/KafClaw/tweetbot/internal/publish"
)

// messageRun is the value threaded through the message pipeline.
type messageRun struct {
	event   MessageEvent
	now     time.Time
	content string
	post    postcache.PendingPost
}

// Message subtypes that still carry text a user wrote.
var authoredSubtypes = map[string]bool{
	"":                 true,
	"thread_broadcast": true,
	"file_share":       true,
}

var slackEntities = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")

func (b *Bot) filterSystemEvents(_ context.Context, r messageRun) (pipeline.Result[messageRun], error) {
	ev := r.event
	if !authoredSubtypes[ev.SubType] || ev.BotID != "" {
		return pipeline.Stop[messageRun](), nil
	}
	if strings.TrimSpace(ev.UserID) == "" || strings.TrimSpace(ev.Text) == "" {
		return pipeline.Stop[messageRun](), nil
	}
	return pipeline.Continue(r), nil
}

func (b *Bot) checkTrigger(_ context.Context, r messageRun) (pipeline.Result[messageRun], error) {
	if b.settings.Debug {
		slog.Debug("Bot: DEBUG_MODE, skipping trigger check")
		return pipeline.Continue(r), nil
	}
	if !HasMarker(r.event.Text, b.settings.Marker, b.settings.MatchMode) {
		slog.Debug("Bot: message has no trigger marker, ignoring", "marker", b.settings.Marker)
		return pipeline.Stop[messageRun](), nil
	}
	return pipeline.Continue(r), nil
}

func (b *Bot) checkCooldown(_ context.Context, r messageRun) (pipeline.Result[messageRun], error) {
	if !b.cooldown.Accept(r.event.UserID, r.now) {
		slog.Info("Bot: user in cooldown, ignoring",
			"user", r.event.UserID,
			"remaining", b.cooldown.Remaining(r.event.UserID, r.now))
		return pipeline.Stop[messageRun](), nil
	}
	return pipeline.Continue(r), nil
}

func (b *Bot) queuePost(ctx context.Context, r messageRun) (pipeline.Result[messageRun], error) {
	ev := r.event
	content := StripMarker(ev.Text, b.settings.Marker)
	if content == "" {
		b.notify(ctx, ev.ChannelID, ev.UserID, "There is nothing to tweet in that message.")
		return pipeline.Stop[messageRun](), nil
	}
	if n := utf8.RuneCountInString(content); n > publish.MaxRunes {
		b.notify(ctx, ev.ChannelID, ev.UserID,
			fmt.Sprintf("That message is %d characters long; tweets are limited to %d.", n, publish.MaxRunes))
		return pipeline.Stop[messageRun](), nil
	}

	r.content = content
	r.post = postcache.NewPendingPost(ev.UserID, ev.MessageID, ev.ChannelID, ev.ThreadTS, content, r.now, b.settings.Expiry)
	if err := b.store.Put(ctx, r.post); err != nil {
		return pipeline.Result[messageRun]{}, fmt.Errorf("queue post: %w", err)
	}
	b.forgetPublished(ev.UserID)
	slog.Info("Bot: post queued", "user", ev.UserID, "message_id", ev.MessageID, "expires_at", r.post.ExpiresAt)
	return pipeline.Continue(r), nil
}

func (b *Bot) requestConfirmation(ctx context.Context, r messageRun) (pipeline.Result[messageRun], error) {
	ev := r.event
	prompt := ConfirmationPrompt(ev.UserID, ev.MessageID, r.content)
	if err := b.chat.PostEphemeral(ctx, ev.ChannelID, ev.UserID, "Want me to tweet?", prompt); err != nil {
		return pipeline.Result[messageRun]{}, fmt.Errorf("request confirmation: %w", err)
	}
	return pipeline.Continue(r), nil
}

// HasMarker reports whether text triggers the flow under mode.
func HasMarker(text, marker string, mode MatchMode) bool {
	if marker == "" {
		return false
	}
	if mode == MatchContains {
		return strings.Contains(text, marker)
	}
	return strings.HasPrefix(text, marker)
}

// StripMarker removes every marker occurrence and the chat platform's HTML
// escaping, then trims surrounding whitespace.
func StripMarker(text, marker string) string {
	if marker != "" {
		text = strings.ReplaceAll(text, marker, "")
	}
	return strings.TrimSpace(slackEntities.Replace(text))
}

// ConfirmationPrompt builds the two-button prompt for messageID.
func ConfirmationPrompt(userID, messageID, content string) *Prompt {
	return &Prompt{
		BlockID: BlockConfirmation,
		Body: fmt.Sprintf("Hey there <@%s>! - I can tweet that for you.\nShall I go ahead and tweet: '%s'?",
			userID, content),
		Buttons: []Button{
			{
				ActionID: ActionConfirm,
				Label:    "Yes, please!",
				Style:    StylePrimary,
				Value:    ActionValue{Decision: DecisionConfirm, MessageID: messageID},
			},
			{
				ActionID: ActionDecline,
				Label:    "No, thank you.",
				Style:    StyleDanger,
				Value:    ActionValue{Decision: DecisionDecline, MessageID: messageID},
			},
		},
	}
}
