package tweetflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KafClaw/tweetbot/internal/pipeline"
	"github.com/KafClaw/tweetbot/internal/postcache"
	"github.com/KafClaw/tweetbot/internal/publish"
)

// confirmationRun is the value threaded through the confirmation pipeline.
type confirmationRun struct {
	interaction Interaction
	now         time.Time
	post        postcache.PendingPost
}

func (r confirmationRun) user() string    { return r.interaction.UserID }
func (r confirmationRun) channel() string { return r.interaction.ReplyChannel() }

func (b *Bot) checkDecline(ctx context.Context, r confirmationRun) (pipeline.Result[confirmationRun], error) {
	if r.interaction.Value.Decision == DecisionDecline {
		b.notify(ctx, r.channel(), r.user(), "Sounds good :+1:. I will ignore that.")
		return pipeline.Stop[confirmationRun](), nil
	}
	return pipeline.Continue(r), nil
}

func (b *Bot) checkPending(ctx context.Context, r confirmationRun) (pipeline.Result[confirmationRun], error) {
	post, ok, err := b.store.Get(ctx, r.user())
	if err != nil {
		return pipeline.Result[confirmationRun]{}, fmt.Errorf("load pending post: %w", err)
	}
	if !ok || b.alreadyPublished(post) {
		b.notify(ctx, r.channel(), r.user(), "Sorry :-(, could not find messages from you!")
		return pipeline.Stop[confirmationRun](), nil
	}
	r.post = post
	return pipeline.Continue(r), nil
}

func (b *Bot) checkBinding(ctx context.Context, r confirmationRun) (pipeline.Result[confirmationRun], error) {
	if !r.post.BoundTo(r.interaction.Value.MessageID) {
		slog.Info("Bot: confirmation for superseded prompt",
			"user", r.user(),
			"clicked", r.interaction.Value.MessageID,
			"pending", r.post.SourceMessageID)
		b.notify(ctx, r.channel(), r.user(), "Received confirmation on old message - ignoring")
		return pipeline.Stop[confirmationRun](), nil
	}
	return pipeline.Continue(r), nil
}

func (b *Bot) checkExpiry(ctx context.Context, r confirmationRun) (pipeline.Result[confirmationRun], error) {
	if r.post.Expired(r.now) {
		if err := b.store.Delete(ctx, r.user()); err != nil {
			slog.Warn("Bot: drop expired post failed", "user", r.user(), "error", err)
		}
		b.notify(ctx, r.channel(), r.user(),
			fmt.Sprintf("Sorry, that post expired at %s. Send it again to tweet it.", r.post.ExpiresAt.Format(time.Kitchen)))
		return pipeline.Stop[confirmationRun](), nil
	}
	return pipeline.Continue(r), nil
}

func (b *Bot) publishPost(ctx context.Context, r confirmationRun) (pipeline.Result[confirmationRun], error) {
	content := r.post.Content
	b.notify(ctx, r.channel(), r.user(), "Going ahead and tweeting: "+content)

	rcpt, err := b.publisher.Publish(publish.WithRequester(ctx, r.user()), content)
	if err != nil {
		b.notify(ctx, r.channel(), r.user(), "Sorry, tweeting failed. Click the button again to retry.")
		return pipeline.Result[confirmationRun]{}, fmt.Errorf("publish post: %w", err)
	}
	slog.Info("Bot: tweeted", "user", r.user(), "content", content, "tweet_id", rcpt.ID, "url", rcpt.URL)

	// The tweet is out; a store failure here must not make it retryable.
	b.retire(ctx, r)

	if b.settings.AnnounceInThread && rcpt.URL != "" {
		thread := r.post.ThreadTS
		if thread == "" {
			thread = r.post.SourceMessageID
		}
		if err := b.chat.Say(ctx, r.post.ChannelID, thread, "Tweeted: "+rcpt.URL); err != nil {
			slog.Warn("Bot: thread announcement failed", "channel", r.post.ChannelID, "error", err)
		}
	}
	return pipeline.Continue(r), nil
}

func (b *Bot) retire(ctx context.Context, r confirmationRun) {
	err := b.store.MarkSent(ctx, r.user())
	if err == nil {
		return
	}
	slog.Warn("Bot: mark published post failed, deleting it", "user", r.user(), "error", err)
	if err := b.store.Delete(ctx, r.user()); err != nil {
		slog.Error("Bot: published post still cached, ignoring further clicks",
			"user", r.user(), "message_id", r.post.SourceMessageID, "error", err)
		b.rememberPublished(r.user(), r.post.SourceMessageID)
	}
}
