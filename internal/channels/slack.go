package channels

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/KafClaw/tweetbot/internal/tweetflow"
)

// DefaultSlackAPIBase is the Slack Web API root.
const DefaultSlackAPIBase = "https://slack.com/api/"

const (
	sendAttempts  = 3
	sendBaseDelay = 200 * time.Millisecond

	// Slack allows about one chat message per second per channel, with short bursts.
	sendRate  = rate.Limit(1)
	sendBurst = 10
)

// NewSlackClient builds a Web API client. appToken is only needed for Socket Mode.
func NewSlackClient(botToken, appToken, apiBase string, httpClient *http.Client) *slack.Client {
	base := strings.TrimSpace(apiBase)
	if base == "" {
		base = DefaultSlackAPIBase
	}
	base = strings.TrimRight(base, "/") + "/"
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	opts := []slack.Option{
		slack.OptionHTTPClient(httpClient),
		slack.OptionAPIURL(base),
	}
	if tok := strings.TrimSpace(appToken); tok != "" {
		opts = append(opts, slack.OptionAppLevelToken(tok))
	}
	return slack.New(strings.TrimSpace(botToken), opts...)
}

// SlackChannel is the outbound side of the Slack integration.
type SlackChannel struct {
	api     *slack.Client
	limiter *rate.Limiter
}

// NewSlackChannel wraps a Web API client. Outbound calls are paced client side.
func NewSlackChannel(api *slack.Client) *SlackChannel {
	return &SlackChannel{api: api, limiter: rate.NewLimiter(sendRate, sendBurst)}
}

// Name returns the channel name.
func (c *SlackChannel) Name() string { return "slack" }

// PostEphemeral shows text, and the prompt blocks when given, to one user.
func (c *SlackChannel) PostEphemeral(ctx context.Context, channelID, userID, text string, prompt *tweetflow.Prompt) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if prompt != nil {
		opts = append(opts, slack.MsgOptionBlocks(PromptBlocks(prompt)...))
	}
	return withRetry(ctx, sendAttempts, sendBaseDelay, func() (bool, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return false, err
		}
		_, err := c.api.PostEphemeralContext(ctx, channelID, userID, opts...)
		return retryDecision(ctx, err)
	})
}

// Say posts a visible message, in a thread when threadTS is set.
func (c *SlackChannel) Say(ctx context.Context, channelID, threadTS, text string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if ts := strings.TrimSpace(threadTS); ts != "" {
		opts = append(opts, slack.MsgOptionTS(ts))
	}
	return withRetry(ctx, sendAttempts, sendBaseDelay, func() (bool, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return false, err
		}
		_, _, err := c.api.PostMessageContext(ctx, channelID, opts...)
		return retryDecision(ctx, err)
	})
}

// PromptBlocks renders a prompt as a section block followed by an actions block.
func PromptBlocks(p *tweetflow.Prompt) []slack.Block {
	section := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, p.Body, false, false),
		nil, nil,
	)
	elems := make([]slack.BlockElement, 0, len(p.Buttons))
	for _, b := range p.Buttons {
		btn := slack.NewButtonBlockElement(
			b.ActionID,
			b.Value.Encode(),
			slack.NewTextBlockObject(slack.PlainTextType, b.Label, true, false),
		)
		if b.Style != "" {
			btn = btn.WithStyle(slack.Style(b.Style))
		}
		elems = append(elems, btn)
	}
	return []slack.Block{section, slack.NewActionBlock(p.BlockID, elems...)}
}

// retryDecision retries rate-limited calls after the advertised delay.
func retryDecision(ctx context.Context, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	var rle *slack.RateLimitedError
	if errors.As(err, &rle) && rle != nil {
		if rle.RetryAfter > 0 {
			if werr := sleepContext(ctx, rle.RetryAfter); werr != nil {
				return false, err
			}
		}
		return true, err
	}
	return false, err
}

func withRetry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() (retryable bool, err error)) error {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		retryable, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || i == attempts-1 {
			break
		}
		if werr := sleepContext(ctx, baseDelay*time.Duration(1<<i)); werr != nil {
			break
		}
	}
	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
