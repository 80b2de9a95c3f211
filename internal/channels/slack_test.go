package channels

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/KafClaw/tweetbot/internal/tweetflow"
)

type slackCall struct {
	path string
	body string
}

type fakeSlackAPI struct {
	mu         sync.Mutex
	calls      []slackCall
	rateLimitN int
	srv        *httptest.Server
}

func newFakeSlackAPI(t *testing.T) *fakeSlackAPI {
	t.Helper()
	f := &fakeSlackAPI{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body := string(raw)
		if unescaped, err := url.QueryUnescape(body); err == nil {
			body = unescaped
		}
		f.mu.Lock()
		f.calls = append(f.calls, slackCall{path: r.URL.Path, body: body})
		limited := f.rateLimitN > 0
		if limited {
			f.rateLimitN--
		}
		f.mu.Unlock()
		if limited {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "chat.postEphemeral"):
			_, _ = w.Write([]byte(`{"ok":true,"message_ts":"1700000000.000200"}`))
		case strings.HasSuffix(r.URL.Path, "chat.postMessage"):
			_, _ = w.Write([]byte(`{"ok":true,"channel":"C1","ts":"1700000000.000300"}`))
		default:
			_, _ = w.Write([]byte(`{"ok":false,"error":"unknown_method"}`))
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSlackAPI) channel() *SlackChannel {
	return NewSlackChannel(NewSlackClient("xoxb-test", "", f.srv.URL+"/api", f.srv.Client()))
}

func (f *fakeSlackAPI) snapshot() []slackCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]slackCall(nil), f.calls...)
}

func testPrompt() *tweetflow.Prompt {
	return &tweetflow.Prompt{
		BlockID: tweetflow.BlockConfirmation,
		Body:    "Shall I go ahead and tweet: 'hello'?",
		Buttons: []tweetflow.Button{
			{ActionID: tweetflow.ActionConfirm, Label: "Yes, please!", Style: tweetflow.StylePrimary,
				Value: tweetflow.ActionValue{Decision: tweetflow.DecisionConfirm, MessageID: "1.1"}},
			{ActionID: tweetflow.ActionDecline, Label: "No, thank you.", Style: tweetflow.StyleDanger,
				Value: tweetflow.ActionValue{Decision: tweetflow.DecisionDecline, MessageID: "1.1"}},
		},
	}
}

func TestPostEphemeralSendsPromptBlocks(t *testing.T) {
	api := newFakeSlackAPI(t)
	if err := api.channel().PostEphemeral(context.Background(), "C1", "U1", "Want me to tweet?", testPrompt()); err != nil {
		t.Fatalf("post ephemeral: %v", err)
	}
	calls := api.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected one call, got %d", len(calls))
	}
	if !strings.HasSuffix(calls[0].path, "/api/chat.postEphemeral") {
		t.Fatalf("unexpected path: %s", calls[0].path)
	}
	for _, want := range []string{"U1", tweetflow.BlockConfirmation, tweetflow.ActionConfirm, tweetflow.ActionDecline, "primary", "danger", "Want me to tweet?"} {
		if !strings.Contains(calls[0].body, want) {
			t.Fatalf("request body missing %q: %s", want, calls[0].body)
		}
	}
}

func TestSayPostsInThread(t *testing.T) {
	api := newFakeSlackAPI(t)
	if err := api.channel().Say(context.Background(), "C1", "1700000000.000100", "Tweeted: https://x"); err != nil {
		t.Fatalf("say: %v", err)
	}
	calls := api.snapshot()
	if len(calls) != 1 || !strings.HasSuffix(calls[0].path, "chat.postMessage") {
		t.Fatalf("unexpected calls: %+v", calls)
	}
	if !strings.Contains(calls[0].body, "thread_ts") || !strings.Contains(calls[0].body, "1700000000.000100") {
		t.Fatalf("expected threaded reply, got %s", calls[0].body)
	}
}

func TestSendRetriesWhenRateLimited(t *testing.T) {
	api := newFakeSlackAPI(t)
	api.rateLimitN = 1
	if err := api.channel().Say(context.Background(), "C1", "", "hi"); err != nil {
		t.Fatalf("say after rate limit: %v", err)
	}
	if n := len(api.snapshot()); n != 2 {
		t.Fatalf("expected retry, got %d calls", n)
	}
}

func TestSendGivesUpAfterAttempts(t *testing.T) {
	api := newFakeSlackAPI(t)
	api.rateLimitN = sendAttempts
	err := api.channel().Say(context.Background(), "C1", "", "hi")
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	if n := len(api.snapshot()); n != sendAttempts {
		t.Fatalf("expected %d attempts, got %d", sendAttempts, n)
	}
}

func TestPromptBlocksLayout(t *testing.T) {
	blocks := PromptBlocks(testPrompt())
	if len(blocks) != 2 {
		t.Fatalf("expected section and actions, got %d blocks", len(blocks))
	}
	actions, ok := blocks[1].(*slack.ActionBlock)
	if !ok {
		t.Fatalf("second block is %T", blocks[1])
	}
	if actions.BlockID != tweetflow.BlockConfirmation || len(actions.Elements.ElementSet) != 2 {
		t.Fatalf("unexpected actions block: %+v", actions)
	}
	yes, ok := actions.Elements.ElementSet[0].(*slack.ButtonBlockElement)
	if !ok {
		t.Fatalf("first element is %T", actions.Elements.ElementSet[0])
	}
	v, err := tweetflow.ParseActionValue(yes.Value)
	if err != nil || v.Decision != tweetflow.DecisionConfirm || v.MessageID != "1.1" {
		t.Fatalf("unexpected button value %q: %v", yes.Value, err)
	}
	if yes.Style != slack.StylePrimary {
		t.Fatalf("unexpected style: %s", yes.Style)
	}
}

func TestSendStopsWhenPacingWaitIsCancelled(t *testing.T) {
	api := newFakeSlackAPI(t)
	ch := api.channel()
	ch.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	if err := ch.Say(context.Background(), "C1", "", "first"); err != nil {
		t.Fatalf("first say: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := ch.Say(ctx, "C1", "", "second"); err == nil {
		t.Fatal("expected the paced send to fail once its context ends")
	}
	if n := len(api.snapshot()); n != 1 {
		t.Fatalf("expected only the first send to reach Slack, got %d calls", n)
	}
}
