package channels

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/KafClaw/tweetbot/internal/tweetflow"
)

const testSecret = "8f742231b10e8888abcd99yyyzzz85a5"

type fakeSink struct {
	mu           sync.Mutex
	messages     []tweetflow.MessageEvent
	interactions []tweetflow.Interaction
	err          error
}

func (s *fakeSink) PublishMessage(ev tweetflow.MessageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, ev)
	return nil
}

func (s *fakeSink) PublishInteraction(ia tweetflow.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.interactions = append(s.interactions, ia)
	return nil
}

func newTestReceiver(sink Sink) *HTTPReceiver {
	gin.SetMode(gin.TestMode)
	return NewHTTPReceiver(HTTPConfig{
		SigningSecret: testSecret,
		Sink:          sink,
		Status: func(context.Context) (map[string]any, error) {
			return map[string]any{"pending_posts": 2}, nil
		},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("tweetbot_up 1\n"))
		}),
	})
}

func signedRequest(t *testing.T, path, contentType, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(testSecret))
	_, _ = mac.Write([]byte("v0:" + ts + ":" + body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func interactionForm(t *testing.T, actionID, value string) string {
	t.Helper()
	payload := map[string]any{
		"type":      "block_actions",
		"user":      map[string]any{"id": "U1"},
		"channel":   map[string]any{"id": "C1"},
		"container": map[string]any{"type": "message", "channel_id": "C1"},
		"actions": []map[string]any{{
			"type":      "button",
			"action_id": actionID,
			"block_id":  tweetflow.BlockConfirmation,
			"value":     value,
		}},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return url.Values{"payload": {string(raw)}}.Encode()
}

func TestEventsURLVerificationEchoesChallenge(t *testing.T) {
	rec := newTestReceiver(&fakeSink{})
	body := `{"token":"tok","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P","type":"url_verification"}`
	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, signedRequest(t, "/slack/events", "application/json", body))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if w.Body.String() != "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P" {
		t.Fatalf("unexpected challenge reply: %s", w.Body.String())
	}
}

func TestEventsRejectsBadSignature(t *testing.T) {
	sink := &fakeSink{}
	rec := newTestReceiver(sink)
	body := `{"type":"url_verification","challenge":"x"}`
	req := signedRequest(t, "/slack/events", "application/json", body)
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")
	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestEventsQueuesMessage(t *testing.T) {
	sink := &fakeSink{}
	rec := newTestReceiver(sink)
	body := `{"token":"tok","team_id":"T1","api_app_id":"A1","type":"event_callback","event_id":"Ev1","event_time":1700000000,` +
		`"event":{"type":"message","channel":"C1","user":"U1","text":":twitter: hello","ts":"1700000000.000100","thread_ts":"1699999999.000100"}}`
	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, signedRequest(t, "/slack/events", "application/json", body))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if len(sink.messages) != 1 {
		t.Fatalf("expected one queued message, got %d", len(sink.messages))
	}
	got := sink.messages[0]
	if got.UserID != "U1" || got.ChannelID != "C1" || got.MessageID != "1700000000.000100" ||
		got.ThreadTS != "1699999999.000100" || got.Text != ":twitter: hello" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestEventsBusyQueueReturns503(t *testing.T) {
	sink := &fakeSink{err: errors.New("full")}
	rec := newTestReceiver(sink)
	body := `{"type":"event_callback","team_id":"T1","api_app_id":"A1",` +
		`"event":{"type":"message","channel":"C1","user":"U1","text":"x","ts":"1.1"}}`
	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, signedRequest(t, "/slack/events", "application/json", body))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestInteractionsQueueConfirmation(t *testing.T) {
	sink := &fakeSink{}
	rec := newTestReceiver(sink)
	value := tweetflow.ActionValue{Decision: tweetflow.DecisionConfirm, MessageID: "1700000000.000100"}.Encode()
	body := interactionForm(t, tweetflow.ActionConfirm, value)
	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, signedRequest(t, "/slack/interactions", "application/x-www-form-urlencoded", body))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if len(sink.interactions) != 1 {
		t.Fatalf("expected one interaction, got %d", len(sink.interactions))
	}
	ia := sink.interactions[0]
	if ia.UserID != "U1" || ia.ReplyChannel() != "C1" || ia.Value.MessageID != "1700000000.000100" || ia.Value.Decision != tweetflow.DecisionConfirm {
		t.Fatalf("unexpected interaction: %+v", ia)
	}
}

func TestInteractionsIgnoreForeignActions(t *testing.T) {
	sink := &fakeSink{}
	rec := newTestReceiver(sink)
	body := interactionForm(t, "something_else", "v")
	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, signedRequest(t, "/slack/interactions", "application/x-www-form-urlencoded", body))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if len(sink.interactions) != 0 {
		t.Fatalf("foreign action should be ignored: %+v", sink.interactions)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	rec := newTestReceiver(&fakeSink{})
	for path, want := range map[string]string{
		"/healthz": `"ok"`,
		"/status":  `"pending_posts":2`,
		"/metrics": "tweetbot_up 1",
	} {
		w := httptest.NewRecorder()
		rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), want) {
			t.Fatalf("%s: status=%d body=%s", path, w.Code, w.Body.String())
		}
	}
}

func TestSlackRoutesRequireSigningSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := NewHTTPReceiver(HTTPConfig{Sink: &fakeSink{}})
	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader("{}")))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected slack routes to be absent, got %d", w.Code)
	}
}

func TestInteractionFromSlackFallsBackToActionID(t *testing.T) {
	cb := slack.InteractionCallback{Type: slack.InteractionTypeBlockActions}
	cb.User.ID = "U1"
	cb.Channel.ID = "C1"
	cb.ActionCallback.BlockActions = []*slack.BlockAction{{ActionID: tweetflow.ActionDecline, Value: "not-json"}}
	ia, ok := InteractionFromSlack(cb)
	if !ok {
		t.Fatal("expected confirmation action to translate")
	}
	if ia.Value.Decision != tweetflow.DecisionDecline || ia.Value.MessageID != "" {
		t.Fatalf("unexpected fallback value: %+v", ia.Value)
	}
	if ia.ReplyChannel() != "C1" {
		t.Fatalf("unexpected reply channel: %s", ia.ReplyChannel())
	}
}

func TestInteractionFromSlackIgnoresOtherTypes(t *testing.T) {
	cb := slack.InteractionCallback{Type: slack.InteractionTypeViewSubmission}
	if _, ok := InteractionFromSlack(cb); ok {
		t.Fatal("view submissions are not confirmations")
	}
}

func TestSocketModeAcksBeforeQueueing(t *testing.T) {
	sink := &fakeSink{}
	r := &SocketModeReceiver{sink: sink}
	var acked []string
	ack := func(req socketmode.Request) { acked = append(acked, req.EnvelopeID) }

	r.handle(socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type: slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{
				Type: "message",
				Data: &slackevents.MessageEvent{User: "U1", Channel: "C1", Text: ":twitter: hi", TimeStamp: "1.1"},
			},
		},
		Request: &socketmode.Request{EnvelopeID: "env-1"},
	}, ack)

	cb := slack.InteractionCallback{Type: slack.InteractionTypeBlockActions}
	cb.User.ID = "U1"
	cb.Container.ChannelID = "C1"
	cb.ActionCallback.BlockActions = []*slack.BlockAction{{
		ActionID: tweetflow.ActionConfirm,
		Value:    tweetflow.ActionValue{Decision: tweetflow.DecisionConfirm, MessageID: "1.1"}.Encode(),
	}}
	r.handle(socketmode.Event{
		Type:    socketmode.EventTypeInteractive,
		Data:    cb,
		Request: &socketmode.Request{EnvelopeID: "env-2"},
	}, ack)

	if len(acked) != 2 || acked[0] != "env-1" || acked[1] != "env-2" {
		t.Fatalf("unexpected acks: %v", acked)
	}
	if len(sink.messages) != 1 || sink.messages[0].MessageID != "1.1" {
		t.Fatalf("unexpected messages: %+v", sink.messages)
	}
	if len(sink.interactions) != 1 || sink.interactions[0].Value.MessageID != "1.1" {
		t.Fatalf("unexpected interactions: %+v", sink.interactions)
	}
}
