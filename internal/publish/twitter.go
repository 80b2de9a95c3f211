package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
)

// DefaultTwitterAPIBase is the production API host.
const DefaultTwitterAPIBase = "https://api.twitter.com"

// TwitterCredentials are the OAuth1 user-context secrets of the posting account.
type TwitterCredentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessTokenKey    string
	AccessTokenSecret string
}

// Complete reports whether all four secrets are set.
func (c TwitterCredentials) Complete() bool {
	return strings.TrimSpace(c.ConsumerKey) != "" &&
		strings.TrimSpace(c.ConsumerSecret) != "" &&
		strings.TrimSpace(c.AccessTokenKey) != "" &&
		strings.TrimSpace(c.AccessTokenSecret) != ""
}

// TwitterPublisher creates tweets through the v2 API.
type TwitterPublisher struct {
	apiBase string
	client  *http.Client
	now     func() time.Time
}

// NewTwitterPublisher builds a publisher whose requests are OAuth1 signed.
// timeout bounds each request; apiBase defaults to DefaultTwitterAPIBase.
func NewTwitterPublisher(creds TwitterCredentials, apiBase string, timeout time.Duration) *TwitterPublisher {
	cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessTokenKey, creds.AccessTokenSecret)
	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)
	client := cfg.Client(ctx, token)
	client.Timeout = timeout

	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		apiBase = DefaultTwitterAPIBase
	}
	return &TwitterPublisher{apiBase: apiBase, client: client, now: time.Now}
}

type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type apiErrorBody struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Publish posts text as a new tweet.
func (p *TwitterPublisher) Publish(ctx context.Context, text string) (Receipt, error) {
	body, _ := json.Marshal(map[string]string{"text": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrPublish, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrPublish, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Receipt{}, fmt.Errorf("%w: %w", ErrPublish, &APIError{StatusCode: resp.StatusCode, Detail: apiErrorDetail(raw)})
	}

	var out createTweetResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Receipt{}, fmt.Errorf("%w: decode response: %v", ErrPublish, err)
	}
	if out.Data.ID == "" {
		detail := "missing tweet id"
		if len(out.Errors) > 0 {
			detail = out.Errors[0].Message
		}
		return Receipt{}, fmt.Errorf("%w: %s", ErrPublish, detail)
	}
	return Receipt{
		ID:          out.Data.ID,
		Text:        out.Data.Text,
		URL:         TweetURL(out.Data.ID),
		PublishedAt: p.now(),
	}, nil
}

// TweetURL returns the public link of a tweet id.
func TweetURL(id string) string {
	return "https://twitter.com/i/web/status/" + id
}

func apiErrorDetail(raw []byte) string {
	var body apiErrorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		switch {
		case body.Detail != "":
			return body.Detail
		case len(body.Errors) > 0 && body.Errors[0].Message != "":
			return body.Errors[0].Message
		case body.Title != "":
			return body.Title
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
