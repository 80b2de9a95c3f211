package publish

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultAuditTopic receives one record per published post.
const DefaultAuditTopic = "tweetbot.published"

// PublishedRecord is the audit event written after a successful publish.
type PublishedRecord struct {
	ID          string    `json:"id"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Text        string    `json:"text"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// MessageWriter is the subset of *kafka.Writer the audit sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a synchronous writer for the audit topic.
func NewKafkaWriter(brokers, topic string, timeout time.Duration) *kafka.Writer {
	if strings.TrimSpace(topic) == "" {
		topic = DefaultAuditTopic
	}
	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: timeout,
		Async:        false,
	}
}

// AuditPublisher records every successful publish of next on a Kafka topic.
type AuditPublisher struct {
	next   Publisher
	writer MessageWriter
}

// NewAuditPublisher wraps next. Writer failures are logged and never fail a publish.
func NewAuditPublisher(next Publisher, w MessageWriter) *AuditPublisher {
	return &AuditPublisher{next: next, writer: w}
}

func (p *AuditPublisher) Publish(ctx context.Context, text string) (Receipt, error) {
	rcpt, err := p.next.Publish(ctx, text)
	if err != nil {
		return rcpt, err
	}
	rec := PublishedRecord{
		ID:          rcpt.ID,
		RequestedBy: RequesterFrom(ctx),
		Text:        rcpt.Text,
		URL:         rcpt.URL,
		PublishedAt: rcpt.PublishedAt,
	}
	if rec.Text == "" {
		rec.Text = text
	}
	value, _ := json.Marshal(rec)
	msg := kafka.Message{
		Key:   []byte(rec.RequestedBy),
		Value: value,
		Time:  rec.PublishedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Warn("AuditPublisher: write failed", "tweet_id", rec.ID, "error", err)
	}
	return rcpt, nil
}

// Close releases the audit writer.
func (p *AuditPublisher) Close() error {
	return p.writer.Close()
}
