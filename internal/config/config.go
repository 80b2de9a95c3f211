// Package config provides configuration types and loading for tweetbot.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration struct.
// Top-level groups: Trigger, Server, Slack, Twitter, Audit.
type Config struct {
	Trigger TriggerConfig `json:"trigger"`
	Server  ServerConfig  `json:"server"`
	Slack   SlackConfig   `json:"slack"`
	Twitter TwitterConfig `json:"twitter"`
	Audit   AuditConfig   `json:"audit"`
}

// ---------------------------------------------------------------------------
// Trigger – when and how a chat message becomes a pending post
// ---------------------------------------------------------------------------

// TriggerConfig groups bot behaviour settings.
type TriggerConfig struct {
	Marker           string   `json:"marker" envconfig:"TRIGGER_MARKER"`
	Mode             string   `json:"mode" envconfig:"TRIGGER_MODE"`
	Cooldown         Duration `json:"cooldown" envconfig:"COOLDOWN"`
	PostExpiry       Duration `json:"postExpiry" envconfig:"POST_EXPIRY"`
	Debug            bool     `json:"debug" envconfig:"DEBUG_MODE"`
	AnnounceInThread bool     `json:"announceInThread" envconfig:"ANNOUNCE_IN_THREAD"`
}

// ---------------------------------------------------------------------------
// Server – process and HTTP settings
// ---------------------------------------------------------------------------

// ServerConfig groups listener and runtime settings.
type ServerConfig struct {
	Host        string   `json:"host" envconfig:"HOST"`
	Port        int      `json:"port" envconfig:"PORT"`
	HTTPTimeout Duration `json:"httpTimeout" envconfig:"HTTP_TIMEOUT"`
	LogLevel    string   `json:"logLevel" envconfig:"LOG_LEVEL"`
	StoreDriver string   `json:"storeDriver" envconfig:"STORE_DRIVER"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ---------------------------------------------------------------------------
// Slack – chat gateway
// ---------------------------------------------------------------------------

// SlackConfig configures the Slack app.
type SlackConfig struct {
	BotToken      string `json:"botToken" envconfig:"SLACK_BOT_TOKEN"`
	SigningSecret string `json:"signingSecret" envconfig:"SLACK_SIGNING_SECRET"`
	AppToken      string `json:"appToken" envconfig:"SLACK_APP_TOKEN"`
	APIBase       string `json:"apiBase" envconfig:"SLACK_API_BASE"`
}

// ---------------------------------------------------------------------------
// Twitter – publish gateway
// ---------------------------------------------------------------------------

// TwitterConfig holds the OAuth1 user-context credentials.
type TwitterConfig struct {
	ConsumerKey       string `json:"consumerKey" envconfig:"TWITTER_CONSUMER_KEY"`
	ConsumerSecret    string `json:"consumerSecret" envconfig:"TWITTER_CONSUMER_SECRET"`
	AccessTokenKey    string `json:"accessTokenKey" envconfig:"TWITTER_ACCESS_TOKEN_KEY"`
	AccessTokenSecret string `json:"accessTokenSecret" envconfig:"TWITTER_ACCESS_TOKEN_SECRET"`
	APIBase           string `json:"apiBase" envconfig:"TWITTER_API_BASE"`
}

// ---------------------------------------------------------------------------
// Audit – Kafka record of published tweets
// ---------------------------------------------------------------------------

// AuditConfig enables the Kafka audit trail when Brokers is non-empty.
type AuditConfig struct {
	Brokers []string `json:"brokers" envconfig:"AUDIT_KAFKA_BROKERS"`
	Topic   string   `json:"topic" envconfig:"AUDIT_KAFKA_TOPIC"`
}

// Enabled reports whether published tweets are mirrored to Kafka.
func (a AuditConfig) Enabled() bool { return len(a.Brokers) > 0 }

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Trigger: TriggerConfig{
			Marker:     ":twitter:",
			Mode:       "prefix",
			Cooldown:   Duration(60 * time.Second),
			PostExpiry: Duration(15 * time.Minute),
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        3000,
			HTTPTimeout: Duration(15 * time.Second),
			LogLevel:    "info",
			StoreDriver: "memory",
		},
		Slack: SlackConfig{
			APIBase: "https://slack.com/api/",
		},
		Twitter: TwitterConfig{
			APIBase: "https://api.twitter.com",
		},
		Audit: AuditConfig{
			Topic: "tweetbot.published",
		},
	}
}
