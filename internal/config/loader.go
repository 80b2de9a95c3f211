package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is tried before the bare variable name.
const EnvPrefix = "TWEETBOT"

// Load reads .env candidates, applies environment overrides to the defaults
// and validates the result.
func Load() (*Config, error) {
	LoadEnvFileCandidates()
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv applies environment overrides to DefaultConfig without validating.
// envconfig looks up TWEETBOT_<NAME> and falls back to <NAME>.
func FromEnv() (*Config, error) {
	cfg := DefaultConfig()
	groups := []struct {
		name string
		spec any
	}{
		{"trigger", &cfg.Trigger},
		{"server", &cfg.Server},
		{"slack", &cfg.Slack},
		{"twitter", &cfg.Twitter},
		{"audit", &cfg.Audit},
	}
	for _, g := range groups {
		if err := envconfig.Process(EnvPrefix, g.spec); err != nil {
			return nil, fmt.Errorf("%s config: %w", g.name, err)
		}
	}
	cfg.Trigger.Mode = strings.ToLower(strings.TrimSpace(cfg.Trigger.Mode))
	cfg.Server.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.Server.StoreDriver))
	cfg.Audit.Brokers = compact(cfg.Audit.Brokers)
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Trigger.Marker) == "" {
		errs = append(errs, errors.New("TRIGGER_MARKER must not be empty"))
	}
	switch c.Trigger.Mode {
	case "prefix", "contains":
	default:
		errs = append(errs, fmt.Errorf("TRIGGER_MODE %q: want prefix or contains", c.Trigger.Mode))
	}
	if c.Trigger.Cooldown <= 0 {
		errs = append(errs, errors.New("COOLDOWN must be positive"))
	}
	if c.Trigger.PostExpiry <= 0 {
		errs = append(errs, errors.New("POST_EXPIRY must be positive"))
	}
	if c.Server.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Server.Port))
	}
	switch c.Server.StoreDriver {
	case "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q: want memory or sqlite", c.Server.StoreDriver))
	}
	if strings.TrimSpace(c.Slack.BotToken) == "" {
		errs = append(errs, errors.New("SLACK_BOT_TOKEN is required"))
	}
	if strings.TrimSpace(c.Slack.SigningSecret) == "" && strings.TrimSpace(c.Slack.AppToken) == "" {
		errs = append(errs, errors.New("SLACK_SIGNING_SECRET or SLACK_APP_TOKEN is required"))
	}
	if !c.Trigger.Debug {
		for _, f := range []struct{ name, value string }{
			{"TWITTER_CONSUMER_KEY", c.Twitter.ConsumerKey},
			{"TWITTER_CONSUMER_SECRET", c.Twitter.ConsumerSecret},
			{"TWITTER_ACCESS_TOKEN_KEY", c.Twitter.AccessTokenKey},
			{"TWITTER_ACCESS_TOKEN_SECRET", c.Twitter.AccessTokenSecret},
		} {
			if strings.TrimSpace(f.value) == "" {
				errs = append(errs, fmt.Errorf("%s is required unless DEBUG_MODE is set", f.name))
			}
		}
	}
	if c.Audit.Enabled() && strings.TrimSpace(c.Audit.Topic) == "" {
		errs = append(errs, errors.New("AUDIT_KAFKA_TOPIC must not be empty when brokers are set"))
	}
	return errors.Join(errs...)
}

// Masked returns a copy with secrets reduced to a short hint.
func (c *Config) Masked() *Config {
	out := *c
	out.Slack.BotToken = mask(c.Slack.BotToken)
	out.Slack.SigningSecret = mask(c.Slack.SigningSecret)
	out.Slack.AppToken = mask(c.Slack.AppToken)
	out.Twitter.ConsumerKey = mask(c.Twitter.ConsumerKey)
	out.Twitter.ConsumerSecret = mask(c.Twitter.ConsumerSecret)
	out.Twitter.AccessTokenKey = mask(c.Twitter.AccessTokenKey)
	out.Twitter.AccessTokenSecret = mask(c.Twitter.AccessTokenSecret)
	out.Audit.Brokers = append([]string(nil), c.Audit.Brokers...)
	return &out
}

func mask(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return v[:4] + "****"
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
