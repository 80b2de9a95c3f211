// Package tweetflow turns marked chat messages into confirmed tweets.
//
// Two pipelines share a post cache: the message pipeline queues a post and asks
// the author to confirm it, and the confirmation pipeline publishes it once the
// author clicks the matching button.
package tweetflow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Interactive element identifiers of the confirmation prompt.
const (
	BlockConfirmation = "tweet_confirmation"
	ActionConfirm     = "tweet_confirm"
	ActionDecline     = "tweet_decline"
)

// Decision is the answer carried by a confirmation button.
type Decision string

const (
	DecisionConfirm Decision = "confirm"
	DecisionDecline Decision = "decline"
)

// MessageEvent is an inbound chat message.
type MessageEvent struct {
	UserID    string
	ChannelID string
	MessageID string // Slack ts of the message
	ThreadTS  string
	Text      string
	SubType   string
	BotID     string
}

// ActionValue is the correlation key stored on each confirmation button.
type ActionValue struct {
	Decision  Decision `json:"decision"`
	MessageID string   `json:"message_id"`
}

// Encode renders the value for a button payload.
func (v ActionValue) Encode() string {
	b, _ := json.Marshal(v)
	return string(b)
}

// ParseActionValue decodes a button payload produced by Encode.
func ParseActionValue(raw string) (ActionValue, error) {
	var v ActionValue
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return ActionValue{}, fmt.Errorf("parse action value: %w", err)
	}
	switch v.Decision {
	case DecisionConfirm, DecisionDecline:
	default:
		return ActionValue{}, fmt.Errorf("parse action value: unknown decision %q", v.Decision)
	}
	return v, nil
}

// Interaction is a click on one of the confirmation buttons.
type Interaction struct {
	UserID             string
	ActionID           string
	Value              ActionValue
	ChannelID          string
	ContainerChannelID string
}

// ReplyChannel is where ephemeral answers to the click go.
func (i Interaction) ReplyChannel() string {
	if c := strings.TrimSpace(i.ContainerChannelID); c != "" {
		return c
	}
	return strings.TrimSpace(i.ChannelID)
}

// IsConfirmationAction reports whether actionID belongs to the prompt.
func IsConfirmationAction(actionID string) bool {
	return actionID == ActionConfirm || actionID == ActionDecline
}
