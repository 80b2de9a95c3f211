package channels

import (
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/KafClaw/tweetbot/internal/tweetflow"
)

// MessageFromSlack converts an Events API message.
func MessageFromSlack(ev *slackevents.MessageEvent) tweetflow.MessageEvent {
	return tweetflow.MessageEvent{
		UserID:    strings.TrimSpace(ev.User),
		ChannelID: strings.TrimSpace(ev.Channel),
		MessageID: strings.TrimSpace(ev.TimeStamp),
		ThreadTS:  strings.TrimSpace(ev.ThreadTimeStamp),
		Text:      ev.Text,
		SubType:   ev.SubType,
		BotID:     ev.BotID,
	}
}

// InteractionFromSlack converts a block action click on the confirmation
// prompt. ok is false for any other interaction.
func InteractionFromSlack(cb slack.InteractionCallback) (tweetflow.Interaction, bool) {
	if cb.Type != slack.InteractionTypeBlockActions {
		return tweetflow.Interaction{}, false
	}
	for _, action := range cb.ActionCallback.BlockActions {
		if action == nil || !tweetflow.IsConfirmationAction(action.ActionID) {
			continue
		}
		value, err := tweetflow.ParseActionValue(action.Value)
		if err != nil {
			// Unparseable payloads still carry the decision through the action id.
			value = tweetflow.ActionValue{Decision: decisionFor(action.ActionID)}
		}
		return tweetflow.Interaction{
			UserID:             strings.TrimSpace(cb.User.ID),
			ActionID:           action.ActionID,
			Value:              value,
			ChannelID:          strings.TrimSpace(cb.Channel.ID),
			ContainerChannelID: strings.TrimSpace(cb.Container.ChannelID),
		}, true
	}
	return tweetflow.Interaction{}, false
}

func decisionFor(actionID string) tweetflow.Decision {
	if actionID == tweetflow.ActionDecline {
		return tweetflow.DecisionDecline
	}
	return tweetflow.DecisionConfirm
}
