package tweetflow

import "context"

// ButtonStyle mirrors the chat platform's button colouring.
type ButtonStyle string

const (
	StylePrimary ButtonStyle = "primary"
	StyleDanger  ButtonStyle = "danger"
)

// Button is one interactive element of a Prompt.
type Button struct {
	ActionID string
	Label    string
	Style    ButtonStyle
	Value    ActionValue
}

// Prompt is the body and buttons of an interactive message.
type Prompt struct {
	BlockID string
	Body    string
	Buttons []Button
}

// ChatGateway sends messages back to the chat workspace.
type ChatGateway interface {
	// PostEphemeral shows text (and the optional prompt) only to userID.
	PostEphemeral(ctx context.Context, channelID, userID, text string, prompt *Prompt) error
	// Say posts a visible message, threaded under threadTS when set.
	Say(ctx context.Context, channelID, threadTS, text string) error
}
