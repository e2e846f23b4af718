package conversation

import "context"

// Kind distinguishes inbound event variants.
type Kind int

const (
	// KindMessage is a text message, possibly a /command.
	KindMessage Kind = iota + 1
	// KindCallback is an inline keyboard button press.
	KindCallback
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Event is one inbound update from the chat transport.
type Event struct {
	UserID int64
	ChatID int64
	Kind   Kind

	// Message fields. Command is set without the leading slash when Text
	// starts with one.
	Text    string
	Command string

	// Callback fields. MessageID is the message carrying the pressed
	// keyboard, zero when the transport does not know it.
	CallbackID   string
	CallbackData string
	MessageID    int
}

// IsCommand reports whether the event is a /command message.
func (e Event) IsCommand() bool {
	return e.Kind == KindMessage && e.Command != ""
}

// Button is one inline keyboard button.
type Button struct {
	Label string
	Data  string
}

// Reply is an outbound message.
type Reply struct {
	Text     string
	Keyboard [][]Button
	// RichText marks Text as HTML.
	RichText bool
}

// Sender delivers replies through the chat transport. Edit replaces the
// text and keyboard of a message the bot sent earlier.
type Sender interface {
	Send(ctx context.Context, chatID int64, reply Reply) error
	Edit(ctx context.Context, chatID int64, messageID int, reply Reply) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
