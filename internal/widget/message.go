package widget

// Sender identifies who authored a message bubble.
type Sender int

const (
	SenderUser Sender = iota
	SenderBot
)

func (s Sender) String() string {
	if s == SenderUser {
		return "user"
	}
	return "bot"
}

// Message is one rendered bubble. It has no identity beyond its position in
// the message list.
type Message struct {
	Text   string
	Sender Sender
}

// Reply is the chat endpoint's answer as the widget sees it. At most one of
// the fields is expected to be set.
type Reply struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}
