package domain

// Message is one completed exchange in the assistant's conversation memory.
type Message struct {
	PK             string
	SK             string
	ConversationID string
	Text           string
	Answer         string
	Status         string
	TTL            int64
}

// ConversationMeta stores aggregate conversation state.
type ConversationMeta struct {
	PK             string
	SK             string
	ConversationID string
	LastActivity   string
	Turns          int
	TTL            int64
}
