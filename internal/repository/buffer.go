package repository

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"atlas-widget/internal/domain"
)

// Buffer is an in-process conversation memory. It is the default store when
// no DynamoDB table is configured and is lost on restart.
type Buffer struct {
	mu       sync.Mutex
	maxTurns int
	turns    map[string][]domain.Message
	counts   map[string]int
	now      func() time.Time
}

// NewBuffer keeps at most maxTurns turns per conversation; zero or less keeps
// everything.
func NewBuffer(maxTurns int) *Buffer {
	return &Buffer{
		maxTurns: maxTurns,
		turns:    make(map[string][]domain.Message),
		counts:   make(map[string]int),
		now:      time.Now,
	}
}

func (b *Buffer) GetHistory(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := b.turns[conversationID]
	if limit > 0 && len(stored) > limit {
		stored = stored[len(stored)-limit:]
	}
	out := make([]domain.Message, len(stored))
	copy(out, stored)
	return out, nil
}

// Turns counts every turn saved to the conversation, including those the
// buffer has since dropped.
func (b *Buffer) Turns(_ context.Context, conversationID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[conversationID], nil
}

func (b *Buffer) SaveTurn(_ context.Context, conversationID, question, answer string) error {
	if conversationID == "" {
		return errors.New("repository: SaveTurn: conversation id is required")
	}
	now := b.now().UTC()

	b.mu.Lock()
	defer b.mu.Unlock()

	stored := append(b.turns[conversationID], domain.Message{
		PK:             convPK(conversationID),
		SK:             msgSK(now),
		ConversationID: conversationID,
		Text:           question,
		Answer:         answer,
		Status:         statusComplete,
	})
	if b.maxTurns > 0 && len(stored) > b.maxTurns {
		stored = append([]domain.Message(nil), stored[len(stored)-b.maxTurns:]...)
	}
	b.turns[conversationID] = stored
	b.counts[conversationID]++
	return nil
}

