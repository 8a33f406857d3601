package repository

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"edubot/internal/models"
)

// ErrNotFound is returned when a user has never chatted.
var ErrNotFound = errors.New("conversation not found")

// ConversationStore keeps per-user chat history. A reset user still exists,
// with an empty history.
type ConversationStore interface {
	// Append adds messages to the user's conversation, creating it if needed,
	// and returns the full history.
	Append(ctx context.Context, userID string, msgs ...models.ChatMessage) ([]models.ChatMessage, error)
	Get(ctx context.Context, userID string) ([]models.ChatMessage, error)
	// Reset empties the conversation and reports whether the user existed.
	Reset(ctx context.Context, userID string) (bool, error)
}

type MemoryConversationRepo struct {
	mu            sync.RWMutex
	conversations map[string][]models.ChatMessage
}

var _ ConversationStore = (*MemoryConversationRepo)(nil)

func NewMemoryConversationRepo() *MemoryConversationRepo {
	return &MemoryConversationRepo{conversations: make(map[string][]models.ChatMessage)}
}

func (r *MemoryConversationRepo) Append(ctx context.Context, userID string, msgs ...models.ChatMessage) ([]models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[userID]
	if !ok {
		conv = []models.ChatMessage{}
	}
	now := time.Now()
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		conv = append(conv, m)
	}
	r.conversations[userID] = conv
	return cloneMessages(conv), nil
}

func (r *MemoryConversationRepo) Get(ctx context.Context, userID string) ([]models.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.conversations[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMessages(conv), nil
}

func (r *MemoryConversationRepo) Reset(ctx context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[userID]; !ok {
		return false, nil
	}
	r.conversations[userID] = []models.ChatMessage{}
	return true, nil
}

func cloneMessages(msgs []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}
