package models

import "time"

const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// DefaultUserID is used by the server when a request omits user_id.
const DefaultUserID = "default_user"

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role      string    `json:"role" yaml:"role"` // "user" or "bot"
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"-" yaml:"-"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// ChatResponse is the reply from the chat endpoint. Clients only rely on Response.
type ChatResponse struct {
	Response            string        `json:"response"`
	ConversationHistory []ChatMessage `json:"conversation_history,omitempty"`
}

type PingResponse struct {
	Status  string `json:"status" yaml:"status"`
	Message string `json:"message" yaml:"message"`
}

type ResetResponse struct {
	Message string `json:"message"`
}
