package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"edubot/internal/middleware"
	"edubot/internal/models"
	"edubot/internal/repository"
)

const maxMessageBytes = 16 << 10

// Replier produces the bot's answer to one message.
type Replier interface {
	Reply(ctx context.Context, message string) string
}

type ChatHandler struct {
	bot   Replier
	store repository.ConversationStore
}

func NewChatHandler(bot Replier, store repository.ConversationStore) *ChatHandler {
	return &ChatHandler{
		bot:   bot,
		store: store,
	}
}

func (h *ChatHandler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.PingResponse{Status: "ok", Message: "Chatbot is online!"})
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = models.DefaultUserID
	}

	reply := h.bot.Reply(r.Context(), req.Message)

	history, err := h.store.Append(r.Context(), req.UserID,
		models.ChatMessage{Role: models.RoleUser, Content: req.Message},
		models.ChatMessage{Role: models.RoleBot, Content: reply},
	)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to store conversation")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store conversation", r))
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{
		Response:            reply,
		ConversationHistory: history,
	})
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	history, err := h.store.Get(r.Context(), userID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "User not found", r))
		return
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to load conversation")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load conversation", r))
		return
	}

	writeJSON(w, http.StatusOK, history)
}

func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	existed, err := h.store.Reset(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to reset conversation")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to reset conversation", r))
		return
	}

	msg := fmt.Sprintf("No conversation history found for user '%s'.", userID)
	if existed {
		msg = fmt.Sprintf("Conversation for user '%s' has been reset.", userID)
	}
	writeJSON(w, http.StatusOK, models.ResetResponse{Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}
