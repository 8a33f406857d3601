package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edubot/internal/models"
	"edubot/internal/repository"
)

type echoBot struct{}

func (echoBot) Reply(ctx context.Context, message string) string {
	return "echo: " + message
}

// failingStore fails every call.
type failingStore struct{}

func (failingStore) Append(ctx context.Context, userID string, msgs ...models.ChatMessage) ([]models.ChatMessage, error) {
	return nil, errors.New("store down")
}

func (failingStore) Get(ctx context.Context, userID string) ([]models.ChatMessage, error) {
	return nil, errors.New("store down")
}

func (failingStore) Reset(ctx context.Context, userID string) (bool, error) {
	return false, errors.New("store down")
}

func newTestRouter(store repository.ConversationStore) http.Handler {
	h := NewChatHandler(echoBot{}, store)
	r := chi.NewRouter()
	r.Get("/ping", h.Ping)
	r.Post("/chat", h.Chat)
	r.Get("/history/{user_id}", h.History)
	r.Delete("/reset/{user_id}", h.Reset)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.Error
}

func TestPing(t *testing.T) {
	rr := do(t, newTestRouter(repository.NewMemoryConversationRepo()), http.MethodGet, "/ping", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok","message":"Chatbot is online!"}`, rr.Body.String())
}

func TestChat_RepliesAndRecordsHistory(t *testing.T) {
	h := newTestRouter(repository.NewMemoryConversationRepo())

	rr := do(t, h, http.MethodPost, "/chat", `{"message":"hello","user_id":"student_001"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp models.ChatResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "echo: hello", resp.Response)
	require.Len(t, resp.ConversationHistory, 2)
	assert.Equal(t, models.ChatMessage{Role: "user", Content: "hello"}, resp.ConversationHistory[0])
	assert.Equal(t, models.ChatMessage{Role: "bot", Content: "echo: hello"}, resp.ConversationHistory[1])

	rr = do(t, h, http.MethodPost, "/chat", `{"message":"again","user_id":"student_001"}`)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Len(t, resp.ConversationHistory, 4)
}

func TestChat_DefaultUser(t *testing.T) {
	store := repository.NewMemoryConversationRepo()
	h := newTestRouter(store)

	rr := do(t, h, http.MethodPost, "/chat", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	history, err := store.Get(context.Background(), models.DefaultUserID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestChat_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"message":`},
		{"empty message", `{"message":"","user_id":"u"}`},
		{"blank message", `{"message":"   ","user_id":"u"}`},
		{"oversized body", `{"message":"` + strings.Repeat("a", maxMessageBytes) + `"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, newTestRouter(repository.NewMemoryConversationRepo()), http.MethodPost, "/chat", tc.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rr).Code)
		})
	}
}

func TestHistory(t *testing.T) {
	h := newTestRouter(repository.NewMemoryConversationRepo())

	rr := do(t, h, http.MethodGet, "/history/nobody", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rr).Code)

	do(t, h, http.MethodPost, "/chat", `{"message":"what is energy","user_id":"s1"}`)

	rr = do(t, h, http.MethodGet, "/history/s1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var msgs []models.ChatMessage
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&msgs))
	assert.Len(t, msgs, 2)
}

func TestReset(t *testing.T) {
	h := newTestRouter(repository.NewMemoryConversationRepo())

	rr := do(t, h, http.MethodDelete, "/reset/ghost", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"No conversation history found for user 'ghost'."}`, rr.Body.String())

	do(t, h, http.MethodPost, "/chat", `{"message":"hi","user_id":"s1"}`)

	rr = do(t, h, http.MethodDelete, "/reset/s1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Conversation for user 's1' has been reset."}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/history/s1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestStoreFailures(t *testing.T) {
	h := newTestRouter(failingStore{})

	for _, tc := range []struct {
		method, path, body string
	}{
		{http.MethodPost, "/chat", `{"message":"hi"}`},
		{http.MethodGet, "/history/s1", ""},
		{http.MethodDelete, "/reset/s1", ""},
	} {
		rr := do(t, h, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusInternalServerError, rr.Code, tc.path)
		assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rr).Code)
	}
}

func TestErrorResponse_CarriesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(nil))
	req.Header.Set("X-Request-ID", "req-42")

	resp := errorResp("VALIDATION_ERROR", "Invalid input", req)
	assert.Equal(t, "req-42", resp.Error.RequestID)
	assert.Equal(t, "Invalid input", resp.Error.Message)
}
