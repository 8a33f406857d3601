package chatclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edubot/internal/widget"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := widget.DefaultConfig()
	cfg.Endpoint = srv.URL + "/chat"
	return New(cfg, WithHTTPClient(srv.Client()))
}

func TestSend_RequestShape(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotType   string
		gotBody   string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"hi there"}`))
	})

	reply, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, "hi there", reply)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/chat", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, `{"message":"hello","user_id":"student_001"}`, gotBody)
}

func TestSend_MissingResponseField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reply":"wrong field"}`))
	})

	reply, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "", reply)
}

func TestSend_NonJSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	})

	_, err := c.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response body")
}

func TestSend_NonSuccessStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": "VALIDATION_ERROR", "message": "Message is required"},
		})
	})

	_, err := c.Send(context.Background(), "hello")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", se.Code)
	assert.Equal(t, "Message is required", se.Message)
}

func TestSend_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/chat"
	srv.Close()

	cfg := widget.DefaultConfig()
	cfg.Endpoint = endpoint
	_, err := New(cfg).Send(context.Background(), "hello")
	assert.Error(t, err)
}

func TestPingHistoryReset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/ping":
			w.Write([]byte(`{"status":"ok","message":"Chatbot is online!"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/history/student_001":
			w.Write([]byte(`[{"role":"user","content":"hi"},{"role":"bot","content":"Hello!"}]`))
		case r.Method == http.MethodGet && r.URL.Path == "/history/nobody":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"User not found"}}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/reset/student_001":
			w.Write([]byte(`{"message":"Conversation for user 'student_001' has been reset."}`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	})
	ctx := context.Background()

	ping, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", ping.Status)

	msgs, err := c.History(ctx, "student_001")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "bot", msgs[1].Role)
	assert.Equal(t, "Hello!", msgs[1].Content)

	_, err = c.History(ctx, "nobody")
	assert.True(t, errors.Is(err, ErrUnknownUser))

	msg, err := c.Reset(ctx, "student_001")
	require.NoError(t, err)
	assert.Contains(t, msg, "has been reset")
}

func TestResolve(t *testing.T) {
	tests := []struct {
		endpoint string
		parts    []string
		want     string
	}{
		{"http://127.0.0.1:8000/chat", []string{"ping"}, "http://127.0.0.1:8000/ping"},
		{"http://host/api/v1/chat", []string{"history", "student_001"}, "http://host/api/v1/history/student_001"},
		{"https://host/chat?x=1", []string{"reset", "a b"}, "https://host/reset/a%20b"},
	}
	for _, tc := range tests {
		t.Run(tc.endpoint, func(t *testing.T) {
			c := New(widget.Config{Endpoint: tc.endpoint, UserID: "u"})
			got, err := c.resolve(tc.parts...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
