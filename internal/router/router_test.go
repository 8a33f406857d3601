package router

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edubot/internal/chatclient"
	"edubot/internal/handlers"
	"edubot/internal/middleware"
	"edubot/internal/repository"
	"edubot/internal/services"
	"edubot/internal/widget"
)

func newTestServer(t *testing.T, rateLimit int) *httptest.Server {
	t.Helper()
	kb, err := services.DefaultKnowledgeBase()
	require.NoError(t, err)
	bot := services.NewBotService(kb, services.WithRand(rand.New(rand.NewSource(7))))

	h := New(
		handlers.NewChatHandler(bot, repository.NewMemoryConversationRepo()),
		middleware.NewRateLimiter(rateLimit, time.Minute),
		[]string{"*"},
	)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestWidgetAgainstServer(t *testing.T) {
	srv := newTestServer(t, 0)

	cfg := widget.DefaultConfig()
	cfg.Endpoint = srv.URL + "/chat"
	client := chatclient.New(cfg, chatclient.WithHTTPClient(srv.Client()))
	view := widget.NewTranscript()
	c, err := widget.NewController(cfg, view, client)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Handle(ctx, "  "))
	require.NoError(t, c.Handle(ctx, "What is photosynthesis?"))

	assert.Equal(t, []widget.Entry{
		{Role: widget.RoleUser, Text: "What is photosynthesis?"},
		{Role: widget.RoleBot, Text: "Photosynthesis is the process by which green plants use sunlight to make their own food from carbon dioxide and water."},
	}, view.Entries())

	history, err := client.History(ctx, widget.DefaultUserID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	msg, err := client.Reset(ctx, widget.DefaultUserID)
	require.NoError(t, err)
	assert.Equal(t, "Conversation for user 'student_001' has been reset.", msg)

	ping, err := client.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", ping.Status)
}

func TestRateLimitSurfacesAsDeliveryFailure(t *testing.T) {
	srv := newTestServer(t, 1)

	cfg := widget.DefaultConfig()
	cfg.Endpoint = srv.URL + "/chat"
	view := widget.NewTranscript()
	c, err := widget.NewController(cfg, view, chatclient.New(cfg, chatclient.WithHTTPClient(srv.Client())))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Handle(context.Background(), "hello"))
	err = c.Handle(context.Background(), "hello again")
	require.Error(t, err)

	var se *chatclient.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Len(t, view.Failures(), 1)
	assert.Len(t, view.Entries(), 3)
}

func TestPreflight(t *testing.T) {
	srv := newTestServer(t, 0)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/chat", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://127.0.0.1:5500")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
