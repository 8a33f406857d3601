// Package chatclient talks to the edubot chat endpoint over HTTP.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"edubot/internal/models"
	"edubot/internal/widget"
)

// ErrUnknownUser is returned by History when the server has no conversation
// for the user.
var ErrUnknownUser = errors.New("user not found")

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("chat endpoint returned %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("chat endpoint returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

type Client struct {
	endpoint   string
	userID     string
	httpClient *http.Client
}

var _ widget.Sender = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(cfg widget.Config, opts ...Option) *Client {
	c := &Client{
		endpoint:   cfg.Endpoint,
		userID:     cfg.UserID,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) UserID() string {
	return c.userID
}

// Send posts one message and returns the response field of the reply.
// A reply without a response field yields "".
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(models.ChatRequest{Message: message, UserID: c.userID})
	if err != nil {
		return "", errors.Wrap(err, "encode chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")

	var resp models.ChatResponse
	if err := c.do(req, &resp); err != nil {
		return "", errors.Wrap(err, "send chat message")
	}
	return resp.Response, nil
}

func (c *Client) Ping(ctx context.Context) (*models.PingResponse, error) {
	u, err := c.resolve("ping")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build ping request")
	}
	var resp models.PingResponse
	if err := c.do(req, &resp); err != nil {
		return nil, errors.Wrap(err, "ping")
	}
	return &resp, nil
}

func (c *Client) History(ctx context.Context, userID string) ([]models.ChatMessage, error) {
	u, err := c.resolve("history", userID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build history request")
	}
	var msgs []models.ChatMessage
	if err := c.do(req, &msgs); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, errors.Wrapf(ErrUnknownUser, "history for %q", userID)
		}
		return nil, errors.Wrap(err, "fetch history")
	}
	return msgs, nil
}

func (c *Client) Reset(ctx context.Context, userID string) (string, error) {
	u, err := c.resolve("reset", userID)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return "", errors.Wrap(err, "build reset request")
	}
	var resp models.ResetResponse
	if err := c.do(req, &resp); err != nil {
		return "", errors.Wrap(err, "reset conversation")
	}
	return resp.Message, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var envelope models.ErrorResponse
		if json.Unmarshal(data, &envelope) == nil {
			se.Code = envelope.Error.Code
			se.Message = envelope.Error.Message
		}
		return se
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "decode response body")
	}
	return nil
}

// resolve builds a sibling URL of the chat endpoint, e.g. /chat -> /history/{id}.
func (c *Client) resolve(parts ...string) (string, error) {
	base, err := url.Parse(c.endpoint)
	if err != nil {
		return "", errors.Wrapf(err, "invalid endpoint %q", c.endpoint)
	}
	dir := base.Path
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		dir = dir[:i]
	}
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	rel := dir + "/" + strings.Join(escaped, "/")
	ref, err := url.Parse(rel)
	if err != nil {
		return "", errors.Wrapf(err, "invalid path %q", rel)
	}
	u := base.ResolveReference(ref)
	u.RawQuery = ""
	return u.String(), nil
}
