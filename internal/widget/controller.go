// Package widget holds the chat widget controller: it turns a submitted
// input line into a user entry, one request to the endpoint, and a bot entry.
package widget

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by deliveries started after, or interrupted by, Close.
var ErrClosed = errors.New("widget controller closed")

type Controller struct {
	cfg    Config
	view   View
	sender Sender
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Controller)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func NewController(cfg Config, view View, sender Sender, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid widget config")
	}
	if view == nil {
		return nil, errors.New("view is required")
	}
	if sender == nil {
		return nil, errors.New("sender is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:    cfg,
		view:   view,
		sender: sender,
		logger: log.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "widget").Str("user_id", cfg.UserID).Logger()
	return c, nil
}

func (c *Controller) Config() Config {
	return c.cfg
}

// Submit handles a submit trigger. Whitespace-only input is ignored and
// reported with ok == false. Otherwise the user entry is appended and the
// input cleared before Submit returns; the returned Delivery performs the
// request.
func (c *Controller) Submit(input string) (d *Delivery, ok bool) {
	text := strings.TrimSpace(input)
	if text == "" {
		return nil, false
	}

	entry := Entry{Role: RoleUser, Text: text}
	c.view.AppendEntry(entry)
	c.view.ClearInput()
	c.view.ScrollToBottom()

	return &Delivery{c: c, entry: entry}, true
}

// Handle is Submit followed by Deliver. Ignored input returns nil.
func (c *Controller) Handle(ctx context.Context, input string) error {
	d, ok := c.Submit(input)
	if !ok {
		return nil
	}
	return d.Deliver(ctx)
}

// Close cancels in-flight deliveries and waits for them to finish.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

// Delivery is the pending half of one submission.
type Delivery struct {
	c     *Controller
	entry Entry
	once  sync.Once
}

func (d *Delivery) Entry() Entry {
	return d.entry
}

// Deliver sends the message once. On success the reply is appended as a bot
// entry; on failure the view is told and the error returned. Calling Deliver
// again is a no-op.
func (d *Delivery) Deliver(ctx context.Context) error {
	var err error
	ran := false
	d.once.Do(func() {
		ran = true
		err = d.c.deliver(ctx, d.entry)
	})
	if !ran {
		return nil
	}
	return err
}

func (c *Controller) deliver(ctx context.Context, entry Entry) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.view.ShowDeliveryFailure(entry, ErrClosed)
		return ErrClosed
	}
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	if c.cfg.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancelTimeout()
	}

	start := time.Now()
	reply, err := c.sender.Send(ctx, entry.Text)
	if err != nil {
		if c.ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ErrClosed, err)
		}
		c.logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("delivery failed")
		c.view.ShowDeliveryFailure(entry, err)
		return err
	}

	c.logger.Debug().Dur("elapsed", time.Since(start)).Int("reply_len", len(reply)).Msg("reply received")
	c.view.AppendEntry(Entry{Role: RoleBot, Text: reply})
	c.view.ScrollToBottom()
	return nil
}
