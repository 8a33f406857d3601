// Package console is the line-oriented front end used when stdin or stdout
// is not a terminal.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"edubot/internal/widget"
)

// maxLineBytes caps a single input line.
const maxLineBytes = 1 << 20

const (
	userPrefix    = "you> "
	botPrefix     = "bot> "
	failurePrefix = "! "
)

// View writes each entry as one prefixed line.
type View struct {
	mu sync.Mutex
	w  io.Writer
}

var _ widget.View = (*View)(nil)

func NewView(w io.Writer) *View {
	return &View{w: w}
}

func (v *View) AppendEntry(e widget.Entry) {
	prefix := botPrefix
	if e.Role == widget.RoleUser {
		prefix = userPrefix
	}
	v.println(prefix + e.Text)
}

// ClearInput is a no-op: the line was consumed when it was read.
func (v *View) ClearInput() {}

func (v *View) ScrollToBottom() {}

func (v *View) ShowDeliveryFailure(e widget.Entry, err error) {
	v.println(fmt.Sprintf("%sdelivery failed for %q: %v", failurePrefix, e.Text, err))
}

func (v *View) println(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.w, s)
}

type Stats struct {
	Sent   int
	Failed int
}

// Run submits every line read from r. At most concurrency deliveries are in
// flight at once; with concurrency <= 1 each reply is awaited before the next
// line is read. Delivery failures are counted, not returned.
func Run(ctx context.Context, ctrl *widget.Controller, r io.Reader, concurrency int) (Stats, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)

	var sent, failed atomic.Int64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		d, ok := ctrl.Submit(scanner.Text())
		if !ok {
			continue
		}
		sent.Add(1)
		deliver := func() error {
			if err := d.Deliver(ctx); err != nil {
				failed.Add(1)
			}
			return nil
		}
		if concurrency == 1 {
			_ = deliver()
			continue
		}
		g.Go(deliver)
	}
	_ = g.Wait()

	stats := Stats{Sent: int(sent.Load()), Failed: int(failed.Load())}
	if err := scanner.Err(); err != nil {
		return stats, errors.Wrap(err, "read input")
	}
	return stats, ctx.Err()
}
