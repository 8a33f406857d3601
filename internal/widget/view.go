package widget

import (
	"context"
	"sync"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Entry is one rendered message in the transcript.
type Entry struct {
	Role Role
	Text string
}

// View is the surface a controller renders into. Deliveries complete on
// their own goroutines, so implementations must be safe for concurrent use.
type View interface {
	AppendEntry(Entry)
	ClearInput()
	ScrollToBottom()
	// ShowDeliveryFailure marks the user entry whose reply could not be delivered.
	ShowDeliveryFailure(Entry, error)
}

// Sender delivers one message and returns the reply text.
type Sender interface {
	Send(ctx context.Context, message string) (string, error)
}

type SenderFunc func(ctx context.Context, message string) (string, error)

func (f SenderFunc) Send(ctx context.Context, message string) (string, error) {
	return f(ctx, message)
}

// Item is a transcript line: either an entry, or a failure notice for the
// user entry held in Entry when Err is set.
type Item struct {
	Entry
	Err error
}

func (i Item) Failed() bool { return i.Err != nil }

// Transcript is an in-memory View. It keeps every item in append order and
// counts input clears and scroll requests.
type Transcript struct {
	mu       sync.Mutex
	items    []Item
	clears   int
	scrolls  int
	onChange func()
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

// OnChange registers fn to be called after every mutation, outside the lock.
func (t *Transcript) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Transcript) AppendEntry(e Entry) {
	t.mutate(func() { t.items = append(t.items, Item{Entry: e}) })
}

func (t *Transcript) ClearInput() {
	t.mutate(func() { t.clears++ })
}

func (t *Transcript) ScrollToBottom() {
	t.mutate(func() { t.scrolls++ })
}

func (t *Transcript) ShowDeliveryFailure(e Entry, err error) {
	t.mutate(func() { t.items = append(t.items, Item{Entry: e, Err: err}) })
}

func (t *Transcript) mutate(fn func()) {
	t.mu.Lock()
	fn()
	notify := t.onChange
	t.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// Items returns a copy of every item, failures included.
func (t *Transcript) Items() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Item, len(t.items))
	copy(out, t.items)
	return out
}

// Entries returns the rendered messages without failure notices.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Entry
	for _, it := range t.items {
		if !it.Failed() {
			out = append(out, it.Entry)
		}
	}
	return out
}

func (t *Transcript) Failures() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Item
	for _, it := range t.items {
		if it.Failed() {
			out = append(out, it)
		}
	}
	return out
}

func (t *Transcript) InputClears() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clears
}

func (t *Transcript) Scrolls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scrolls
}
