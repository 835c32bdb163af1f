// Package events carries scrape notifications from the worker to whoever is
// supervising it: a terminal, the job API, a log or a Redis stream.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/amazon-review-scraper/internal/models"
)

// Type is the notification kind
type Type string

const (
	TypeStatus    Type = "status"
	TypeError     Type = "error"
	TypeProgress  Type = "progress"
	TypeResults   Type = "results"
	TypeFileSaved Type = "fileSaved"
)

// Event is one notification. Products is only set for results events and
// File only for fileSaved events.
type Event struct {
	ID       string               `json:"id"`
	Type     Type                 `json:"type"`
	Time     time.Time            `json:"time"`
	Text     string               `json:"text,omitempty"`
	Products []models.ProductInfo `json:"products,omitempty"`
	File     string               `json:"file,omitempty"`
}

func newEvent(t Type) Event {
	return Event{ID: uuid.New().String(), Type: t, Time: time.Now().UTC()}
}

// Status creates a status event
func Status(text string) Event {
	e := newEvent(TypeStatus)
	e.Text = text
	return e
}

// Error creates an error event
func Error(text string) Event {
	e := newEvent(TypeError)
	e.Text = text
	return e
}

// Progress creates a progress event
func Progress(text string) Event {
	e := newEvent(TypeProgress)
	e.Text = text
	return e
}

// Results creates a results event carrying the products of a search
func Results(products []models.ProductInfo) Event {
	e := newEvent(TypeResults)
	e.Products = products
	return e
}

// FileSaved creates a fileSaved event for the written file
func FileSaved(filename string) Event {
	e := newEvent(TypeFileSaved)
	e.File = filename
	return e
}

// Notifier receives events. Implementations must not block the scrape.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// Discard drops every event
var Discard Notifier = NotifierFunc(func(Event) {})

// Multi fans every event out to all notifiers in order
type Multi []Notifier

func (m Multi) Notify(e Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(e)
		}
	}
}

// Queue is a bounded single-writer, single-reader channel of events. When the
// reader falls behind, new events are dropped and counted instead of
// blocking the writer.
type Queue struct {
	ch      chan Event
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewQueue creates a queue holding up to size pending events
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{ch: make(chan Event, size)}
}

func (q *Queue) Notify(e Event) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.dropped.Add(1)
		return
	}
	select {
	case q.ch <- e:
	default:
		q.dropped.Add(1)
	}
}

// Events is the read side. It is closed by Close.
func (q *Queue) Events() <-chan Event {
	return q.ch
}

// Drain returns every event currently pending without waiting.
func (q *Queue) Drain() []Event {
	var out []Event
	for {
		select {
		case e, ok := <-q.ch:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

// Dropped returns the number of events lost to a full or closed queue
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Close stops accepting events; pending events stay readable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Buffer keeps every event in arrival order so pollers can ask for what they
// have not seen yet.
type Buffer struct {
	mu     sync.RWMutex
	events []Event
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Notify(e Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

// Since returns the events after the first n. A negative n is treated as 0.
func (b *Buffer) Since(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(b.events) {
		return []Event{}
	}
	out := make([]Event, len(b.events)-n)
	copy(out, b.events[n:])
	return out
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

// Texts returns the text of every event of type t.
func (b *Buffer) Texts(t Type) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []string
	for _, e := range b.events {
		if e.Type == t {
			out = append(out, e.Text)
		}
	}
	return out
}

// LogNotifier writes events to a structured logger
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notifications")}
}

func (l *LogNotifier) Notify(e Event) {
	switch e.Type {
	case TypeError:
		l.logger.Error(e.Text, "event_id", e.ID)
	case TypeResults:
		l.logger.Info("search results", "event_id", e.ID, "count", len(e.Products))
	case TypeFileSaved:
		l.logger.Info("file saved", "event_id", e.ID, "file", e.File)
	default:
		l.logger.Info(e.Text, "event_id", e.ID, "type", string(e.Type))
	}
}
