// Package events carries session-refresh signals to the sessions that
// cache per-account state.
package events

import (
	"context"
	"sync"
	"time"
)

type Type string

const (
	// SessionRefresh asks listeners to drop cached role data and re-fetch.
	SessionRefresh Type = "session.refresh"
)

type Event struct {
	Type      Type      `json:"type"`
	AccountID string    `json:"accountId"`
	At        time.Time `json:"at"`
}

// Publisher broadcasts events. Bus and RedisRelay both satisfy it.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Handler func(Event)

// Bus is an in-process fan-out. Handlers run synchronously on the
// publishing goroutine and must not block.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Publish(_ context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
	return nil
}
