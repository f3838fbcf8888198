// Package inbox provides the per-agent FIFO message queue that sits between
// the tag router and each agent's turn executor.
package inbox

import (
	"sync"

	"github.com/orgrun/org/schema"
)

// Inbox holds one ordered message queue per agent id. Messages are dequeued
// in push order; NextPromptFor atomically drains the current batch for an
// id. The zero value is ready to use.
type Inbox struct {
	mu    sync.Mutex
	queue map[string][]schema.Message
}

// New creates an empty Inbox.
func New() *Inbox {
	return &Inbox{queue: make(map[string][]schema.Message)}
}

// Push appends msg to id's queue.
func (b *Inbox) Push(id string, msg schema.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.queue == nil {
		b.queue = make(map[string][]schema.Message)
	}
	b.queue[id] = append(b.queue[id], msg)
}

// Size returns the number of messages currently queued for id.
func (b *Inbox) Size(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue[id])
}

// HasWork reports whether id has any queued messages.
func (b *Inbox) HasWork(id string) bool {
	return b.Size(id) > 0
}

// HasAnyWork reports whether any agent has queued messages.
func (b *Inbox) HasAnyWork() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, msgs := range b.queue {
		if len(msgs) > 0 {
			return true
		}
	}
	return false
}

// NextPromptFor atomically removes and returns all currently-queued messages
// for id, in push order. A nil or empty slice means nothing was queued.
func (b *Inbox) NextPromptFor(id string) []schema.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.queue[id]
	delete(b.queue, id)
	return msgs
}
