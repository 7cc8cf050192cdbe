// Package events provides a non-blocking pub/sub bus for batch lifecycle
// events. Subscribers that fall behind lose events rather than stalling the
// orchestrator.
package events

import (
	"sync"
	"time"
)

// EventType identifies a batch lifecycle event.
type EventType string

const (
	// EventBatchStarted is published once per batch, after planning.
	EventBatchStarted EventType = "batch_started"
	// EventCommandStarted is published when an executor begins an attempt 1.
	EventCommandStarted EventType = "command_started"
	// EventCommandRetrying is published before each retry attempt.
	EventCommandRetrying EventType = "command_retrying"
	// EventCommandFinished is published when a command reaches a terminal state.
	EventCommandFinished EventType = "command_finished"
	// EventBatchFinished is published once per batch with the summary.
	EventBatchFinished EventType = "batch_finished"
)

// Event is a single published occurrence. Index is -1 for batch-level events.
type Event struct {
	Type      EventType
	Timestamp time.Time
	BatchID   string
	Index     int
	Data      map[string]any
}

// Subscriber receives events asynchronously.
type Subscriber func(Event)

// Bus fan-outs events over buffered per-subscriber channels. A full channel
// drops the event for that subscriber.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	bufferSize  int
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers fn for one event type and returns an unsubscribe
// function. fn runs on a dedicated goroutine; panics in fn are swallowed so
// a bad subscriber cannot take the bus down.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	go func() {
		for event := range ch {
			func() {
				defer func() { _ = recover() }()
				fn(event)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[eventType]
		for i, subCh := range subs {
			if subCh == ch {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

// Publish delivers an event to all subscribers of its type without blocking.
func (b *Bus) Publish(eventType EventType, batchID string, index int, data map[string]any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		BatchID:   batchID,
		Index:     index,
		Data:      data,
	}
	for _, ch := range b.subscribers[eventType] {
		select {
		case ch <- event:
		default:
			// subscriber buffer full, drop
		}
	}
}

// Close closes all subscriber channels and clears subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, eventType)
	}
}
