// Package events fans solver progress out to subscribers of a run.
package events

import (
	"encoding/json"
	"sync"
)

// Message is one progress notification. Data holds the JSON encoded event.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Broker interface {
	Subscribe(runID string) chan Message
	Unsubscribe(runID string, ch chan Message)
	// Publish never blocks. A subscriber whose buffer is full loses its
	// oldest pending message, so the latest status always gets through.
	Publish(runID string, msg Message)
	Close() error
}

// Memory is an in-process Broker.
type Memory struct {
	mu   sync.Mutex
	subs map[string]map[chan Message]struct{} // runID -> set of channels
}

func NewMemory() *Memory {
	return &Memory{subs: map[string]map[chan Message]struct{}{}}
}

func (b *Memory) Subscribe(runID string) chan Message {
	ch := make(chan Message, 16)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = map[chan Message]struct{}{}
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Memory) Unsubscribe(runID string, ch chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[runID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, runID)
	}
	close(ch)
}

func (b *Memory) Publish(runID string, msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[runID] {
		offer(ch, msg)
	}
}

// offer delivers msg, evicting the oldest buffered message if ch is full.
func offer(ch chan Message, msg Message) {
	select {
	case ch <- msg:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- msg:
	default:
	}
}

// Subscribers reports the number of open subscriptions for runID.
func (b *Memory) Subscribers(runID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[runID])
}

func (b *Memory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for runID, m := range b.subs {
		for ch := range m {
			close(ch)
		}
		delete(b.subs, runID)
	}
	return nil
}
