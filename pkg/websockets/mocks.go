package websockets

import (
	"context"
	"sync"
)

// NoOpPublisher is a publisher that does nothing.
type NoOpPublisher struct{}

// Publish does nothing.
func (p *NoOpPublisher) Publish(ctx context.Context, message Message) error {
	return nil
}

// RecordingPublisher keeps every published message in memory.
type RecordingPublisher struct {
	mu       sync.Mutex
	messages []Message
}

// Publish records message.
func (p *RecordingPublisher) Publish(ctx context.Context, message Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return nil
}

// Messages returns a copy of the recorded messages.
func (p *RecordingPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}

// OfType returns the recorded messages of type t.
func (p *RecordingPublisher) OfType(t MessageType) []Message {
	var out []Message
	for _, m := range p.Messages() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}
