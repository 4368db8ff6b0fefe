package audit

import (
	"context"
	"sync"
)

// Publisher emits audit events for reconciliation-relevant operations.
// Implementations must be safe for concurrent use; a failed emit must never
// fail the operation that produced the event.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// NopPublisher discards events. Used when no audit sink is configured.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) error { return nil }

// MemoryPublisher records events in memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Emit(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of everything emitted so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// ByAction filters recorded events by action.
func (p *MemoryPublisher) ByAction(action Action) []Event {
	var out []Event
	for _, e := range p.Events() {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
