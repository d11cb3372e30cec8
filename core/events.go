package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type NopEventSink struct{}

func (NopEventSink) Emit(context.Context, LifecycleEvent) {}

// MemoryEventSink buffers emitted events in memory; useful for tests and
// embedded callers that drain the buffer themselves.
type MemoryEventSink struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

func NewMemoryEventSink() *MemoryEventSink {
	return &MemoryEventSink{}
}

func (s *MemoryEventSink) Emit(_ context.Context, event LifecycleEvent) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *MemoryEventSink) Drain() []LifecycleEvent {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	drained := s.events
	s.events = nil
	s.mu.Unlock()
	return drained
}

func newLifecycleEvent(eventType, tenantID, moduleKey, objectID string, now time.Time, payload map[string]any) LifecycleEvent {
	return LifecycleEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		TenantID:   tenantID,
		ModuleKey:  moduleKey,
		ObjectID:   objectID,
		OccurredAt: now,
		Payload:    payload,
	}
}

var (
	_ EventSink = NopEventSink{}
	_ EventSink = (*MemoryEventSink)(nil)
)
