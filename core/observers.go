package pipeline

import (
	"sync"

	"github.com/voxflow/voxflow-core/core/transport"
)

// LifecycleEvent identifies a session lifecycle notification.
type LifecycleEvent string

const (
	EventParticipantConnected    LifecycleEvent = "participant-connected"
	EventParticipantDisconnected LifecycleEvent = "participant-disconnected"
	EventPipelineConnected       LifecycleEvent = "pipeline-connected"
	EventPipelineDisconnected    LifecycleEvent = "pipeline-disconnected"
)

// LifecycleHandler observes a lifecycle event. The participant is the zero
// value for pipeline-scoped events.
type LifecycleHandler func(event LifecycleEvent, participant transport.Participant)

// observerTable maps each lifecycle event to its registered handlers.
// Handlers for an event run synchronously in registration order.
type observerTable struct {
	mu       sync.Mutex
	handlers map[LifecycleEvent][]LifecycleHandler
}

func newObserverTable() *observerTable {
	return &observerTable{handlers: map[LifecycleEvent][]LifecycleHandler{}}
}

func (o *observerTable) register(event LifecycleEvent, handler LifecycleHandler) {
	if handler == nil {
		return
	}

	o.mu.Lock()
	o.handlers[event] = append(o.handlers[event], handler)
	o.mu.Unlock()
}

func (o *observerTable) notify(event LifecycleEvent, participant transport.Participant) {
	o.mu.Lock()
	handlers := append([]LifecycleHandler{}, o.handlers[event]...)
	o.mu.Unlock()

	for _, handler := range handlers {
		handler(event, participant)
	}
}
