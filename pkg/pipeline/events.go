package pipeline

import "sync"

// Event names emitted over a run's EventBus
const (
	EventPipelineStart    = "pipeline:start"
	EventStageStart       = "stage:start"
	EventStageComplete    = "stage:complete"
	EventStageError       = "stage:error"
	EventPipelineError    = "pipeline:error"
	EventPipelineComplete = "pipeline:complete"
	EventFileBatch        = "file:batch"
)

// Payload carries event data. Payloads hold scalar snapshots (names,
// counts, durations), never live pipeline state.
type Payload map[string]interface{}

// Listener receives a private copy of the payload
type Listener func(Payload)

type subscription struct {
	id   int
	fn   Listener
	once bool
}

// EventBus is a small in-process pub/sub used for pipeline observability.
// Listeners run synchronously on the emitting goroutine, in subscription
// order.
type EventBus struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string][]subscription
}

func NewEventBus() *EventBus {
	return &EventBus{listeners: make(map[string][]subscription)}
}

// On subscribes fn to event and returns a subscription id for Off
func (b *EventBus) On(event string, fn Listener) int {
	return b.subscribe(event, fn, false)
}

// Once subscribes fn for a single delivery
func (b *EventBus) Once(event string, fn Listener) int {
	return b.subscribe(event, fn, true)
}

func (b *EventBus) subscribe(event string, fn Listener, once bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.listeners[event] = append(b.listeners[event], subscription{id: b.nextID, fn: fn, once: once})
	return b.nextID
}

// Off removes the subscription with the given id. Unknown ids are ignored.
func (b *EventBus) Off(event string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.listeners[event]
	for i, s := range subs {
		if s.id == id {
			b.listeners[event] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit delivers a copy of payload to every subscriber of event. Each
// listener gets its own copy, so a listener mutating its payload cannot
// affect what another listener or a later inspection observes.
func (b *EventBus) Emit(event string, payload Payload) {
	b.mu.Lock()
	subs := make([]subscription, len(b.listeners[event]))
	copy(subs, b.listeners[event])

	kept := b.listeners[event][:0]
	for _, s := range b.listeners[event] {
		if !s.once {
			kept = append(kept, s)
		}
	}
	b.listeners[event] = kept
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(clonePayload(payload))
	}
}

func clonePayload(p Payload) Payload {
	if p == nil {
		return Payload{}
	}
	c := make(Payload, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}
