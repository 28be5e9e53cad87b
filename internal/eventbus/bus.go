package eventbus

import (
	"context"
	"sync"

	"github.com/DannyMang/more-compute-sub000/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventCell carries cell collection changes.
	EventCell EventType = "cell"
	// EventExecution carries execution lifecycle updates.
	EventExecution EventType = "execution"
	// EventConn carries connection state changes.
	EventConn EventType = "conn"
	// EventSave carries save outcomes.
	EventSave EventType = "save"
)

// Event represents a UI-facing event emitted by the engine.
type Event struct {
	Type      EventType
	Cell      schema.CellEvent
	Execution schema.ExecutionEvent
	Conn      schema.ConnEvent
	Save      schema.SaveEvent
}

// Bus fanouts engine events to subscribers. Publishing never blocks; slow
// subscribers drop events.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.Debug("eventbus subscribe", "subs", count)
	}
	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
		if b.log != nil {
			b.log.Debug("eventbus unsubscribe")
		}
	}
}

// OnCellEvent publishes a cell event.
func (b *Bus) OnCellEvent(event schema.CellEvent) {
	b.publish(Event{Type: EventCell, Cell: event})
}

// OnExecutionEvent publishes an execution event.
func (b *Bus) OnExecutionEvent(event schema.ExecutionEvent) {
	b.publish(Event{Type: EventExecution, Execution: event})
}

// OnConnEvent publishes a connection event.
func (b *Bus) OnConnEvent(event schema.ConnEvent) {
	b.publish(Event{Type: EventConn, Conn: event})
}

// OnSaveEvent publishes a save outcome event.
func (b *Bus) OnSaveEvent(event schema.SaveEvent) {
	b.publish(Event{Type: EventSave, Save: event})
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := make([]chan Event, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 && b.log != nil {
		b.log.Trace("eventbus dropped", "type", event.Type, "count", dropped)
	}
}
