package checkout

import (
	"context"

	"github.com/utafrali/stylinx/internal/domain"
)

// EventType names a notification emitted by the engine.
type EventType string

const (
	EventItemAdded      EventType = "item_added"
	EventItemRemoved    EventType = "item_removed"
	EventStepChanged    EventType = "step_changed"
	EventOrderCompleted EventType = "order_completed"
	EventOrderFailed    EventType = "order_failed"
)

// Event is a fire-and-forget notification. Only the fields relevant to Type
// are set.
type Event struct {
	Type      EventType
	SessionID string
	Line      *domain.CartLine
	Title     string
	Step      domain.Step
	Order     *domain.Order
	Reason    string
}

// Listener receives engine events. Notify is called after the engine lock is
// released, in the order the events were produced, and must not block for
// long. A listener may call back into the engine.
type Listener interface {
	Notify(ctx context.Context, evt Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, evt Event)

// Notify calls f(ctx, evt).
func (f ListenerFunc) Notify(ctx context.Context, evt Event) { f(ctx, evt) }

// Listeners fans an event out to every listener in order.
type Listeners []Listener

// Notify delivers evt to each listener.
func (ls Listeners) Notify(ctx context.Context, evt Event) {
	for _, l := range ls {
		if l != nil {
			l.Notify(ctx, evt)
		}
	}
}

type noopListener struct{}

func (noopListener) Notify(context.Context, Event) {}
