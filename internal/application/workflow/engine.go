package workflow

import (
	"context"
	"time"

	"github.com/garyjia/recordlight/internal/domain/event"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
)

// Observer is notified after every processed event, on the dispatch goroutine.
// Observers must return quickly.
type Observer func(evt *event.Event, res statemachine.Result)

// Snapshot is the last known machine state, safe to read from any goroutine
type Snapshot struct {
	State      statemachine.State   `json:"state"`
	LastInput  statemachine.Input   `json:"last_input"`
	LastResult *statemachine.Result `json:"-"`
	UpdatedAt  time.Time            `json:"updated_at"`
	Processed  uint64               `json:"processed"`
}

// Engine drives the state machine from the dispatch queue
type Engine interface {
	// HandleEvent processes one queued event. It is the dispatcher's Handler.
	HandleEvent(ctx context.Context, evt *event.Event) error

	// DropEvent fails an event discarded at shutdown
	DropEvent(evt *event.Event)

	// Subscribe registers a named observer, replacing any with the same name
	Subscribe(name string, obs Observer)

	// Unsubscribe removes a named observer
	Unsubscribe(name string)

	// Snapshot returns the current state snapshot
	Snapshot() Snapshot
}
