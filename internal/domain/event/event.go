package event

import (
	"context"
	"time"

	"github.com/garyjia/recordlight/internal/domain/statemachine"
	"github.com/google/uuid"
)

// Event is one input waiting in the dispatch queue
type Event struct {
	ID        string               `json:"id"`
	Input     statemachine.Input   `json:"input"`
	Source    Source               `json:"source"`
	Payload   statemachine.Payload `json:"payload"`
	Timestamp time.Time            `json:"timestamp"`

	reply chan statemachine.Result
}

// NewEvent creates an event with an auto-generated ID and timestamp.
// Nobody waits on the result of an event created this way.
func NewEvent(input statemachine.Input, source Source, payload statemachine.Payload) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Input:     input,
		Source:    source,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// NewCommandEvent creates an event whose originator waits for the result
func NewCommandEvent(input statemachine.Input, source Source, text string) *Event {
	evt := NewEvent(input, source, statemachine.Payload{Text: text})
	evt.reply = make(chan statemachine.Result, 1)
	return evt
}

// WantsReply returns true if the originator is waiting for the result
func (e *Event) WantsReply() bool {
	return e.reply != nil
}

// Reply delivers the result to the originator, if any. Only the first reply is kept.
func (e *Event) Reply(res statemachine.Result) {
	if e.reply == nil {
		return
	}
	select {
	case e.reply <- res:
	default:
	}
}

// Await blocks until the event has been processed or ctx is done
func (e *Event) Await(ctx context.Context) (statemachine.Result, error) {
	if e.reply == nil {
		return statemachine.Result{}, ErrNoReply
	}
	select {
	case res := <-e.reply:
		return res, nil
	case <-ctx.Done():
		return statemachine.Result{}, ctx.Err()
	}
}
