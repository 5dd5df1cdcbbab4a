package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garyjia/recordlight/internal/application/dispatcher"
	"github.com/garyjia/recordlight/internal/domain/event"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
	"go.uber.org/zap"
)

type namedObserver struct {
	name string
	obs  Observer
}

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	machine *statemachine.Machine
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.RWMutex
	observers []namedObserver

	snapshot  atomic.Pointer[Snapshot]
	processed atomic.Uint64
}

// EngineOption configures the engine
type EngineOption func(*engineImpl)

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *engineImpl) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates an engine around machine. The engine must be the machine's only caller.
func NewEngine(machine *statemachine.Machine, opts ...EngineOption) Engine {
	e := &engineImpl{
		machine: machine,
		logger:  zap.NewNop(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.snapshot.Store(&Snapshot{
		State:     machine.State(),
		LastInput: statemachine.InputNone,
		UpdatedAt: e.now(),
	})
	return e
}

// HandleEvent processes one queued event
func (e *engineImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	if evt == nil {
		return fmt.Errorf("event cannot be nil")
	}

	res := e.machine.ProcessInput(ctx, evt.Input, evt.Payload)
	e.record(res)
	evt.Reply(res)
	e.logResult(evt, res)
	e.notify(evt, res)

	// Failed actions are an expected outcome, not a loop error.
	if res.Err != nil && !errors.Is(res.Err, statemachine.ErrActionFailed) {
		return res.Err
	}
	return nil
}

// DropEvent fails an event that the loop will never process
func (e *engineImpl) DropEvent(evt *event.Event) {
	if evt == nil {
		return
	}
	state := e.Snapshot().State
	evt.Reply(statemachine.Result{
		Input: evt.Input,
		From:  state,
		To:    state,
		Err:   dispatcher.ErrLoopClosed,
	})
	e.logger.Debug("Dropped queued event",
		zap.String("event_id", evt.ID),
		zap.Stringer("input", evt.Input),
		zap.Stringer("source", evt.Source))
}

// Subscribe registers a named observer
func (e *engineImpl) Subscribe(name string, obs Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, o := range e.observers {
		if o.name == name {
			e.observers[i].obs = obs
			return
		}
	}
	e.observers = append(e.observers, namedObserver{name: name, obs: obs})
}

// Unsubscribe removes a named observer
func (e *engineImpl) Unsubscribe(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, o := range e.observers {
		if o.name == name {
			e.observers = append(e.observers[:i], e.observers[i+1:]...)
			return
		}
	}
}

// Snapshot returns the current state snapshot
func (e *engineImpl) Snapshot() Snapshot {
	return *e.snapshot.Load()
}

func (e *engineImpl) record(res statemachine.Result) {
	r := res
	e.snapshot.Store(&Snapshot{
		State:      e.machine.State(),
		LastInput:  res.Input,
		LastResult: &r,
		UpdatedAt:  e.now(),
		Processed:  e.processed.Add(1),
	})
}

func (e *engineImpl) logResult(evt *event.Event, res statemachine.Result) {
	fields := []zap.Field{
		zap.String("event_id", evt.ID),
		zap.Stringer("source", evt.Source),
		zap.Stringer("input", res.Input),
		zap.Stringer("from", res.From),
		zap.Stringer("to", res.To),
	}

	switch {
	case res.Err != nil && !errors.Is(res.Err, statemachine.ErrActionFailed):
		e.logger.Error("Input rejected by state machine", append(fields, zap.Error(res.Err))...)
	case !res.Success:
		e.logger.Warn("Transition action failed", append(fields, zap.Stringer("action", res.Action))...)
	case res.Changed():
		e.logger.Info("State changed", fields...)
	default:
		e.logger.Debug("Input processed", fields...)
	}
}

// notify calls every observer, isolating panics
func (e *engineImpl) notify(evt *event.Event, res statemachine.Result) {
	e.mu.RLock()
	observers := make([]namedObserver, len(e.observers))
	copy(observers, e.observers)
	e.mu.RUnlock()

	for _, o := range observers {
		e.safeNotify(o, evt, res)
	}
}

func (e *engineImpl) safeNotify(o namedObserver, evt *event.Event, res statemachine.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Observer panic recovered",
				zap.String("observer", o.name),
				zap.Any("panic", r))
		}
	}()
	o.obs(evt, res)
}
