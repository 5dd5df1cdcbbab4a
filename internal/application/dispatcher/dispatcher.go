package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/recordlight/internal/domain/event"
)

var (
	// ErrLoopClosed is returned when submitting to a closed dispatcher
	ErrLoopClosed = errors.New("dispatch loop is closed")

	// ErrAlreadyRunning is returned when Run is called twice
	ErrAlreadyRunning = errors.New("dispatch loop is already running")
)

// Dispatcher is the single ordered input queue and its only consumer
type Dispatcher interface {
	// Submit appends an event to the queue. It never blocks.
	Submit(evt *event.Event) error

	// Run consumes events one at a time until ctx is done or Close is called.
	// The in-flight event always completes.
	Run(ctx context.Context) error

	// Len returns the number of queued events
	Len() int

	// Close stops accepting events and waits for Run to return
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// eventDispatcher is the concrete implementation of Dispatcher
type eventDispatcher struct {
	handler Handler
	onDrop  DropFunc
	logger  Logger

	mu       sync.Mutex
	queue    []*event.Event
	finished bool
	wake     chan struct{}

	closed  atomic.Bool
	running atomic.Bool
	stopped chan struct{}
	done    chan struct{}
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithDropFunc sets the callback for events discarded at shutdown
func WithDropFunc(fn DropFunc) Option {
	return func(d *eventDispatcher) {
		d.onDrop = fn
	}
}

// NewDispatcher creates a dispatcher that feeds every event to handler
func NewDispatcher(handler Handler, opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handler: handler,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Submit appends an event to the queue
func (d *eventDispatcher) Submit(evt *event.Event) error {
	if evt == nil {
		return fmt.Errorf("nil event")
	}
	if d.closed.Load() {
		return ErrLoopClosed
	}

	d.mu.Lock()
	if d.finished {
		d.mu.Unlock()
		return ErrLoopClosed
	}
	d.queue = append(d.queue, evt)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// Len returns the number of queued events
func (d *eventDispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Run consumes events until ctx is done or Close is called
func (d *eventDispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(d.done)
	defer d.drain()

	if d.logger != nil {
		d.logger.Info("Dispatch loop started")
	}

	// In-flight events run to completion even after ctx is cancelled.
	handlerCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.stopped:
			return nil
		default:
		}

		evt := d.pop()
		if evt == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-d.stopped:
				return nil
			case <-d.wake:
			}
			continue
		}

		if err := d.safeExecute(handlerCtx, evt); err != nil && d.logger != nil {
			d.logger.Error("Handler error",
				"input", evt.Input,
				"event_id", evt.ID,
				"source", evt.Source,
				"error", err,
			)
		}
	}
}

// Close stops accepting events and waits for Run to return
func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}

	if d.logger != nil {
		d.logger.Info("Closing dispatcher, waiting for in-flight event")
	}

	close(d.stopped)
	if d.running.Load() {
		<-d.done
	} else {
		d.drain()
	}

	if d.logger != nil {
		d.logger.Info("Dispatcher closed")
	}
	return nil
}

func (d *eventDispatcher) pop() *event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.queue) == 0 {
		return nil
	}
	evt := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	return evt
}

// drain discards whatever is still queued once the loop exits
func (d *eventDispatcher) drain() {
	d.mu.Lock()
	d.finished = true
	rest := d.queue
	d.queue = nil
	d.mu.Unlock()

	if len(rest) > 0 && d.logger != nil {
		d.logger.Info("Discarding queued events at shutdown", "count", len(rest))
	}
	for _, evt := range rest {
		if d.onDrop != nil {
			d.onDrop(evt)
		}
	}
}

// safeExecute runs the handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			if d.logger != nil {
				d.logger.Error("Handler panic recovered",
					"input", evt.Input,
					"event_id", evt.ID,
					"panic", r,
				)
			}
		}
	}()

	return d.handler(ctx, evt)
}
