package worker

import (
	"context"
	"fmt"
	"sync"
)

// loop is the start/stop bookkeeping shared by the polling workers
type loop struct {
	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// start launches run in a goroutine with a cancellable child of ctx
func (l *loop) start(ctx context.Context, name string, run func(ctx context.Context)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.isRunning {
		return fmt.Errorf("%s is already running", name)
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.isRunning = true

	go func(done chan struct{}) {
		defer close(done)
		run(runCtx)
	}(l.done)
	return nil
}

// stop cancels the loop and waits for it to return
func (l *loop) stop() {
	l.mu.Lock()
	if !l.isRunning {
		l.mu.Unlock()
		return
	}
	l.isRunning = false
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	cancel()
	<-done
}

func (l *loop) running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isRunning
}
