package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/recordlight/internal/domain/event"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, fmt.Sprint(append([]interface{}{msg}, keysAndValues...)...))
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func newEvt(in statemachine.Input) *event.Event {
	return event.NewEvent(in, event.SourceRecorder, statemachine.Payload{})
}

func startLoop(t *testing.T, d Dispatcher) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()
	return cancel, errCh
}

func TestDispatcher_ProcessesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var mu sync.Mutex
	var got []statemachine.Input
	done := make(chan struct{})

	inputs := []statemachine.Input{
		statemachine.InputRecorderPreviewing,
		statemachine.InputButtonPressed,
		statemachine.InputRecorderRecording,
		statemachine.InputCommandPause,
	}

	d := NewDispatcher(func(ctx context.Context, evt *event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, evt.Input)
		if len(got) == len(inputs) {
			close(done)
		}
		return nil
	})

	for _, in := range inputs {
		require.NoError(t, d.Submit(newEvt(in)))
	}
	cancel, errCh := startLoop(t, d)
	defer cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events")
	}

	require.NoError(t, d.Close())
	require.NoError(t, <-errCh)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, inputs, got)
}

func TestDispatcher_SingleConsumer(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var inFlight, maxInFlight, processed atomic.Int32
	const producers, perProducer = 4, 25

	d := NewDispatcher(func(ctx context.Context, evt *event.Event) error {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(100 * time.Microsecond)
		inFlight.Add(-1)
		processed.Add(1)
		return nil
	})
	cancel, errCh := startLoop(t, d)
	defer cancel()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, d.Submit(newEvt(statemachine.InputButtonDown)))
			}
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		return processed.Load() == producers*perProducer
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, d.Close())
	require.NoError(t, <-errCh)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestDispatcher_FinishesInFlightOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	var dropped []*event.Event
	var dropMu sync.Mutex

	d := NewDispatcher(func(ctx context.Context, evt *event.Event) error {
		if evt.Input == statemachine.InputCommandStop {
			close(started)
			<-release
			// The handler context is detached from loop cancellation.
			if ctx.Err() == nil {
				finished.Store(true)
			}
		}
		return nil
	}, WithDropFunc(func(evt *event.Event) {
		dropMu.Lock()
		defer dropMu.Unlock()
		dropped = append(dropped, evt)
	}))

	require.NoError(t, d.Submit(newEvt(statemachine.InputCommandStop)))
	require.NoError(t, d.Submit(newEvt(statemachine.InputCommandStart)))

	cancel, errCh := startLoop(t, d)
	<-started
	cancel()
	close(release)

	require.NoError(t, <-errCh)
	assert.True(t, finished.Load())

	dropMu.Lock()
	require.Len(t, dropped, 1)
	assert.Equal(t, statemachine.InputCommandStart, dropped[0].Input)
	dropMu.Unlock()

	assert.ErrorIs(t, d.Submit(newEvt(statemachine.InputButtonUp)), ErrLoopClosed)
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	logger := &mockLogger{}
	var calls atomic.Int32
	d := NewDispatcher(func(ctx context.Context, evt *event.Event) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	}, WithLogger(logger))

	cancel, errCh := startLoop(t, d)
	defer cancel()

	require.NoError(t, d.Submit(newEvt(statemachine.InputButtonDown)))
	require.NoError(t, d.Submit(newEvt(statemachine.InputButtonUp)))

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, d.Close())
	require.NoError(t, <-errCh)
	assert.GreaterOrEqual(t, logger.ErrorCount(), 1)
}

func TestDispatcher_LogsHandlerErrors(t *testing.T) {
	logger := &mockLogger{}
	done := make(chan struct{})
	d := NewDispatcher(func(ctx context.Context, evt *event.Event) error {
		defer close(done)
		return errors.New("handler failed")
	}, WithLogger(logger))

	cancel, errCh := startLoop(t, d)
	defer cancel()
	require.NoError(t, d.Submit(newEvt(statemachine.InputButtonDown)))
	<-done

	require.NoError(t, d.Close())
	require.NoError(t, <-errCh)
	assert.Equal(t, 1, logger.ErrorCount())
}

func TestDispatcher_SubmitNeverBlocks(t *testing.T) {
	d := NewDispatcher(func(ctx context.Context, evt *event.Event) error { return nil })

	// No consumer is running; submissions still return immediately.
	for i := 0; i < 10000; i++ {
		require.NoError(t, d.Submit(newEvt(statemachine.InputButtonDown)))
	}
	assert.Equal(t, 10000, d.Len())
	assert.Error(t, d.Submit(nil))
}

func TestDispatcher_CloseTwice(t *testing.T) {
	d := NewDispatcher(func(ctx context.Context, evt *event.Event) error { return nil })
	require.NoError(t, d.Close())
	assert.Error(t, d.Close())
	assert.ErrorIs(t, d.Submit(newEvt(statemachine.InputButtonDown)), ErrLoopClosed)
}

func TestDispatcher_CloseBeforeRunDropsQueued(t *testing.T) {
	var dropped []*event.Event
	d := NewDispatcher(func(ctx context.Context, evt *event.Event) error {
		t.Errorf("handler called for %s", evt.Input)
		return nil
	}, WithDropFunc(func(evt *event.Event) {
		dropped = append(dropped, evt)
	}))

	require.NoError(t, d.Submit(newEvt(statemachine.InputCommandStart)))
	require.NoError(t, d.Submit(newEvt(statemachine.InputCommandStop)))

	require.NoError(t, d.Close())

	require.Len(t, dropped, 2)
	assert.Equal(t, statemachine.InputCommandStart, dropped[0].Input)
	assert.Equal(t, statemachine.InputCommandStop, dropped[1].Input)
	assert.Zero(t, d.Len())
	assert.ErrorIs(t, d.Submit(newEvt(statemachine.InputCommandPause)), ErrLoopClosed)
}

func TestDispatcher_RunTwice(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	seen := make(chan struct{})
	var once sync.Once
	d := NewDispatcher(func(ctx context.Context, evt *event.Event) error {
		once.Do(func() { close(seen) })
		return nil
	})
	cancel, errCh := startLoop(t, d)
	defer cancel()

	require.NoError(t, d.Submit(newEvt(statemachine.InputButtonDown)))
	<-seen

	assert.ErrorIs(t, d.Run(context.Background()), ErrAlreadyRunning)

	require.NoError(t, d.Close())
	require.NoError(t, <-errCh)
}
