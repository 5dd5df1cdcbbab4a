package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/recordlight/internal/application/dispatcher"
	"github.com/garyjia/recordlight/internal/domain/event"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockRunner records actions and fails the ones listed in fail
type mockRunner struct {
	mu      sync.Mutex
	actions []statemachine.ActionID
	fail    map[statemachine.ActionID]bool
}

func (r *mockRunner) Run(ctx context.Context, ac statemachine.ActionContext) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, ac.Action)
	return !r.fail[ac.Action]
}

func (r *mockRunner) Actions() []statemachine.ActionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]statemachine.ActionID(nil), r.actions...)
}

func newTestEngine(t *testing.T, runner *mockRunner) Engine {
	t.Helper()
	e, err := BuildEngine(statemachine.MustDefaultTable(), runner, nil)
	require.NoError(t, err)
	return e
}

func recorderEvent(in statemachine.Input) *event.Event {
	return event.NewEvent(in, event.SourceRecorder, statemachine.Payload{})
}

func TestEngine_InitialSnapshot(t *testing.T) {
	e := newTestEngine(t, &mockRunner{})

	snap := e.Snapshot()
	assert.Equal(t, statemachine.StateInit, snap.State)
	assert.Equal(t, statemachine.InputNone, snap.LastInput)
	assert.Nil(t, snap.LastResult)
	assert.Zero(t, snap.Processed)
}

func TestEngine_HandleEventUpdatesSnapshot(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := NewEngine(statemachine.NewMachine(statemachine.MustDefaultTable(), &mockRunner{}), WithClock(func() time.Time { return fixed }))

	require.NoError(t, e.HandleEvent(context.Background(), recorderEvent(statemachine.InputRecorderRecording)))

	snap := e.Snapshot()
	assert.Equal(t, statemachine.StateRecording, snap.State)
	assert.Equal(t, statemachine.InputRecorderRecording, snap.LastInput)
	assert.Equal(t, fixed, snap.UpdatedAt)
	assert.Equal(t, uint64(1), snap.Processed)
	require.NotNil(t, snap.LastResult)
	assert.True(t, snap.LastResult.Success)
}

func TestEngine_FailedActionIsNotLoopError(t *testing.T) {
	runner := &mockRunner{fail: map[statemachine.ActionID]bool{statemachine.ActionPause: true}}
	e := newTestEngine(t, runner)
	ctx := context.Background()

	require.NoError(t, e.HandleEvent(ctx, recorderEvent(statemachine.InputRecorderRecording)))

	cmd := event.NewCommandEvent(statemachine.InputCommandPause, event.SourceConsoleTCP, "PAUSE")
	require.NoError(t, e.HandleEvent(ctx, cmd))

	res, err := cmd.Await(ctx)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, statemachine.ErrActionFailed)
	assert.Equal(t, statemachine.StateRecording, e.Snapshot().State)
}

func TestEngine_InvalidInputIsLoopError(t *testing.T) {
	e := newTestEngine(t, &mockRunner{})

	err := e.HandleEvent(context.Background(), recorderEvent(statemachine.Input("Bogus")))
	assert.ErrorIs(t, err, statemachine.ErrInvalidInput)

	assert.Error(t, e.HandleEvent(context.Background(), nil))
}

func TestEngine_ObserversSeeEveryResult(t *testing.T) {
	e := newTestEngine(t, &mockRunner{})

	var got []statemachine.Result
	e.Subscribe("collect", func(evt *event.Event, res statemachine.Result) {
		got = append(got, res)
	})
	e.Subscribe("boom", func(evt *event.Event, res statemachine.Result) {
		panic("observer failed")
	})

	ctx := context.Background()
	require.NoError(t, e.HandleEvent(ctx, recorderEvent(statemachine.InputRecorderPreviewing)))
	require.NoError(t, e.HandleEvent(ctx, recorderEvent(statemachine.InputRecorderRecording)))

	require.Len(t, got, 2)
	assert.Equal(t, statemachine.StatePreviewing, got[0].To)
	assert.Equal(t, statemachine.StateRecording, got[1].To)

	e.Unsubscribe("collect")
	require.NoError(t, e.HandleEvent(ctx, recorderEvent(statemachine.InputRecorderPaused)))
	assert.Len(t, got, 2)
}

func TestEngine_SubscribeReplacesByName(t *testing.T) {
	e := newTestEngine(t, &mockRunner{})

	first, second := 0, 0
	e.Subscribe("obs", func(*event.Event, statemachine.Result) { first++ })
	e.Subscribe("obs", func(*event.Event, statemachine.Result) { second++ })

	require.NoError(t, e.HandleEvent(context.Background(), recorderEvent(statemachine.InputRecorderStopped)))
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestEngine_DropEventRepliesLoopClosed(t *testing.T) {
	e := newTestEngine(t, &mockRunner{})
	cmd := event.NewCommandEvent(statemachine.InputCommandStart, event.SourceHTTP, "")

	e.DropEvent(cmd)
	e.DropEvent(nil)

	res, err := cmd.Await(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, dispatcher.ErrLoopClosed)
	assert.False(t, res.Success)
	assert.Equal(t, statemachine.StateInit, res.From)
}

func TestEngine_WithDispatcherEndToEnd(t *testing.T) {
	runner := &mockRunner{}
	e := newTestEngine(t, runner)
	d := dispatcher.NewDispatcher(e.HandleEvent, dispatcher.WithDropFunc(e.DropEvent))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.NoError(t, d.Submit(recorderEvent(statemachine.InputRecorderPreviewing)))
	require.NoError(t, d.Submit(recorderEvent(statemachine.InputRecorderPreviewingQueued)))

	press := event.NewEvent(statemachine.InputButtonPressed, event.SourceButton, statemachine.Payload{HoldDuration: 200 * time.Millisecond})
	require.NoError(t, d.Submit(press))

	cmd := event.NewCommandEvent(statemachine.InputCommandExtend, event.SourceConsoleSerial, "EXTEND")
	require.NoError(t, d.Submit(recorderEvent(statemachine.InputRecorderRecording)))
	require.NoError(t, d.Submit(cmd))

	res, err := cmd.Await(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, statemachine.StateRecording, res.To)

	assert.Equal(t, []statemachine.ActionID{
		statemachine.ActionSetLight,
		statemachine.ActionSetLight,
		statemachine.ActionStartNext,
		statemachine.ActionSetLight,
		statemachine.ActionExtend,
	}, runner.Actions())

	cancel()
	require.NoError(t, <-done)
}

func TestBuildEngine_Validation(t *testing.T) {
	_, err := BuildEngine(nil, &mockRunner{}, nil)
	assert.Error(t, err)

	_, err = BuildEngine(statemachine.MustDefaultTable(), nil, nil)
	assert.Error(t, err)
}
