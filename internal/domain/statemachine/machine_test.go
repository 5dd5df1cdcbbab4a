package statemachine

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/recordlight/internal/domain/light"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRunner records the actions it is asked to run
type recordingRunner struct {
	calls []ActionContext
	fail  map[ActionID]bool
	panic map[ActionID]bool
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{fail: map[ActionID]bool{}, panic: map[ActionID]bool{}}
}

func (r *recordingRunner) Run(ctx context.Context, ac ActionContext) bool {
	r.calls = append(r.calls, ac)
	if r.panic[ac.Action] {
		panic("boom")
	}
	return !r.fail[ac.Action]
}

func (r *recordingRunner) last() ActionContext {
	if len(r.calls) == 0 {
		return ActionContext{}
	}
	return r.calls[len(r.calls)-1]
}

func newTestMachine(t *testing.T) (*Machine, *recordingRunner) {
	t.Helper()
	runner := newRecordingRunner()
	return NewMachine(MustDefaultTable(), runner), runner
}

func feed(t *testing.T, m *Machine, inputs ...Input) Result {
	t.Helper()
	var res Result
	for _, in := range inputs {
		res = m.ProcessInput(context.Background(), in, Payload{})
	}
	return res
}

func TestMachine_StartsInInit(t *testing.T) {
	m, _ := newTestMachine(t)
	assert.Equal(t, StateInit, m.State())
}

func TestMachine_RepeatedStatusIsIdempotent(t *testing.T) {
	m, runner := newTestMachine(t)
	feed(t, m, InputRecorderRecording)
	require.Equal(t, StateRecording, m.State())
	calls := len(runner.calls)

	res := feed(t, m, InputRecorderRecording)

	assert.True(t, res.Success)
	assert.Equal(t, ActionNoop, res.Action)
	assert.Equal(t, StateRecording, m.State())
	assert.Len(t, runner.calls, calls, "noop must not reach the runner")
}

func TestMachine_ResyncFromFaulted(t *testing.T) {
	m, runner := newTestMachine(t)
	feed(t, m, InputRecorderFaulted)
	require.Equal(t, StateFaulted, m.State())

	res := feed(t, m, InputRecorderRecording)

	assert.True(t, res.Success)
	assert.Equal(t, ActionSetLight, res.Action)
	assert.Equal(t, StateRecording, m.State())
	assert.Equal(t, light.Solid(light.ColorGreen), Display(runner.last().To))
}

func TestMachine_FailedActionRevertsState(t *testing.T) {
	m, runner := newTestMachine(t)
	feed(t, m, InputRecorderPaused)
	require.Equal(t, StatePaused, m.State())
	runner.fail[ActionStop] = true

	res := feed(t, m, InputCommandStop)

	assert.False(t, res.Success)
	assert.Equal(t, ActionStop, res.Action)
	assert.Equal(t, StatePaused, res.To)
	assert.Equal(t, StatePaused, m.State())
	assert.True(t, errors.Is(res.Err, ErrActionFailed))
	assert.Equal(t, StateStoppingPaused, runner.last().To)
}

func TestMachine_PanickingRunnerIsFailure(t *testing.T) {
	m, runner := newTestMachine(t)
	feed(t, m, InputRecorderRecording)
	runner.panic[ActionPause] = true

	var res Result
	assert.NotPanics(t, func() {
		res = feed(t, m, InputButtonPressed)
	})
	assert.False(t, res.Success)
	assert.Equal(t, StateRecording, m.State())
}

func TestMachine_InvalidInput(t *testing.T) {
	m, _ := newTestMachine(t)

	res := m.ProcessInput(context.Background(), Input("Bogus"), Payload{})

	assert.False(t, res.Success)
	assert.True(t, errors.Is(res.Err, ErrInvalidInput))
	assert.Equal(t, StateInit, m.State())
}

func TestMachine_EndToEndQueuedStart(t *testing.T) {
	m, runner := newTestMachine(t)

	res := feed(t, m, InputRecorderPreviewingQueued)
	assert.Equal(t, StatePreviewingQueued, m.State())
	assert.Equal(t, light.ColorOff, Display(res.To).Color)

	res = feed(t, m, InputButtonPressed)
	assert.True(t, res.Success)
	assert.Equal(t, ActionStartNext, runner.last().Action)
	assert.Equal(t, StateRecordingWait, m.State())
	assert.Equal(t, light.ColorGreen, Display(m.State()).Color)

	// The recorder still reports previewing until the start lands.
	feed(t, m, InputRecorderPreviewingQueued)
	assert.Equal(t, StateRecordingWait, m.State())

	res = feed(t, m, InputRecorderRecording)
	assert.True(t, res.Success)
	assert.Equal(t, StateRecording, m.State())
	assert.Equal(t, light.ColorGreen, Display(m.State()).Color)
}

func TestMachine_ButtonFlow(t *testing.T) {
	tests := []struct {
		name   string
		setup  []Input
		input  Input
		action ActionID
		want   State
	}{
		{"press while previewing starts new", []Input{InputRecorderPreviewing}, InputButtonPressed, ActionStartNew, StateRecordingWait},
		{"press while recording pauses", []Input{InputRecorderRecording}, InputButtonPressed, ActionPause, StatePausedWait},
		{"hold while recording stops", []Input{InputRecorderRecording}, InputButtonHeld, ActionStop, StateStoppingRecording},
		{"press while paused resumes", []Input{InputRecorderPaused}, InputButtonPressed, ActionResume, StateRecordingWait},
		{"hold while paused stops", []Input{InputRecorderPaused}, InputButtonHeld, ActionStop, StateStoppingPaused},
		{"up while recording is noop", []Input{InputRecorderRecording}, InputButtonUp, ActionNoop, StateRecording},
		{"down while faulted flashes", []Input{InputRecorderFaulted}, InputButtonDown, ActionRejectInput, StateFaulted},
		{"press while stopped is noop", []Input{InputRecorderStopped}, InputButtonPressed, ActionNoop, StateStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMachine(t)
			feed(t, m, tt.setup...)

			res := feed(t, m, tt.input)

			assert.True(t, res.Success)
			assert.Equal(t, tt.action, res.Action)
			assert.Equal(t, tt.want, m.State())
		})
	}
}

func TestMachine_CommandNotPermittedFails(t *testing.T) {
	m, _ := newTestMachine(t)
	feed(t, m, InputRecorderPreviewing)

	res := feed(t, m, InputCommandPause)

	assert.False(t, res.Success)
	assert.Equal(t, ActionNotPermitted, res.Action)
	assert.Equal(t, StatePreviewing, m.State())
}

func TestMachine_NotPermittedIgnoresRunner(t *testing.T) {
	alwaysOK := ActionRunnerFunc(func(context.Context, ActionContext) bool { return true })

	tests := []struct {
		from  State
		input Input
	}{
		{StateInit, InputCommandStart},
		{StateInit, InputCommandStop},
		{StatePreviewing, InputCommandPause},
		{StatePreviewing, InputCommandExtend},
		{StateRunningElsewhere, InputCommandStop},
		{StateRunningElsewhere, InputCommandStart},
		{StateStopped, InputCommandResume},
		{StateFaulted, InputCommandPause},
		{StateDisconnected, InputCommandStart},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.input), func(t *testing.T) {
			m := NewMachine(MustDefaultTable(), alwaysOK)
			m.state = tt.from

			res := m.ProcessInput(context.Background(), tt.input, Payload{})

			assert.Equal(t, ActionNotPermitted, res.Action)
			assert.False(t, res.Success)
			assert.ErrorIs(t, res.Err, ErrActionFailed)
			assert.Equal(t, tt.from, m.State())
		})
	}
}

func TestMachine_EveryNotPermittedRowFails(t *testing.T) {
	table := MustDefaultTable()
	called := 0
	alwaysOK := ActionRunnerFunc(func(context.Context, ActionContext) bool {
		called++
		return true
	})

	rows := 0
	for _, row := range table.Rows() {
		if row.Action != ActionNotPermitted {
			continue
		}
		rows++
		m := NewMachine(table, alwaysOK)
		m.state = row.From

		res := m.ProcessInput(context.Background(), row.Input, Payload{})

		assert.False(t, res.Success, "%s/%s", row.From, row.Input)
		assert.Equal(t, row.From, m.State(), "%s/%s", row.From, row.Input)
	}
	require.NotZero(t, rows)
	assert.Zero(t, called)
}

func TestMachine_ExtendKeepsState(t *testing.T) {
	m, runner := newTestMachine(t)
	feed(t, m, InputRecorderRecording)

	res := feed(t, m, InputCommandExtend)

	assert.True(t, res.Success)
	assert.False(t, res.Changed())
	assert.Equal(t, ActionExtend, runner.last().Action)
}

func TestState_IsValid(t *testing.T) {
	assert.True(t, StateRecording.IsValid())
	assert.False(t, State("").IsValid())
	assert.False(t, State("RECORDING").IsValid())
}

func TestInput_Classification(t *testing.T) {
	assert.True(t, InputRecorderFaulted.IsRecorderStatus())
	assert.True(t, InputButtonHeld.IsButton())
	assert.True(t, InputCommandExtend.IsCommand())
	assert.False(t, InputNone.IsRecorderStatus())
	assert.False(t, InputNone.IsCommand())
	assert.Len(t, AllInputs(), 1+len(RecorderInputs())+len(ButtonInputs())+len(CommandInputs()))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want Input
		ok   bool
	}{
		{"START", InputCommandStart, true},
		{"stop", InputCommandStop, true},
		{" Pause ", InputCommandPause, true},
		{"resume", InputCommandResume, true},
		{"Extend", InputCommandExtend, true},
		{"STATUS", "", false},
		{"launch", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseCommand(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActionID_String(t *testing.T) {
	assert.Equal(t, "StartNext", ActionStartNext.String())
	assert.Equal(t, "Unknown", ActionID(99).String())
}
