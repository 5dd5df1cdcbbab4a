package statemachine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable_IsTotal(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	assert.Equal(t, len(AllStates())*len(AllInputs()), table.Len())

	for _, s := range AllStates() {
		for _, in := range AllInputs() {
			row, err := table.Lookup(s, in)
			require.NoError(t, err, "(%s, %s)", s, in)
			assert.Equal(t, s, row.From)
			assert.Equal(t, in, row.Input)
			assert.True(t, row.To.IsValid(), "(%s, %s) -> %q", s, in, row.To)
			assert.True(t, row.Action.IsValid(), "(%s, %s) action %d", s, in, row.Action)
		}
	}
}

func TestDefaultTable_RecorderStatusAcceptedEverywhere(t *testing.T) {
	table := MustDefaultTable()

	holds := map[State][]Input{
		StateRecordingWait:     {InputRecorderPreviewing, InputRecorderPreviewingQueued, InputRecorderPaused},
		StatePausedWait:        {InputRecorderRecording},
		StateStoppingRecording: {InputRecorderRecording},
		StateStoppingPaused:    {InputRecorderPaused},
	}

	for _, s := range AllStates() {
		for _, in := range RecorderInputs() {
			row, err := table.Lookup(s, in)
			require.NoError(t, err)

			held := false
			for _, h := range holds[s] {
				if h == in {
					held = true
				}
			}
			if held {
				assert.Equal(t, ActionNoop, row.Action, "(%s, %s)", s, in)
				assert.Equal(t, s, row.To, "(%s, %s)", s, in)
				continue
			}

			want, ok := StateForStatus(in)
			require.True(t, ok)
			assert.Equal(t, want, row.To, "(%s, %s)", s, in)
			assert.False(t, row.Action.IsRecorderAction(), "(%s, %s)", s, in)
		}
	}
}

func TestDefaultTable_NoInputIsNoopEverywhere(t *testing.T) {
	table := MustDefaultTable()
	for _, s := range AllStates() {
		row, err := table.Lookup(s, InputNone)
		require.NoError(t, err)
		assert.Equal(t, ActionNoop, row.Action)
		assert.Equal(t, s, row.To)
	}
}

func TestDefaultTable_ButtonsRejectedWhenUnavailable(t *testing.T) {
	table := MustDefaultTable()
	for _, s := range []State{StateRunningElsewhere, StateFaulted, StateDisconnected} {
		for _, in := range []Input{InputButtonDown, InputButtonUp} {
			row, err := table.Lookup(s, in)
			require.NoError(t, err)
			assert.Equal(t, ActionRejectInput, row.Action, "(%s, %s)", s, in)
			assert.Equal(t, s, row.To)
		}
		for _, in := range CommandInputs() {
			row, _ := table.Lookup(s, in)
			assert.Equal(t, ActionNotPermitted, row.Action, "(%s, %s)", s, in)
		}
	}
}

func TestDefaultTable_ButtonsOnlyActInControllableStates(t *testing.T) {
	table := MustDefaultTable()
	active := map[State]bool{
		StatePreviewing:       true,
		StatePreviewingQueued: true,
		StateRecording:        true,
		StatePaused:           true,
	}

	for _, s := range AllStates() {
		for _, in := range ButtonInputs() {
			row, _ := table.Lookup(s, in)
			if row.Action.IsRecorderAction() {
				assert.True(t, active[s], "(%s, %s) invokes %s", s, in, row.Action)
			}
		}
	}
}

func TestBuilder_ReportsMissingPairs(t *testing.T) {
	b := NewBuilder()
	b.Configure(StateInit).Hold(InputNone)

	table, err := b.Build()

	assert.Nil(t, table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompleteTable))
	assert.Contains(t, err.Error(), "(Init, CommandStart)")
}

func TestBuilder_ReportsDuplicates(t *testing.T) {
	b := NewBuilder()
	b.Configure(StateInit).
		Hold(InputNone).
		On(InputNone, ActionSetLight, StatePreviewing)

	_, err := b.Build()

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateTransition))
}

func TestBuilder_RejectsInvalidTarget(t *testing.T) {
	b := NewBuilder()
	b.Configure(StateInit).On(InputNone, ActionNoop, State("Nowhere"))

	_, err := b.Build()

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	assert.Panics(t, func() {
		NewBuilder().Configure(State("INVALID"))
	})
}

func TestBuilder_OtherwiseSkipsBoundInputs(t *testing.T) {
	b := NewBuilder().(*tableBuilder)
	b.Configure(StateRecording).
		On(InputButtonPressed, ActionPause, StatePausedWait).
		Otherwise(ActionNoop, ButtonInputs()...)

	assert.Equal(t, ActionPause, b.rows[key{StateRecording, InputButtonPressed}].Action)
	assert.Equal(t, ActionNoop, b.rows[key{StateRecording, InputButtonHeld}].Action)
	assert.Empty(t, b.errs)
}

func TestTable_RowsOrdered(t *testing.T) {
	rows := MustDefaultTable().Rows()
	require.NotEmpty(t, rows)
	assert.Equal(t, StateInit, rows[0].From)
	assert.Equal(t, InputNone, rows[0].Input)
	assert.Equal(t, StateDisconnected, rows[len(rows)-1].From)
	assert.Equal(t, InputCommandExtend, rows[len(rows)-1].Input)
}
