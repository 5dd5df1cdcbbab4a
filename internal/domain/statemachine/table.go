package statemachine

import (
	"fmt"
	"sync"
)

// Transition is one row of the table: (From, Input) -> (Action, To)
type Transition struct {
	From   State    `json:"from"`
	Input  Input    `json:"input"`
	Action ActionID `json:"-"`
	To     State    `json:"to"`
}

// Table is a complete, immutable transition table
type Table struct {
	rows map[key]Transition
}

// Lookup returns the row for (state, input)
func (t *Table) Lookup(state State, input Input) (Transition, error) {
	row, ok := t.rows[key{state, input}]
	if !ok {
		return Transition{}, fmt.Errorf("%w: (%s, %s)", ErrMissingTransition, state, input)
	}
	return row, nil
}

// Rows returns every row ordered by state then input declaration order
func (t *Table) Rows() []Transition {
	out := make([]Transition, 0, len(t.rows))
	for _, s := range allStates {
		for _, in := range allInputs {
			if row, ok := t.rows[key{s, in}]; ok {
				out = append(out, row)
			}
		}
	}
	return out
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// DefaultTable returns the canonical transition table.
// The result is built and verified once.
func DefaultTable() (*Table, error) {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = buildDefault()
	})
	return defaultTable, defaultErr
}

// MustDefaultTable is DefaultTable that panics on an incomplete table
func MustDefaultTable() *Table {
	t, err := DefaultTable()
	if err != nil {
		panic(err)
	}
	return t
}

func buildDefault() (*Table, error) {
	b := NewBuilder()

	b.Configure(StateInit).
		Resync().
		Otherwise(ActionNoop, buttonInputs...).
		Deny(commandInputs...).
		Hold(InputNone)

	b.Configure(StatePreviewing).
		Resync().
		On(InputButtonPressed, ActionStartNew, StateRecordingWait).
		Otherwise(ActionNoop, buttonInputs...).
		On(InputCommandStart, ActionStartNew, StateRecordingWait).
		Deny(InputCommandStop, InputCommandPause, InputCommandResume, InputCommandExtend).
		Hold(InputNone)

	b.Configure(StatePreviewingQueued).
		Resync().
		On(InputButtonPressed, ActionStartNext, StateRecordingWait).
		Otherwise(ActionNoop, buttonInputs...).
		On(InputCommandStart, ActionStartNext, StateRecordingWait).
		Deny(InputCommandStop, InputCommandPause, InputCommandResume, InputCommandExtend).
		Hold(InputNone)

	// Waiting for the recorder to confirm a start or resume.
	b.Configure(StateRecordingWait).
		Hold(InputRecorderPreviewing, InputRecorderPreviewingQueued, InputRecorderPaused).
		Resync().
		Otherwise(ActionNoop, buttonInputs...).
		Hold(InputCommandStart, InputCommandResume).
		On(InputCommandStop, ActionStop, StateStoppingRecording).
		Deny(InputCommandPause, InputCommandExtend).
		Hold(InputNone)

	b.Configure(StateRecording).
		Resync().
		On(InputButtonPressed, ActionPause, StatePausedWait).
		On(InputButtonHeld, ActionStop, StateStoppingRecording).
		Otherwise(ActionNoop, buttonInputs...).
		Hold(InputCommandStart, InputCommandResume).
		On(InputCommandStop, ActionStop, StateStoppingRecording).
		On(InputCommandPause, ActionPause, StatePausedWait).
		On(InputCommandExtend, ActionExtend, StateRecording).
		Hold(InputNone)

	// Waiting for the recorder to confirm a pause.
	b.Configure(StatePausedWait).
		Hold(InputRecorderRecording).
		Resync().
		Otherwise(ActionNoop, buttonInputs...).
		Hold(InputCommandPause).
		On(InputCommandStop, ActionStop, StateStoppingPaused).
		Deny(InputCommandStart, InputCommandResume, InputCommandExtend).
		Hold(InputNone)

	b.Configure(StatePaused).
		Resync().
		On(InputButtonPressed, ActionResume, StateRecordingWait).
		On(InputButtonHeld, ActionStop, StateStoppingPaused).
		Otherwise(ActionNoop, buttonInputs...).
		On(InputCommandStart, ActionResume, StateRecordingWait).
		On(InputCommandResume, ActionResume, StateRecordingWait).
		On(InputCommandStop, ActionStop, StateStoppingPaused).
		On(InputCommandExtend, ActionExtend, StatePaused).
		Hold(InputCommandPause).
		Hold(InputNone)

	b.Configure(StateStoppingPaused).
		Hold(InputRecorderPaused).
		Resync().
		Otherwise(ActionNoop, buttonInputs...).
		Hold(InputCommandStop).
		Deny(InputCommandStart, InputCommandPause, InputCommandResume, InputCommandExtend).
		Hold(InputNone)

	b.Configure(StateStoppingRecording).
		Hold(InputRecorderRecording).
		Resync().
		Otherwise(ActionNoop, buttonInputs...).
		Hold(InputCommandStop).
		Deny(InputCommandStart, InputCommandPause, InputCommandResume, InputCommandExtend).
		Hold(InputNone)

	b.Configure(StateStopped).
		Resync().
		Otherwise(ActionNoop, buttonInputs...).
		On(InputCommandStart, ActionStartNew, StateRecordingWait).
		Hold(InputCommandStop).
		Deny(InputCommandPause, InputCommandResume, InputCommandExtend).
		Hold(InputNone)

	for _, s := range []State{StateRunningElsewhere, StateFaulted, StateDisconnected} {
		b.Configure(s).
			Resync().
			On(InputButtonDown, ActionRejectInput, s).
			On(InputButtonUp, ActionRejectInput, s).
			Hold(InputButtonPressed, InputButtonHeld).
			Deny(commandInputs...).
			Hold(InputNone)
	}

	return b.Build()
}
