package statemachine

import "strings"

// Input represents an event that can cause a state transition
type Input string

const (
	InputNone Input = "NoInput"

	InputRecorderPreviewing       Input = "RecorderPreviewing"
	InputRecorderPreviewingQueued Input = "RecorderPreviewingQueued"
	InputRecorderRecording        Input = "RecorderRecording"
	InputRecorderPaused           Input = "RecorderPaused"
	InputRecorderStopped          Input = "RecorderStopped"
	InputRecorderRunningElsewhere Input = "RecorderRunningElsewhere"
	InputRecorderFaulted          Input = "RecorderFaulted"
	InputRecorderDisconnected     Input = "RecorderDisconnected"

	InputButtonDown    Input = "ButtonDown"
	InputButtonUp      Input = "ButtonUp"
	InputButtonPressed Input = "ButtonPressed"
	InputButtonHeld    Input = "ButtonHeld"

	InputCommandStart  Input = "CommandStart"
	InputCommandStop   Input = "CommandStop"
	InputCommandPause  Input = "CommandPause"
	InputCommandResume Input = "CommandResume"
	InputCommandExtend Input = "CommandExtend"
)

var recorderInputs = []Input{
	InputRecorderPreviewing,
	InputRecorderPreviewingQueued,
	InputRecorderRecording,
	InputRecorderPaused,
	InputRecorderStopped,
	InputRecorderRunningElsewhere,
	InputRecorderFaulted,
	InputRecorderDisconnected,
}

var buttonInputs = []Input{
	InputButtonDown,
	InputButtonUp,
	InputButtonPressed,
	InputButtonHeld,
}

var commandInputs = []Input{
	InputCommandStart,
	InputCommandStop,
	InputCommandPause,
	InputCommandResume,
	InputCommandExtend,
}

var allInputs = func() []Input {
	all := []Input{InputNone}
	all = append(all, recorderInputs...)
	all = append(all, buttonInputs...)
	return append(all, commandInputs...)
}()

var inputKinds = func() map[Input]byte {
	m := map[Input]byte{InputNone: 'n'}
	for _, in := range recorderInputs {
		m[in] = 'r'
	}
	for _, in := range buttonInputs {
		m[in] = 'b'
	}
	for _, in := range commandInputs {
		m[in] = 'c'
	}
	return m
}()

// AllInputs returns every input in declaration order
func AllInputs() []Input {
	return append([]Input(nil), allInputs...)
}

// RecorderInputs returns the recorder-status observations
func RecorderInputs() []Input {
	return append([]Input(nil), recorderInputs...)
}

// ButtonInputs returns the physical-button observations
func ButtonInputs() []Input {
	return append([]Input(nil), buttonInputs...)
}

// CommandInputs returns the remote commands
func CommandInputs() []Input {
	return append([]Input(nil), commandInputs...)
}

// String returns the string representation of the input
func (i Input) String() string {
	return string(i)
}

// IsValid returns true if the input is one of the declared inputs
func (i Input) IsValid() bool {
	_, ok := inputKinds[i]
	return ok
}

// IsRecorderStatus returns true for recorder-status observations
func (i Input) IsRecorderStatus() bool {
	return inputKinds[i] == 'r'
}

// IsButton returns true for physical-button observations
func (i Input) IsButton() bool {
	return inputKinds[i] == 'b'
}

// IsCommand returns true for remote commands
func (i Input) IsCommand() bool {
	return inputKinds[i] == 'c'
}

// ParseCommand maps console command text (START, stop, ...) to a command input
func ParseCommand(text string) (Input, bool) {
	switch strings.ToUpper(strings.TrimSpace(text)) {
	case "START":
		return InputCommandStart, true
	case "STOP":
		return InputCommandStop, true
	case "PAUSE":
		return InputCommandPause, true
	case "RESUME":
		return InputCommandResume, true
	case "EXTEND":
		return InputCommandExtend, true
	}
	return "", false
}

// StateForStatus returns the state a recorder-status input asserts
func StateForStatus(in Input) (State, bool) {
	switch in {
	case InputRecorderPreviewing:
		return StatePreviewing, true
	case InputRecorderPreviewingQueued:
		return StatePreviewingQueued, true
	case InputRecorderRecording:
		return StateRecording, true
	case InputRecorderPaused:
		return StatePaused, true
	case InputRecorderStopped:
		return StateStopped, true
	case InputRecorderRunningElsewhere:
		return StateRunningElsewhere, true
	case InputRecorderFaulted:
		return StateFaulted, true
	case InputRecorderDisconnected:
		return StateDisconnected, true
	}
	return "", false
}
