package statemachine

// State represents what the recorder is doing combined with any recorder action in flight
type State string

const (
	StateInit              State = "Init"
	StatePreviewing        State = "Previewing"
	StatePreviewingQueued  State = "PreviewingQueued"
	StateRecordingWait     State = "RecordingWait"
	StateRecording         State = "Recording"
	StatePausedWait        State = "PausedWait"
	StatePaused            State = "Paused"
	StateStoppingPaused    State = "StoppingPaused"
	StateStoppingRecording State = "StoppingRecording"
	StateStopped           State = "Stopped"
	StateRunningElsewhere  State = "RunningElsewhere"
	StateFaulted           State = "Faulted"
	StateDisconnected      State = "Disconnected"
)

var allStates = []State{
	StateInit,
	StatePreviewing,
	StatePreviewingQueued,
	StateRecordingWait,
	StateRecording,
	StatePausedWait,
	StatePaused,
	StateStoppingPaused,
	StateStoppingRecording,
	StateStopped,
	StateRunningElsewhere,
	StateFaulted,
	StateDisconnected,
}

var validStates = func() map[State]bool {
	m := make(map[State]bool, len(allStates))
	for _, s := range allStates {
		m[s] = true
	}
	return m
}()

// AllStates returns every state in declaration order
func AllStates() []State {
	return append([]State(nil), allStates...)
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is one of the declared states
func (s State) IsValid() bool {
	return validStates[s]
}

// IsUnavailable returns true when the recorder cannot be controlled from here
func (s State) IsUnavailable() bool {
	return s == StateRunningElsewhere || s == StateFaulted || s == StateDisconnected
}
