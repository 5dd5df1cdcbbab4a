package statemachine

// ActionID names the behavior bound to a transition
type ActionID int

const (
	// ActionNoop has no side effect and always succeeds
	ActionNoop ActionID = iota
	// ActionSetLight shows the target state's display and always succeeds
	ActionSetLight
	// ActionStartNext starts the queued recording
	ActionStartNext
	// ActionStartNew starts an ad-hoc recording
	ActionStartNew
	ActionStop
	ActionPause
	ActionResume
	ActionExtend
	// ActionRejectInput flashes red briefly and succeeds
	ActionRejectInput
	// ActionNotPermitted refuses a command that does not apply to the current state
	ActionNotPermitted
)

var actionNames = map[ActionID]string{
	ActionNoop:         "Noop",
	ActionSetLight:     "SetLight",
	ActionStartNext:    "StartNext",
	ActionStartNew:     "StartNew",
	ActionStop:         "Stop",
	ActionPause:        "Pause",
	ActionResume:       "Resume",
	ActionExtend:       "Extend",
	ActionRejectInput:  "RejectInput",
	ActionNotPermitted: "NotPermitted",
}

// String returns the action name
func (a ActionID) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "Unknown"
}

// IsValid returns true if the action is declared
func (a ActionID) IsValid() bool {
	_, ok := actionNames[a]
	return ok
}

// IsRecorderAction returns true when the action calls into the recorder
func (a ActionID) IsRecorderAction() bool {
	switch a {
	case ActionStartNext, ActionStartNew, ActionStop, ActionPause, ActionResume, ActionExtend:
		return true
	}
	return false
}
