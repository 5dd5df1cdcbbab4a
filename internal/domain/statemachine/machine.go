package statemachine

import (
	"context"
	"fmt"
	"time"
)

// Payload carries optional data attached to an input
type Payload struct {
	// HoldDuration is how long the button was held, for button inputs
	HoldDuration time.Duration `json:"hold_duration,omitempty"`

	// Text is the raw command text, for remote commands
	Text string `json:"text,omitempty"`
}

// ActionContext is everything an action needs to perform its side effect
type ActionContext struct {
	Action  ActionID
	From    State
	To      State
	Input   Input
	Payload Payload
}

// ActionRunner performs the side effect of an action and reports whether it succeeded.
// Implementations must not panic; the machine recovers if they do.
type ActionRunner interface {
	Run(ctx context.Context, ac ActionContext) bool
}

// ActionRunnerFunc adapts a function to ActionRunner
type ActionRunnerFunc func(ctx context.Context, ac ActionContext) bool

// Run calls f(ctx, ac)
func (f ActionRunnerFunc) Run(ctx context.Context, ac ActionContext) bool {
	return f(ctx, ac)
}

// Result describes how one input was processed
type Result struct {
	Input   Input    `json:"input"`
	Action  ActionID `json:"-"`
	From    State    `json:"from"`
	To      State    `json:"to"`
	Success bool     `json:"success"`
	Err     error    `json:"-"`
}

// Changed returns true when the machine moved to a different state
func (r Result) Changed() bool {
	return r.From != r.To
}

// Machine is the status-light controller.
// It is not safe for concurrent use; exactly one goroutine feeds it.
type Machine struct {
	table  *Table
	runner ActionRunner
	state  State
}

// NewMachine creates a machine in StateInit
func NewMachine(table *Table, runner ActionRunner) *Machine {
	return &Machine{
		table:  table,
		runner: runner,
		state:  StateInit,
	}
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// ProcessInput looks up the transition for the current state and input, runs its
// action and advances on success. On failure the machine stays in its prior state.
func (m *Machine) ProcessInput(ctx context.Context, input Input, payload Payload) Result {
	from := m.state
	res := Result{Input: input, From: from, To: from}

	if !input.IsValid() {
		res.Err = fmt.Errorf("%w: %q", ErrInvalidInput, input)
		return res
	}

	row, err := m.table.Lookup(from, input)
	if err != nil {
		res.Err = err
		return res
	}
	res.Action = row.Action

	ok := m.run(ctx, ActionContext{
		Action:  row.Action,
		From:    from,
		To:      row.To,
		Input:   input,
		Payload: payload,
	})
	if !ok {
		res.Err = fmt.Errorf("%w: %s on (%s, %s)", ErrActionFailed, row.Action, from, input)
		return res
	}

	m.state = row.To
	res.To = row.To
	res.Success = true
	return res
}

// run executes the action with panic recovery
func (m *Machine) run(ctx context.Context, ac ActionContext) (ok bool) {
	switch ac.Action {
	case ActionNoop:
		return true
	case ActionNotPermitted:
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return m.runner.Run(ctx, ac)
}
