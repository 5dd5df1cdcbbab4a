package statemachine

import (
	"errors"
	"fmt"
	"sort"
)

// TableBuilder builds a transition table one state at a time
type TableBuilder interface {
	// Configure returns a state configuration for the given state
	Configure(state State) StateConfiguration

	// Build validates that every (state, input) pair has exactly one row
	Build() (*Table, error)
}

// StateConfiguration configures the rows leaving a specific state
type StateConfiguration interface {
	// On binds an input to an action and a target state
	On(input Input, action ActionID, to State) StateConfiguration

	// Hold binds inputs to a no-op that stays in this state
	Hold(inputs ...Input) StateConfiguration

	// Deny binds inputs to ActionNotPermitted, staying in this state
	Deny(inputs ...Input) StateConfiguration

	// Resync binds every still-unbound recorder-status input to the state it asserts
	Resync() StateConfiguration

	// Otherwise binds every still-unbound input in inputs to action, staying in this state
	Otherwise(action ActionID, inputs ...Input) StateConfiguration
}

type key struct {
	state State
	input Input
}

// stateConfig implements StateConfiguration
type stateConfig struct {
	builder   *tableBuilder
	fromState State
}

// tableBuilder implements TableBuilder
type tableBuilder struct {
	rows    map[key]Transition
	configs map[State]*stateConfig
	errs    []error
}

// NewBuilder creates a new transition table builder
func NewBuilder() TableBuilder {
	return &tableBuilder{
		rows:    make(map[key]Transition),
		configs: make(map[State]*stateConfig),
	}
}

// Configure returns a state configuration for the given state
func (b *tableBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	config, exists := b.configs[state]
	if !exists {
		config = &stateConfig{builder: b, fromState: state}
		b.configs[state] = config
	}
	return config
}

// Build validates completeness over State x Input and returns the immutable table
func (b *tableBuilder) Build() (*Table, error) {
	errs := append([]error(nil), b.errs...)

	var missing []string
	for _, s := range allStates {
		for _, in := range allInputs {
			if _, ok := b.rows[key{s, in}]; !ok {
				missing = append(missing, fmt.Sprintf("(%s, %s)", s, in))
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		errs = append(errs, fmt.Errorf("%w: %d pairs undefined: %v", ErrIncompleteTable, len(missing), missing))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	rows := make(map[key]Transition, len(b.rows))
	for k, t := range b.rows {
		rows[k] = t
	}
	return &Table{rows: rows}, nil
}

func (b *tableBuilder) add(t Transition) {
	switch {
	case !t.Input.IsValid():
		b.errs = append(b.errs, fmt.Errorf("%w: %q from state %s", ErrInvalidInput, t.Input, t.From))
		return
	case !t.To.IsValid():
		b.errs = append(b.errs, fmt.Errorf("%w: target %q for (%s, %s)", ErrInvalidState, t.To, t.From, t.Input))
		return
	}

	k := key{t.From, t.Input}
	if prev, exists := b.rows[k]; exists {
		b.errs = append(b.errs, fmt.Errorf("%w: (%s, %s) already bound to %s -> %s",
			ErrDuplicateTransition, t.From, t.Input, prev.Action, prev.To))
		return
	}
	b.rows[k] = t
}

func (b *tableBuilder) bound(s State, in Input) bool {
	_, ok := b.rows[key{s, in}]
	return ok
}

// On binds an input to an action and a target state
func (c *stateConfig) On(input Input, action ActionID, to State) StateConfiguration {
	c.builder.add(Transition{From: c.fromState, Input: input, Action: action, To: to})
	return c
}

// Hold binds inputs to a no-op that stays in this state
func (c *stateConfig) Hold(inputs ...Input) StateConfiguration {
	for _, in := range inputs {
		c.On(in, ActionNoop, c.fromState)
	}
	return c
}

// Deny binds inputs to ActionNotPermitted, staying in this state
func (c *stateConfig) Deny(inputs ...Input) StateConfiguration {
	for _, in := range inputs {
		c.On(in, ActionNotPermitted, c.fromState)
	}
	return c
}

// Resync binds every still-unbound recorder-status input to the state it asserts.
// Reports of the current state are no-ops; anything else updates the light.
func (c *stateConfig) Resync() StateConfiguration {
	for _, in := range recorderInputs {
		if c.builder.bound(c.fromState, in) {
			continue
		}
		to, _ := StateForStatus(in)
		if to == c.fromState {
			c.On(in, ActionNoop, to)
			continue
		}
		c.On(in, ActionSetLight, to)
	}
	return c
}

// Otherwise binds every still-unbound input in inputs to action, staying in this state
func (c *stateConfig) Otherwise(action ActionID, inputs ...Input) StateConfiguration {
	for _, in := range inputs {
		if c.builder.bound(c.fromState, in) {
			continue
		}
		c.On(in, action, c.fromState)
	}
	return c
}
