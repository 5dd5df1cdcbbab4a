package statemachine

import "errors"

var (
	// ErrInvalidState is returned when a state is not declared
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidInput is returned when an input is not declared
	ErrInvalidInput = errors.New("invalid input")

	// ErrIncompleteTable is returned when a (state, input) pair has no transition
	ErrIncompleteTable = errors.New("incomplete transition table")

	// ErrDuplicateTransition is returned when a (state, input) pair is defined twice
	ErrDuplicateTransition = errors.New("duplicate transition")

	// ErrMissingTransition is returned when a lookup finds no row
	ErrMissingTransition = errors.New("missing transition")

	// ErrActionFailed is returned when the bound action reports failure
	ErrActionFailed = errors.New("action failed")
)
