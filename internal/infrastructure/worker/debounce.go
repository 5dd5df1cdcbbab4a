package worker

import (
	"time"

	"github.com/garyjia/recordlight/internal/domain/statemachine"
)

// ButtonEvent is one recognized button input
type ButtonEvent struct {
	Input        statemachine.Input
	HoldDuration time.Duration
}

// Debouncer turns raw button samples into button inputs.
// A level change is recognized after Samples consecutive samples agree. Once a
// press lasts HoldThreshold the held latch is set and ButtonHeld fires; the latch
// is cleared on release, which then fires ButtonUp without ButtonPressed.
type Debouncer struct {
	samples       int
	holdThreshold time.Duration

	stable      bool
	count       int
	candidateAt time.Time
	pressedAt   time.Time
	held        bool
}

// NewDebouncer creates a debouncer. samples below 1 are treated as 1.
func NewDebouncer(samples int, holdThreshold time.Duration) *Debouncer {
	if samples < 1 {
		samples = 1
	}
	return &Debouncer{
		samples:       samples,
		holdThreshold: holdThreshold,
	}
}

// Pressed reports the debounced button level
func (d *Debouncer) Pressed() bool {
	return d.stable
}

// Sample feeds one raw reading taken at now and returns the inputs it produces
func (d *Debouncer) Sample(raw bool, now time.Time) []ButtonEvent {
	if raw == d.stable {
		d.count = 0
		return d.checkHeld(now)
	}

	d.count++
	if d.count == 1 {
		d.candidateAt = now
	}
	if d.count < d.samples {
		return d.checkHeld(now)
	}

	d.count = 0
	d.stable = raw

	if raw {
		d.pressedAt = d.candidateAt
		d.held = false
		events := []ButtonEvent{{Input: statemachine.InputButtonDown}}
		return append(events, d.checkHeld(now)...)
	}

	dur := d.candidateAt.Sub(d.pressedAt)
	events := []ButtonEvent{{Input: statemachine.InputButtonUp, HoldDuration: dur}}
	if !d.held {
		events = append(events, ButtonEvent{Input: statemachine.InputButtonPressed, HoldDuration: dur})
	}
	d.held = false
	return events
}

func (d *Debouncer) checkHeld(now time.Time) []ButtonEvent {
	if !d.stable || d.held || d.holdThreshold <= 0 {
		return nil
	}
	dur := now.Sub(d.pressedAt)
	if dur < d.holdThreshold {
		return nil
	}
	d.held = true
	return []ButtonEvent{{Input: statemachine.InputButtonHeld, HoldDuration: dur}}
}
