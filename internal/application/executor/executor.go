// Package executor performs the side effects bound to state machine transitions.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/recordlight/internal/application/port"
	"github.com/garyjia/recordlight/internal/domain/light"
	"github.com/garyjia/recordlight/internal/domain/recorder"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
	"go.uber.org/zap"
)

// ErrNoRecording is returned when a recorder action needs a recording id and there is none
var ErrNoRecording = errors.New("no recording to act on")

// Config holds the visual alert timings
type Config struct {
	// FailureAlert is how long the light flashes red after a failed recorder action
	FailureAlert time.Duration

	// RejectFlash is how long the light flashes red when a button input is rejected
	RejectFlash time.Duration
}

// DefaultConfig returns the default alert timings
func DefaultConfig() Config {
	return Config{
		FailureAlert: 2 * time.Second,
		RejectFlash:  500 * time.Millisecond,
	}
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration)

// Executor implements statemachine.ActionRunner with the light and recorder
type Executor struct {
	light    port.Light
	recorder port.Recorder
	cfg      Config
	logger   *zap.Logger
	sleep    SleepFunc
}

// Option configures the executor
type Option func(*Executor)

// WithSleep replaces the alert delay, mainly for tests
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) {
		e.sleep = fn
	}
}

// New creates an executor
func New(l port.Light, rec port.Recorder, cfg Config, logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		light:    l,
		recorder: rec,
		cfg:      cfg,
		logger:   logger,
		sleep:    contextSleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run performs the action and reports success. It never panics.
func (e *Executor) Run(ctx context.Context, ac statemachine.ActionContext) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Action panic recovered",
				zap.Stringer("action", ac.Action),
				zap.Stringer("from", ac.From),
				zap.Any("panic", r))
			ok = false
		}
	}()

	switch ac.Action {
	case statemachine.ActionNoop:
		return true

	case statemachine.ActionSetLight:
		port.Show(e.light, statemachine.Display(ac.To))
		return true

	case statemachine.ActionRejectInput:
		e.light.SetFlash(light.ColorRed)
		e.sleep(ctx, e.cfg.RejectFlash)
		port.Show(e.light, statemachine.Display(ac.From))
		return true

	case statemachine.ActionNotPermitted:
		e.logger.Info("Input not permitted in current state",
			zap.Stringer("input", ac.Input),
			zap.Stringer("state", ac.From))
		return false

	case statemachine.ActionStartNext,
		statemachine.ActionStartNew,
		statemachine.ActionStop,
		statemachine.ActionPause,
		statemachine.ActionResume,
		statemachine.ActionExtend:
		return e.invokeRecorder(ctx, ac)
	}

	e.logger.Error("Unknown action", zap.Int("action", int(ac.Action)))
	return false
}

// invokeRecorder calls the recorder and handles the failure alert
func (e *Executor) invokeRecorder(ctx context.Context, ac statemachine.ActionContext) bool {
	start := time.Now()
	ok, err := e.callRecorder(ctx, ac.Action)

	if err != nil || !ok {
		e.logger.Warn("Recorder action failed",
			zap.Stringer("action", ac.Action),
			zap.Stringer("from", ac.From),
			zap.Stringer("input", ac.Input),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))

		e.light.SetFlash(light.ColorRed)
		e.sleep(ctx, e.cfg.FailureAlert)
		port.Show(e.light, statemachine.Display(ac.From))
		return false
	}

	e.logger.Info("Recorder action succeeded",
		zap.Stringer("action", ac.Action),
		zap.Duration("elapsed", time.Since(start)))
	port.Show(e.light, statemachine.Display(ac.To))
	return true
}

func (e *Executor) callRecorder(ctx context.Context, action statemachine.ActionID) (bool, error) {
	switch action {
	case statemachine.ActionStartNew:
		return e.recorder.StartNew(ctx)

	case statemachine.ActionStartNext:
		next, err := e.recorder.GetNextRecording(ctx)
		if err != nil {
			return false, fmt.Errorf("get next recording: %w", err)
		}
		if next == nil {
			return false, ErrNoRecording
		}
		return e.recorder.StartNext(ctx, next.ID)
	}

	current, err := e.recorder.GetCurrentRecording(ctx)
	if err != nil {
		return false, fmt.Errorf("get current recording: %w", err)
	}
	if current == nil {
		return false, ErrNoRecording
	}

	return e.callWithID(ctx, action, current)
}

func (e *Executor) callWithID(ctx context.Context, action statemachine.ActionID, r *recorder.Recording) (bool, error) {
	switch action {
	case statemachine.ActionStop:
		return e.recorder.Stop(ctx, r.ID)
	case statemachine.ActionPause:
		return e.recorder.Pause(ctx, r.ID)
	case statemachine.ActionResume:
		return e.recorder.Resume(ctx, r.ID)
	case statemachine.ActionExtend:
		return e.recorder.Extend(ctx, r.ID)
	}
	return false, fmt.Errorf("action %s is not a recorder action", action)
}

func contextSleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
