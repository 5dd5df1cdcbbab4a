package worker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/garyjia/recordlight/internal/application/port"
	"github.com/garyjia/recordlight/internal/domain/event"
	"github.com/garyjia/recordlight/internal/domain/recorder"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
	"go.uber.org/zap"
)

// RecorderPollerConfig holds configuration for the recorder status poller
type RecorderPollerConfig struct {
	PollInterval   time.Duration
	Lookahead      time.Duration
	BackoffMax     time.Duration
	RequestTimeout time.Duration
}

// DefaultRecorderPollerConfig returns default configuration
func DefaultRecorderPollerConfig() RecorderPollerConfig {
	return RecorderPollerConfig{
		PollInterval:   time.Second,
		Lookahead:      60 * time.Minute,
		BackoffMax:     10 * time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

// MapStatus translates a recorder status into the input it asserts.
// Previewing becomes RecorderPreviewingQueued when next starts within lookahead.
// Unknown statuses map to RecorderDisconnected.
func MapStatus(status recorder.Status, next *recorder.Recording, now time.Time, lookahead time.Duration) statemachine.Input {
	switch status {
	case recorder.StatusPreviewing:
		if next.StartsWithin(now, lookahead) {
			return statemachine.InputRecorderPreviewingQueued
		}
		return statemachine.InputRecorderPreviewing
	case recorder.StatusRecording:
		return statemachine.InputRecorderRecording
	case recorder.StatusPaused:
		return statemachine.InputRecorderPaused
	case recorder.StatusStopped:
		return statemachine.InputRecorderStopped
	case recorder.StatusRunningElsewhere:
		return statemachine.InputRecorderRunningElsewhere
	case recorder.StatusFaulted:
		return statemachine.InputRecorderFaulted
	}
	return statemachine.InputRecorderDisconnected
}

// RecorderPoller polls the recorder and queues status inputs when they change
type RecorderPoller struct {
	config    RecorderPollerConfig
	source    port.RecorderStatusSource
	submitter port.Submitter
	logger    *zap.Logger
	now       func() time.Time
	onError   func()

	loop
	lastPushed statemachine.Input
	backoff    *backoff.ExponentialBackOff
	failing    bool
}

// RecorderPollerOption configures the poller
type RecorderPollerOption func(*RecorderPoller)

// WithPollErrorHook is called once per failed poll
func WithPollErrorHook(fn func()) RecorderPollerOption {
	return func(p *RecorderPoller) {
		p.onError = fn
	}
}

// WithPollerClock replaces time.Now, mainly for tests
func WithPollerClock(now func() time.Time) RecorderPollerOption {
	return func(p *RecorderPoller) {
		p.now = now
	}
}

// NewRecorderPoller creates a new recorder status poller
func NewRecorderPoller(config RecorderPollerConfig, source port.RecorderStatusSource, submitter port.Submitter, logger *zap.Logger, opts ...RecorderPollerOption) *RecorderPoller {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.PollInterval
	b.MaxInterval = config.BackoffMax
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}

	p := &RecorderPoller{
		config:     config,
		source:     source,
		submitter:  submitter,
		logger:     logger,
		now:        time.Now,
		lastPushed: statemachine.InputNone,
		backoff:    b,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start starts the polling loop
func (p *RecorderPoller) Start(ctx context.Context) error {
	if err := p.start(ctx, p.Name(), p.pollLoop); err != nil {
		return err
	}
	p.logger.Info("RecorderPoller started",
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Duration("lookahead", p.config.Lookahead))
	return nil
}

// Stop halts polling and waits for the loop to exit
func (p *RecorderPoller) Stop() error {
	p.stop()
	p.logger.Info("RecorderPoller stopped")
	return nil
}

// Name returns the worker name for identification
func (p *RecorderPoller) Name() string {
	return "RecorderPoller"
}

// pollLoop polls immediately, then waits the poll interval, or a growing backoff
// while the recorder is unreachable
func (p *RecorderPoller) pollLoop(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		timer.Reset(p.poll(ctx))
	}
}

// poll runs one status check and returns the delay until the next one
func (p *RecorderPoller) poll(ctx context.Context) time.Duration {
	input, err := p.observe(ctx)
	if ctx.Err() != nil {
		return p.config.PollInterval
	}

	delay := p.config.PollInterval
	if err != nil {
		input = statemachine.InputRecorderDisconnected
		delay = p.backoff.NextBackOff()
		if p.onError != nil {
			p.onError()
		}
		if !p.failing {
			p.failing = true
			p.logger.Warn("Recorder unreachable", zap.Error(err))
		} else {
			p.logger.Debug("Recorder still unreachable", zap.Error(err), zap.Duration("next_poll", delay))
		}
	} else if p.failing {
		p.failing = false
		p.backoff.Reset()
		p.logger.Info("Recorder reachable again", zap.Stringer("input", input))
	}

	p.push(input)
	return delay
}

func (p *RecorderPoller) observe(ctx context.Context) (statemachine.Input, error) {
	if p.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.RequestTimeout)
		defer cancel()
	}

	status, err := p.source.GetStatus(ctx)
	if err != nil {
		return statemachine.InputNone, err
	}

	var next *recorder.Recording
	if status == recorder.StatusPreviewing {
		next, err = p.source.GetNextRecording(ctx)
		if err != nil {
			return statemachine.InputNone, err
		}
	}

	return MapStatus(status, next, p.now(), p.config.Lookahead), nil
}

// push queues input if it differs from the last queued input. NoInput is never queued.
func (p *RecorderPoller) push(input statemachine.Input) {
	if input == statemachine.InputNone || input == p.lastPushed {
		return
	}

	evt := event.NewEvent(input, event.SourceRecorder, statemachine.Payload{})
	if err := p.submitter.Submit(evt); err != nil {
		p.logger.Warn("Failed to queue recorder input", zap.Stringer("input", input), zap.Error(err))
		return
	}

	p.logger.Debug("Recorder input queued",
		zap.Stringer("from", p.lastPushed),
		zap.Stringer("input", input))
	p.lastPushed = input
}
