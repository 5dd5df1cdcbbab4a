package worker

import (
	"context"
	"time"

	"github.com/garyjia/recordlight/internal/application/port"
	"github.com/garyjia/recordlight/internal/domain/event"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
	"go.uber.org/zap"
)

// ButtonPollerConfig holds configuration for the button poller
type ButtonPollerConfig struct {
	PollInterval    time.Duration
	DebounceSamples int
	HoldThreshold   time.Duration
}

// DefaultButtonPollerConfig returns default configuration
func DefaultButtonPollerConfig() ButtonPollerConfig {
	return ButtonPollerConfig{
		PollInterval:    100 * time.Millisecond,
		DebounceSamples: 3,
		HoldThreshold:   3 * time.Second,
	}
}

// ButtonPoller samples the physical button and queues debounced button inputs
type ButtonPoller struct {
	config    ButtonPollerConfig
	device    port.ButtonDevice
	submitter port.Submitter
	debouncer *Debouncer
	logger    *zap.Logger
	now       func() time.Time

	loop
	readFailing bool
}

// NewButtonPoller creates a new button poller
func NewButtonPoller(config ButtonPollerConfig, device port.ButtonDevice, submitter port.Submitter, logger *zap.Logger) *ButtonPoller {
	return &ButtonPoller{
		config:    config,
		device:    device,
		submitter: submitter,
		debouncer: NewDebouncer(config.DebounceSamples, config.HoldThreshold),
		logger:    logger,
		now:       time.Now,
	}
}

// Start starts the polling loop
func (p *ButtonPoller) Start(ctx context.Context) error {
	if err := p.start(ctx, p.Name(), p.pollLoop); err != nil {
		return err
	}
	p.logger.Info("ButtonPoller started",
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Int("debounce_samples", p.config.DebounceSamples),
		zap.Duration("hold_threshold", p.config.HoldThreshold))
	return nil
}

// Stop halts polling and waits for the loop to exit
func (p *ButtonPoller) Stop() error {
	p.stop()
	p.logger.Info("ButtonPoller stopped")
	return nil
}

// Name returns the worker name for identification
func (p *ButtonPoller) Name() string {
	return "ButtonPoller"
}

func (p *ButtonPoller) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sample()
		}
	}
}

// sample reads the button once. Read errors are transient and logged once per outage.
func (p *ButtonPoller) sample() {
	pressed, err := p.device.ReadButton()
	if err != nil {
		if !p.readFailing {
			p.readFailing = true
			p.logger.Warn("Button read failed, skipping samples until it recovers", zap.Error(err))
		}
		return
	}
	if p.readFailing {
		p.readFailing = false
		p.logger.Info("Button read recovered")
	}

	for _, ev := range p.debouncer.Sample(pressed, p.now()) {
		evt := event.NewEvent(ev.Input, event.SourceButton, statemachine.Payload{HoldDuration: ev.HoldDuration})
		if err := p.submitter.Submit(evt); err != nil {
			p.logger.Warn("Failed to queue button input",
				zap.Stringer("input", ev.Input),
				zap.Error(err))
			continue
		}
		p.logger.Debug("Button input queued",
			zap.Stringer("input", ev.Input),
			zap.Duration("hold", ev.HoldDuration))
	}
}
