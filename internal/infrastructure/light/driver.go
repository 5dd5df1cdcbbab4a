// Package light serializes writes to the status light hardware.
package light

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/garyjia/recordlight/internal/application/port"
	domain "github.com/garyjia/recordlight/internal/domain/light"
	"go.uber.org/zap"
)

// Hardware is the light device surface the driver needs
type Hardware interface {
	port.LightDevice
	Probe() error
	Reopen() error
}

// Config holds the driver's retry and connectivity settings
type Config struct {
	WriteRetries  int
	RetryBackoff  time.Duration
	ProbeInterval time.Duration
	ReconnectMin  time.Duration
	ReconnectMax  time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		WriteRetries:  3,
		RetryBackoff:  50 * time.Millisecond,
		ProbeInterval: 2 * time.Second,
		ReconnectMin:  time.Second,
		ReconnectMax:  10 * time.Second,
	}
}

// Driver implements port.Light. Set calls never block: they record the desired
// display and the driver goroutine applies the latest one.
type Driver struct {
	hw     Hardware
	cfg    Config
	logger *zap.Logger
	onConn func(connected bool)

	mu      sync.Mutex
	desired domain.Display
	dirty   bool

	connected atomic.Bool
	kick      chan struct{}

	runMu     sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures the driver
type Option func(*Driver)

// WithConnectionHook is called whenever connectivity changes
func WithConnectionHook(fn func(connected bool)) Option {
	return func(d *Driver) {
		d.onConn = fn
	}
}

// NewDriver creates a driver for an already opened device
func NewDriver(hw Hardware, cfg Config, logger *zap.Logger, opts ...Option) *Driver {
	if cfg.WriteRetries < 1 {
		cfg.WriteRetries = 1
	}
	d := &Driver{
		hw:      hw,
		cfg:     cfg,
		logger:  logger,
		desired: domain.Solid(domain.ColorOff),
		dirty:   true,
		kick:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.connected.Store(true)
	return d
}

// SetSolid requests a steady color
func (d *Driver) SetSolid(c domain.Color) {
	d.request(domain.Solid(c))
}

// SetFlash requests a flashing color
func (d *Driver) SetFlash(c domain.Color) {
	d.request(domain.Flash(c))
}

// Current returns the most recently requested display
func (d *Driver) Current() domain.Display {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.desired
}

// Connected reports whether the last probe succeeded
func (d *Driver) Connected() bool {
	return d.connected.Load()
}

func (d *Driver) request(disp domain.Display) {
	d.mu.Lock()
	d.desired = disp
	d.dirty = true
	d.mu.Unlock()

	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Start runs the driver goroutine
func (d *Driver) Start(ctx context.Context) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.isRunning {
		return fmt.Errorf("light driver is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.isRunning = true

	go d.run(runCtx, d.done)

	d.logger.Info("Light driver started",
		zap.Int("write_retries", d.cfg.WriteRetries),
		zap.Duration("probe_interval", d.cfg.ProbeInterval))
	return nil
}

// Stop halts the driver goroutine and waits for it
func (d *Driver) Stop() error {
	d.runMu.Lock()
	if !d.isRunning {
		d.runMu.Unlock()
		return nil
	}
	d.isRunning = false
	cancel, done := d.cancel, d.done
	d.runMu.Unlock()

	cancel()
	<-done
	d.logger.Info("Light driver stopped")
	return nil
}

// Name returns the worker name for identification
func (d *Driver) Name() string {
	return "LightDriver"
}

func (d *Driver) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	var probe <-chan time.Time
	if d.cfg.ProbeInterval > 0 {
		ticker := time.NewTicker(d.cfg.ProbeInterval)
		defer ticker.Stop()
		probe = ticker.C
	}

	d.apply(ctx)
	for {
		select {
		case <-ctx.Done():
			// last request before Stop still reaches the device
			d.apply(context.Background())
			return
		case <-d.kick:
			d.apply(ctx)
		case <-probe:
			d.probe(ctx)
		}
	}
}

// apply writes the desired display if it changed since the last write
func (d *Driver) apply(ctx context.Context) {
	if !d.Connected() {
		return
	}

	d.mu.Lock()
	if !d.dirty {
		d.mu.Unlock()
		return
	}
	disp := d.desired
	d.dirty = false
	d.mu.Unlock()

	var err error
	for attempt := 1; attempt <= d.cfg.WriteRetries; attempt++ {
		if err = d.write(disp); err == nil {
			return
		}
		if attempt < d.cfg.WriteRetries {
			if !sleep(ctx, d.cfg.RetryBackoff) {
				return
			}
		}
	}

	d.logger.Warn("Light write failed",
		zap.Stringer("display", disp),
		zap.Int("attempts", d.cfg.WriteRetries),
		zap.Error(err))
}

func (d *Driver) write(disp domain.Display) error {
	if disp.Flashing {
		return d.hw.SetFlash(disp.Color)
	}
	return d.hw.SetSolid(disp.Color)
}

// probe checks connectivity and blocks in a reconnect loop while the device is gone
func (d *Driver) probe(ctx context.Context) {
	err := d.hw.Probe()
	if err == nil {
		return
	}

	d.logger.Warn("Light device disconnected", zap.Error(err))
	d.setConnected(false)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.ReconnectMin
	b.MaxInterval = d.cfg.ReconnectMax

	attempts := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		return struct{}{}, d.hw.Reopen()
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		// Only cancellation ends the loop.
		return
	}

	d.logger.Info("Light device reconnected", zap.Int("attempts", attempts))
	d.setConnected(true)

	d.mu.Lock()
	d.dirty = true
	d.mu.Unlock()
	d.apply(ctx)
}

func (d *Driver) setConnected(connected bool) {
	d.connected.Store(connected)
	if d.onConn != nil {
		d.onConn(connected)
	}
}

func sleep(ctx context.Context, dur time.Duration) bool {
	if dur <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
