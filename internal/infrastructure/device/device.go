// Package device selects and acquires the status light hardware.
package device

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/garyjia/recordlight/internal/application/port"
	"github.com/garyjia/recordlight/internal/infrastructure/device/delcom"
	"github.com/garyjia/recordlight/internal/infrastructure/device/simulated"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	TypeDelcom    = "delcom"
	TypeSimulated = "simulated"
)

// Config selects the device and how long to wait for it at startup
type Config struct {
	Type           string
	VendorID       uint16
	ProductID      uint16
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
	AcquireTimeout time.Duration
}

// OpenFunc opens one device of the configured type
type OpenFunc func(cfg Config) (port.Device, error)

// Open opens the configured device once. An unknown type is an error.
func Open(cfg Config) (port.Device, error) {
	switch cfg.Type {
	case TypeDelcom:
		d, err := delcom.Open(cfg.VendorID, cfg.ProductID)
		if err != nil {
			return nil, err
		}
		return d, nil
	case TypeSimulated:
		return simulated.New(), nil
	}
	return nil, fmt.Errorf("unknown device type %q (want %s or %s)", cfg.Type, TypeDelcom, TypeSimulated)
}

// Acquire retries open with exponential backoff until it succeeds, the acquire
// timeout passes or ctx is done. An unknown device type fails immediately.
func Acquire(ctx context.Context, cfg Config, open OpenFunc, logger *zap.Logger) (port.Device, error) {
	if cfg.Type != TypeDelcom && cfg.Type != TypeSimulated {
		return nil, fmt.Errorf("unknown device type %q (want %s or %s)", cfg.Type, TypeDelcom, TypeSimulated)
	}
	if open == nil {
		open = Open
	}

	b := backoff.NewExponentialBackOff()
	if cfg.ReconnectMin > 0 {
		b.InitialInterval = cfg.ReconnectMin
	}
	if cfg.ReconnectMax > 0 {
		b.MaxInterval = cfg.ReconnectMax
	}

	attempt := 0
	dev, err := backoff.Retry(ctx, func() (port.Device, error) {
		attempt++
		return open(cfg)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(cfg.AcquireTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Light device not available, retrying",
				zap.String("type", cfg.Type),
				zap.Int("attempt", attempt),
				zap.Duration("next_attempt", next),
				zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("acquire %s light after %d attempts: %w", cfg.Type, attempt, err)
	}

	logger.Info("Light device acquired", zap.String("device", dev.Name()), zap.Int("attempts", attempt))
	return dev, nil
}

// Listing is what the devices command prints
type Listing struct {
	Lights      []delcom.Info
	SerialPorts []string
	Errors      []error
}

// List enumerates attached indicators and serial ports. Failures of one kind do
// not hide results of the other.
func List(vendorID, productID uint16) Listing {
	var out Listing

	lights, err := delcom.Enumerate(vendorID, productID)
	if err != nil {
		out.Errors = append(out.Errors, err)
	}
	out.Lights = lights

	ports, err := serial.GetPortsList()
	if err != nil {
		out.Errors = append(out.Errors, fmt.Errorf("list serial ports: %w", err))
	}
	out.SerialPorts = ports

	return out
}
