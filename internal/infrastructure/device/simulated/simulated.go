// Package simulated provides an in-memory light and button.
package simulated

import (
	"errors"
	"sync"

	"github.com/garyjia/recordlight/internal/domain/light"
)

// ErrDisconnected is returned by every call while the device is unplugged
var ErrDisconnected = errors.New("simulated device disconnected")

// Device is an in-memory status light with a button. It is safe for concurrent use.
type Device struct {
	mu           sync.Mutex
	history      []light.Display
	pressed      bool
	disconnected bool
	failWrites   int
	reopens      int
	closed       bool
}

// New creates a connected device showing Off
func New() *Device {
	return &Device{}
}

// Name identifies the device in logs
func (d *Device) Name() string {
	return "simulated"
}

// SetSolid records a steady display
func (d *Device) SetSolid(c light.Color) error {
	return d.show(light.Solid(c))
}

// SetFlash records a flashing display
func (d *Device) SetFlash(c light.Color) error {
	return d.show(light.Flash(c))
}

func (d *Device) show(disp light.Display) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.disconnected {
		return ErrDisconnected
	}
	if d.failWrites > 0 {
		d.failWrites--
		return errors.New("simulated write failure")
	}
	d.history = append(d.history, disp)
	return nil
}

// ReadButton returns the raw level set by Press
func (d *Device) ReadButton() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.disconnected {
		return false, ErrDisconnected
	}
	return d.pressed, nil
}

// Probe fails while disconnected
func (d *Device) Probe() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.disconnected {
		return ErrDisconnected
	}
	return nil
}

// Reopen fails while disconnected
func (d *Device) Reopen() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.reopens++
	if d.disconnected {
		return ErrDisconnected
	}
	return nil
}

// Close marks the device closed
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Press sets the raw button level
func (d *Device) Press(pressed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pressed = pressed
}

// Unplug simulates a disconnect (true) or reconnect (false)
func (d *Device) Unplug(disconnected bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnected = disconnected
}

// FailWrites makes the next n light writes fail
func (d *Device) FailWrites(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failWrites = n
}

// History returns every display written so far
func (d *Device) History() []light.Display {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]light.Display(nil), d.history...)
}

// Current returns the last display written, Off if none
func (d *Device) Current() light.Display {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.history) == 0 {
		return light.Solid(light.ColorOff)
	}
	return d.history[len(d.history)-1]
}

// Reopens returns how many times Reopen was called
func (d *Device) Reopens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reopens
}

// Closed reports whether Close was called
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
