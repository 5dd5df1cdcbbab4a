package port

import "github.com/garyjia/recordlight/internal/domain/light"

// LightDevice is the raw light hardware. Calls may block briefly and may fail.
type LightDevice interface {
	SetSolid(c light.Color) error
	SetFlash(c light.Color) error
}

// ButtonDevice reports the raw, undebounced button level
type ButtonDevice interface {
	ReadButton() (pressed bool, err error)
}

// Device is a status light with an optional button
type Device interface {
	LightDevice
	ButtonDevice

	// Name identifies the device in logs
	Name() string

	// Probe checks that the device is still attached
	Probe() error

	// Reopen releases and reacquires the underlying handle
	Reopen() error

	Close() error
}

// Light is the non-blocking light surface used by the action executor
type Light interface {
	SetSolid(c light.Color)
	SetFlash(c light.Color)
	Current() light.Display
	Connected() bool
}

// Show applies a display through l
func Show(l Light, d light.Display) {
	if d.Flashing {
		l.SetFlash(d.Color)
		return
	}
	l.SetSolid(d.Color)
}
