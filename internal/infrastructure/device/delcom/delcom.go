// Package delcom drives a Delcom USB visual indicator through HID feature reports.
package delcom

import (
	"errors"
	"fmt"
	"sync"

	"github.com/garyjia/recordlight/internal/domain/light"
	"github.com/sstallion/go-hid"
)

const (
	// DefaultVendorID and DefaultProductID identify the Delcom generation 2 indicator
	DefaultVendorID  uint16 = 0x0FC5
	DefaultProductID uint16 = 0xB080

	reportRead  = 100
	reportWrite = 101

	cmdWritePort1 = 2
	cmdFlash      = 20

	// hidapi returns the report id in byte 0
	port0Offset = 1

	pinGreen  byte = 0x01
	pinRed    byte = 0x02
	pinYellow byte = 0x04
	pinAll         = pinGreen | pinRed | pinYellow

	buttonBit byte = 0x01
)

// ErrClosed is returned after Close
var ErrClosed = errors.New("delcom device is closed")

// HIDDevice is the subset of *hid.Device used here
type HIDDevice interface {
	SendFeatureReport(p []byte) (int, error)
	GetFeatureReport(p []byte) (int, error)
	Close() error
}

// Opener opens the first HID device matching the ids
type Opener func(vendorID, productID uint16) (HIDDevice, error)

// OpenFirst opens a real HID device
func OpenFirst(vendorID, productID uint16) (HIDDevice, error) {
	d, err := hid.OpenFirst(vendorID, productID)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Device is a Delcom indicator with its push button. It is safe for concurrent use.
type Device struct {
	vendorID  uint16
	productID uint16
	open      Opener

	// exit releases hidapi when Open initialized it
	exit func() error

	mu     sync.Mutex
	dev    HIDDevice
	closed bool
}

// Open initializes hidapi and opens the first matching indicator
func Open(vendorID, productID uint16) (*Device, error) {
	if err := hid.Init(); err != nil {
		return nil, fmt.Errorf("hid init: %w", err)
	}
	d, err := OpenWith(vendorID, productID, OpenFirst)
	if err != nil {
		_ = hid.Exit()
		return nil, err
	}
	d.exit = hid.Exit
	return d, nil
}

// OpenWith opens the indicator through open, mainly for tests
func OpenWith(vendorID, productID uint16, open Opener) (*Device, error) {
	dev, err := open(vendorID, productID)
	if err != nil {
		return nil, fmt.Errorf("open delcom %04x:%04x: %w", vendorID, productID, err)
	}
	return &Device{
		vendorID:  vendorID,
		productID: productID,
		open:      open,
		dev:       dev,
	}, nil
}

// Name identifies the device in logs
func (d *Device) Name() string {
	return fmt.Sprintf("delcom %04x:%04x", d.vendorID, d.productID)
}

// SetSolid lights one color steadily and disables flashing
func (d *Device) SetSolid(c light.Color) error {
	mask, err := pinsFor(c)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.write(cmdFlash, pinAll, 0); err != nil {
		return err
	}
	return d.write(cmdWritePort1, ^mask, 0)
}

// SetFlash flashes one color. Off turns the light off.
func (d *Device) SetFlash(c light.Color) error {
	mask, err := pinsFor(c)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.write(cmdWritePort1, ^mask, 0); err != nil {
		return err
	}
	return d.write(cmdFlash, pinAll&^mask, mask)
}

// ReadButton returns true while the button is pressed. The input is active low.
func (d *Device) ReadButton() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, err := d.read()
	if err != nil {
		return false, err
	}
	return buf[port0Offset]&buttonBit == 0, nil
}

// Probe reads the port registers to check the device is still attached
func (d *Device) Probe() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.read()
	return err
}

// Reopen closes the current handle and opens the indicator again
func (d *Device) Reopen() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if d.dev != nil {
		_ = d.dev.Close()
		d.dev = nil
	}

	dev, err := d.open(d.vendorID, d.productID)
	if err != nil {
		return fmt.Errorf("reopen %s: %w", d.Name(), err)
	}
	d.dev = dev
	return nil
}

// Close turns the light off and releases the handle
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}

	var err error
	if d.dev != nil {
		_ = d.write(cmdFlash, pinAll, 0)
		_ = d.write(cmdWritePort1, 0xFF, 0)
		err = d.dev.Close()
		d.dev = nil
	}
	d.closed = true

	if d.exit != nil {
		if exitErr := d.exit(); err == nil {
			err = exitErr
		}
	}
	return err
}

func (d *Device) write(minor, lsb, msb byte) error {
	if d.closed {
		return ErrClosed
	}
	if d.dev == nil {
		return fmt.Errorf("%s is not open", d.Name())
	}

	report := []byte{reportWrite, minor, lsb, msb, 0, 0, 0, 0}
	if _, err := d.dev.SendFeatureReport(report); err != nil {
		return fmt.Errorf("write report %d: %w", minor, err)
	}
	return nil
}

func (d *Device) read() ([]byte, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if d.dev == nil {
		return nil, fmt.Errorf("%s is not open", d.Name())
	}

	buf := make([]byte, 9)
	buf[0] = reportRead
	n, err := d.dev.GetFeatureReport(buf)
	if err != nil {
		return nil, fmt.Errorf("read ports: %w", err)
	}
	if n <= port0Offset {
		return nil, fmt.Errorf("read ports: short report (%d bytes)", n)
	}
	return buf, nil
}

func pinsFor(c light.Color) (byte, error) {
	switch c {
	case light.ColorOff:
		return 0, nil
	case light.ColorGreen:
		return pinGreen, nil
	case light.ColorRed:
		return pinRed, nil
	case light.ColorYellow:
		return pinYellow, nil
	}
	return 0, fmt.Errorf("unsupported color %q", c)
}

// Info describes an attached indicator
type Info struct {
	Path    string
	Serial  string
	Product string
}

// Enumerate lists the attached indicators with the given ids
func Enumerate(vendorID, productID uint16) ([]Info, error) {
	if err := hid.Init(); err != nil {
		return nil, fmt.Errorf("hid init: %w", err)
	}
	defer hid.Exit()

	var found []Info
	err := hid.Enumerate(vendorID, productID, func(info *hid.DeviceInfo) error {
		found = append(found, Info{
			Path:    info.Path,
			Serial:  info.SerialNbr,
			Product: info.ProductStr,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate hid devices: %w", err)
	}
	return found, nil
}
