package delcom

import (
	"errors"
	"testing"

	"github.com/garyjia/recordlight/internal/domain/light"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHID records feature reports and serves a scripted port0 value
type fakeHID struct {
	sent    [][]byte
	port0   byte
	readErr error
	closed  bool
}

func (f *fakeHID) SendFeatureReport(p []byte) (int, error) {
	f.sent = append(f.sent, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeHID) GetFeatureReport(p []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	p[port0Offset] = f.port0
	return 8, nil
}

func (f *fakeHID) Close() error {
	f.closed = true
	return nil
}

func openFake(t *testing.T) (*Device, *fakeHID) {
	t.Helper()
	fake := &fakeHID{port0: 0xFF}
	d, err := OpenWith(DefaultVendorID, DefaultProductID, func(vid, pid uint16) (HIDDevice, error) {
		return fake, nil
	})
	require.NoError(t, err)
	return d, fake
}

func TestDevice_SetSolid(t *testing.T) {
	d, fake := openFake(t)

	require.NoError(t, d.SetSolid(light.ColorGreen))

	require.Len(t, fake.sent, 2)
	assert.Equal(t, []byte{reportWrite, cmdFlash, pinAll, 0, 0, 0, 0, 0}, fake.sent[0])
	assert.Equal(t, []byte{reportWrite, cmdWritePort1, 0xFE, 0, 0, 0, 0, 0}, fake.sent[1])
}

func TestDevice_SetFlash(t *testing.T) {
	d, fake := openFake(t)

	require.NoError(t, d.SetFlash(light.ColorRed))

	require.Len(t, fake.sent, 2)
	assert.Equal(t, byte(0xFD), fake.sent[0][2])
	assert.Equal(t, []byte{reportWrite, cmdFlash, pinGreen | pinYellow, pinRed, 0, 0, 0, 0}, fake.sent[1])
}

func TestDevice_Off(t *testing.T) {
	d, fake := openFake(t)

	require.NoError(t, d.SetSolid(light.ColorOff))
	assert.Equal(t, byte(0xFF), fake.sent[1][2])

	assert.Error(t, d.SetSolid(light.Color("Blue")))
}

func TestDevice_ReadButtonActiveLow(t *testing.T) {
	d, fake := openFake(t)

	pressed, err := d.ReadButton()
	require.NoError(t, err)
	assert.False(t, pressed)

	fake.port0 = 0xFE
	pressed, err = d.ReadButton()
	require.NoError(t, err)
	assert.True(t, pressed)
}

func TestDevice_ProbeAndReopen(t *testing.T) {
	first := &fakeHID{readErr: errors.New("no such device")}
	second := &fakeHID{port0: 0xFF}
	opened := 0
	d, err := OpenWith(DefaultVendorID, DefaultProductID, func(vid, pid uint16) (HIDDevice, error) {
		opened++
		if opened == 1 {
			return first, nil
		}
		return second, nil
	})
	require.NoError(t, err)

	assert.Error(t, d.Probe())
	require.NoError(t, d.Reopen())
	assert.True(t, first.closed)
	assert.NoError(t, d.Probe())
}

func TestDevice_OpenFailure(t *testing.T) {
	_, err := OpenWith(1, 2, func(vid, pid uint16) (HIDDevice, error) {
		return nil, errors.New("not found")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001:0002")
}

func TestDevice_Close(t *testing.T) {
	d, fake := openFake(t)

	require.NoError(t, d.Close())
	assert.True(t, fake.closed)
	require.Len(t, fake.sent, 2, "close turns the light off")
	assert.Equal(t, []byte{reportWrite, cmdWritePort1, 0xFF, 0, 0, 0, 0, 0}, fake.sent[1])
	assert.NoError(t, d.Close())

	assert.ErrorIs(t, d.SetSolid(light.ColorRed), ErrClosed)
	assert.ErrorIs(t, d.Reopen(), ErrClosed)
	_, err := d.ReadButton()
	assert.ErrorIs(t, err, ErrClosed)
}
