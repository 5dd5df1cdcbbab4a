package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/recordlight/internal/application/port"
	"github.com/garyjia/recordlight/internal/infrastructure/device/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpen_Simulated(t *testing.T) {
	dev, err := Open(Config{Type: TypeSimulated})
	require.NoError(t, err)
	assert.Equal(t, "simulated", dev.Name())
}

func TestOpen_UnknownType(t *testing.T) {
	_, err := Open(Config{Type: "blinkstick"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blinkstick")
}

func TestAcquire_UnknownTypeFailsFast(t *testing.T) {
	calls := 0
	_, err := Acquire(context.Background(), Config{Type: "lamp", AcquireTimeout: time.Minute}, func(Config) (port.Device, error) {
		calls++
		return simulated.New(), nil
	}, zap.NewNop())

	require.Error(t, err)
	assert.Zero(t, calls)
}

func TestAcquire_RetriesUntilAvailable(t *testing.T) {
	calls := 0
	dev, err := Acquire(context.Background(), Config{
		Type:           TypeDelcom,
		ReconnectMin:   time.Millisecond,
		ReconnectMax:   2 * time.Millisecond,
		AcquireTimeout: time.Second,
	}, func(Config) (port.Device, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("not plugged in")
		}
		return simulated.New(), nil
	}, zap.NewNop())

	require.NoError(t, err)
	assert.NotNil(t, dev)
	assert.Equal(t, 3, calls)
}

func TestAcquire_GivesUpAfterTimeout(t *testing.T) {
	_, err := Acquire(context.Background(), Config{
		Type:           TypeDelcom,
		ReconnectMin:   time.Millisecond,
		ReconnectMax:   5 * time.Millisecond,
		AcquireTimeout: 30 * time.Millisecond,
	}, func(Config) (port.Device, error) {
		return nil, errors.New("not plugged in")
	}, zap.NewNop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not plugged in")
}
