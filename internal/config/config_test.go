package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Type:           DeviceSimulated,
			WriteRetries:   3,
			RetryBackoff:   50 * time.Millisecond,
			ProbeInterval:  2 * time.Second,
			ReconnectMin:   time.Second,
			ReconnectMax:   10 * time.Second,
			AcquireTimeout: 30 * time.Second,
		},
		Button: ButtonConfig{
			PollInterval:    100 * time.Millisecond,
			DebounceSamples: 3,
			HoldThreshold:   3 * time.Second,
		},
		Recorder: RecorderConfig{
			Type:         RecorderSimulated,
			Timeout:      5 * time.Second,
			PollInterval: time.Second,
			Lookahead:    time.Hour,
			BackoffMax:   10 * time.Second,
		},
		Alerts:   AlertsConfig{FailureDuration: 2 * time.Second, RejectDuration: 500 * time.Millisecond},
		Server:   ServerConfig{Enabled: true, Port: 8090},
		Console:  ConsoleConfig{TCP: TCPConsoleConfig{Address: "127.0.0.1:3000"}},
		Dispatch: DispatchConfig{ReplyTimeout: 15 * time.Second},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RECORDLIGHT_RECORDER_TYPE", "simulated")

	cfg, err := LoadWithEnvFile("", "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 5.0, cfg.Server.CommandRate)
	assert.Equal(t, 10, cfg.Server.CommandBurst)

	assert.Equal(t, DeviceDelcom, cfg.Device.Type)
	assert.Equal(t, uint16(0x0FC5), cfg.Device.VendorID)
	assert.Equal(t, uint16(0xB080), cfg.Device.ProductID)
	assert.Equal(t, 3, cfg.Device.WriteRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Device.RetryBackoff)
	assert.Equal(t, 2*time.Second, cfg.Device.ProbeInterval)
	assert.Equal(t, 30*time.Second, cfg.Device.AcquireTimeout)

	assert.True(t, cfg.Button.Enabled)
	assert.Equal(t, 100*time.Millisecond, cfg.Button.PollInterval)
	assert.Equal(t, 3, cfg.Button.DebounceSamples)
	assert.Equal(t, 3*time.Second, cfg.Button.HoldThreshold)

	assert.Equal(t, RecorderSimulated, cfg.Recorder.Type)
	assert.Equal(t, 60*time.Minute, cfg.Recorder.Lookahead)
	assert.Equal(t, time.Second, cfg.Recorder.PollInterval)

	assert.Equal(t, 2*time.Second, cfg.Alerts.FailureDuration)
	assert.Equal(t, 500*time.Millisecond, cfg.Alerts.RejectDuration)

	assert.False(t, cfg.Console.TCP.Enabled)
	assert.Equal(t, "127.0.0.1:3000", cfg.Console.TCP.Address)
	assert.False(t, cfg.Console.Serial.Enabled)
	assert.Equal(t, 9600, cfg.Console.Serial.BaudRate)

	assert.Equal(t, 15*time.Second, cfg.Dispatch.ReplyTimeout)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeFile(t, "config.yaml", `
logger:
  level: debug
device:
  type: simulated
  vendor_id: 0x1234
recorder:
  type: http
  base_url: https://recorder.local:8443
  poll_interval: 250ms
console:
  tcp:
    enabled: true
    address: 0.0.0.0:3000
`)
	t.Setenv("RECORDLIGHT_RECORDER_LOOKAHEAD", "30m")
	t.Setenv("RECORDLIGHT_SERVER_PORT", "9100")

	cfg, err := LoadWithEnvFile(path, "")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, DeviceSimulated, cfg.Device.Type)
	assert.Equal(t, uint16(0x1234), cfg.Device.VendorID)
	assert.Equal(t, RecorderHTTP, cfg.Recorder.Type)
	assert.Equal(t, "https://recorder.local:8443", cfg.Recorder.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Recorder.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.Recorder.Lookahead)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.True(t, cfg.Console.TCP.Enabled)
	assert.Equal(t, "0.0.0.0:3000", cfg.Console.TCP.Address)
}

func TestLoad_DotEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "RECORDLIGHT_RECORDER_TYPE=simulated\nRECORDLIGHT_DEVICE_TYPE=simulated\n")
	t.Setenv("RECORDLIGHT_DEVICE_TYPE", "delcom")
	t.Cleanup(func() { os.Unsetenv("RECORDLIGHT_RECORDER_TYPE") })

	cfg, err := LoadWithEnvFile("", envFile)
	require.NoError(t, err)

	assert.Equal(t, RecorderSimulated, cfg.Recorder.Type)
	// variables already in the environment win over the file
	assert.Equal(t, DeviceDelcom, cfg.Device.Type)
}

func TestLoad_MissingDotEnvIgnored(t *testing.T) {
	t.Setenv("RECORDLIGHT_RECORDER_TYPE", "simulated")

	_, err := LoadWithEnvFile("", filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := LoadWithEnvFile(filepath.Join(t.TempDir(), "nope.yaml"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", "device:\n  type: blinkstick\n")

	_, err := LoadWithEnvFile(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device.type")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown device", func(c *Config) { c.Device.Type = "usb" }, "device.type"},
		{"unknown recorder", func(c *Config) { c.Recorder.Type = "obs" }, "recorder.type"},
		{"http needs base url", func(c *Config) { c.Recorder.Type = RecorderHTTP }, "recorder.base_url"},
		{"zero poll interval", func(c *Config) { c.Recorder.PollInterval = 0 }, "recorder.poll_interval"},
		{"negative probe interval", func(c *Config) { c.Device.ProbeInterval = -time.Second }, "device.probe_interval"},
		{"debounce samples", func(c *Config) { c.Button.DebounceSamples = 0 }, "button.debounce_samples"},
		{"write retries", func(c *Config) { c.Device.WriteRetries = 0 }, "device.write_retries"},
		{"reconnect bounds", func(c *Config) { c.Device.ReconnectMax = c.Device.ReconnectMin / 2 }, "device.reconnect_max"},
		{"cert without key", func(c *Config) { c.Console.TCP.TLSCert = "cert.pem" }, "tls_key"},
		{"client ca without cert", func(c *Config) { c.Console.TCP.ClientCA = "ca.pem" }, "client_ca"},
		{"serial without port", func(c *Config) {
			c.Console.Serial.Enabled = true
			c.Console.Serial.BaudRate = 9600
			c.Console.Serial.ReopenInterval = time.Second
		}, "console.serial.port"},
		{"tcp without address", func(c *Config) {
			c.Console.TCP.Enabled = true
			c.Console.TCP.Address = ""
		}, "console.tcp.address"},
		{"server port range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
