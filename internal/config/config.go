package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment override, e.g. RECORDLIGHT_DEVICE_TYPE
const EnvPrefix = "RECORDLIGHT"

// Device and recorder backends
const (
	DeviceDelcom       = "delcom"
	DeviceSimulated    = "simulated"
	RecorderHTTP       = "http"
	RecorderSimulated  = "simulated"
	defaultDotEnvFile  = ".env"
	defaultDelcomVID   = 0x0FC5
	defaultDelcomPID   = 0xB080
	defaultConsoleAddr = "127.0.0.1:3000"
)

// Config holds all application configuration
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Device   DeviceConfig   `mapstructure:"device" yaml:"device"`
	Button   ButtonConfig   `mapstructure:"button" yaml:"button"`
	Recorder RecorderConfig `mapstructure:"recorder" yaml:"recorder"`
	Alerts   AlertsConfig   `mapstructure:"alerts" yaml:"alerts"`
	Console  ConsoleConfig  `mapstructure:"console" yaml:"console"`
	Dispatch DispatchConfig `mapstructure:"dispatch" yaml:"dispatch"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
	Format     string `mapstructure:"format" yaml:"format"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	CommandRate  float64       `mapstructure:"command_rate" yaml:"command_rate"`
	CommandBurst int           `mapstructure:"command_burst" yaml:"command_burst"`
	Events       bool          `mapstructure:"events" yaml:"events"`
}

// DeviceConfig selects and tunes the light/button hardware
type DeviceConfig struct {
	Type           string        `mapstructure:"type" yaml:"type"`
	VendorID       uint16        `mapstructure:"vendor_id" yaml:"vendor_id"`
	ProductID      uint16        `mapstructure:"product_id" yaml:"product_id"`
	WriteRetries   int           `mapstructure:"write_retries" yaml:"write_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	ProbeInterval  time.Duration `mapstructure:"probe_interval" yaml:"probe_interval"`
	ReconnectMin   time.Duration `mapstructure:"reconnect_min" yaml:"reconnect_min"`
	ReconnectMax   time.Duration `mapstructure:"reconnect_max" yaml:"reconnect_max"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`
}

// ButtonConfig tunes button sampling
type ButtonConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	DebounceSamples int           `mapstructure:"debounce_samples" yaml:"debounce_samples"`
	HoldThreshold   time.Duration `mapstructure:"hold_threshold" yaml:"hold_threshold"`
}

// RecorderConfig selects the recorder backend and its polling
type RecorderConfig struct {
	Type         string        `mapstructure:"type" yaml:"type"`
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Lookahead    time.Duration `mapstructure:"lookahead" yaml:"lookahead"`
	CAFile       string        `mapstructure:"ca_file" yaml:"ca_file"`
	BackoffMax   time.Duration `mapstructure:"backoff_max" yaml:"backoff_max"`
}

// AlertsConfig holds visual alert timings
type AlertsConfig struct {
	FailureDuration time.Duration `mapstructure:"failure_duration" yaml:"failure_duration"`
	RejectDuration  time.Duration `mapstructure:"reject_duration" yaml:"reject_duration"`
}

// ConsoleConfig groups the line-protocol listeners
type ConsoleConfig struct {
	TCP    TCPConsoleConfig    `mapstructure:"tcp" yaml:"tcp"`
	Serial SerialConsoleConfig `mapstructure:"serial" yaml:"serial"`
}

// TCPConsoleConfig configures the network console
type TCPConsoleConfig struct {
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled"`
	Address      string  `mapstructure:"address" yaml:"address"`
	TLSCert      string  `mapstructure:"tls_cert" yaml:"tls_cert"`
	TLSKey       string  `mapstructure:"tls_key" yaml:"tls_key"`
	ClientCA     string  `mapstructure:"client_ca" yaml:"client_ca"`
	CommandRate  float64 `mapstructure:"command_rate" yaml:"command_rate"`
	CommandBurst int     `mapstructure:"command_burst" yaml:"command_burst"`
}

// SerialConsoleConfig configures the serial console
type SerialConsoleConfig struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	Port           string        `mapstructure:"port" yaml:"port"`
	BaudRate       int           `mapstructure:"baud_rate" yaml:"baud_rate"`
	ReopenInterval time.Duration `mapstructure:"reopen_interval" yaml:"reopen_interval"`
}

// DispatchConfig tunes the dispatch loop callers
type DispatchConfig struct {
	ReplyTimeout time.Duration `mapstructure:"reply_timeout" yaml:"reply_timeout"`
}

// Load loads configuration from an optional YAML file, an optional .env file
// and RECORDLIGHT_* environment variables, in increasing priority.
func Load(configPath string) (*Config, error) {
	return LoadWithEnvFile(configPath, defaultDotEnvFile)
}

// LoadWithEnvFile is Load with an explicit dotenv path; an empty path skips it
func LoadWithEnvFile(configPath, envFile string) (*Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports variables from envFile without overriding ones already set
func loadDotEnv(envFile string) error {
	if envFile == "" {
		return nil
	}
	if _, err := os.Stat(envFile); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "console")

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.command_rate", 5.0)
	v.SetDefault("server.command_burst", 10)
	v.SetDefault("server.events", true)

	// Device defaults
	v.SetDefault("device.type", DeviceDelcom)
	v.SetDefault("device.vendor_id", defaultDelcomVID)
	v.SetDefault("device.product_id", defaultDelcomPID)
	v.SetDefault("device.write_retries", 3)
	v.SetDefault("device.retry_backoff", 50*time.Millisecond)
	v.SetDefault("device.probe_interval", 2*time.Second)
	v.SetDefault("device.reconnect_min", time.Second)
	v.SetDefault("device.reconnect_max", 10*time.Second)
	v.SetDefault("device.acquire_timeout", 30*time.Second)

	// Button defaults
	v.SetDefault("button.enabled", true)
	v.SetDefault("button.poll_interval", 100*time.Millisecond)
	v.SetDefault("button.debounce_samples", 3)
	v.SetDefault("button.hold_threshold", 3*time.Second)

	// Recorder defaults
	v.SetDefault("recorder.type", RecorderHTTP)
	v.SetDefault("recorder.base_url", "")
	v.SetDefault("recorder.timeout", 5*time.Second)
	v.SetDefault("recorder.poll_interval", time.Second)
	v.SetDefault("recorder.lookahead", 60*time.Minute)
	v.SetDefault("recorder.ca_file", "")
	v.SetDefault("recorder.backoff_max", 10*time.Second)

	// Alert defaults
	v.SetDefault("alerts.failure_duration", 2*time.Second)
	v.SetDefault("alerts.reject_duration", 500*time.Millisecond)

	// Console defaults
	v.SetDefault("console.tcp.enabled", false)
	v.SetDefault("console.tcp.address", defaultConsoleAddr)
	v.SetDefault("console.tcp.tls_cert", "")
	v.SetDefault("console.tcp.tls_key", "")
	v.SetDefault("console.tcp.client_ca", "")
	v.SetDefault("console.tcp.command_rate", 5.0)
	v.SetDefault("console.tcp.command_burst", 10)
	v.SetDefault("console.serial.enabled", false)
	v.SetDefault("console.serial.port", "")
	v.SetDefault("console.serial.baud_rate", 9600)
	v.SetDefault("console.serial.reopen_interval", 5*time.Second)

	// Dispatch defaults
	v.SetDefault("dispatch.reply_timeout", 15*time.Second)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Device.Type {
	case DeviceDelcom, DeviceSimulated:
	default:
		return fmt.Errorf("device.type %q is not supported (want %s or %s)", c.Device.Type, DeviceDelcom, DeviceSimulated)
	}
	switch c.Recorder.Type {
	case RecorderHTTP:
		if c.Recorder.BaseURL == "" {
			return fmt.Errorf("recorder.base_url is required for the http recorder")
		}
	case RecorderSimulated:
	default:
		return fmt.Errorf("recorder.type %q is not supported (want %s or %s)", c.Recorder.Type, RecorderHTTP, RecorderSimulated)
	}

	positive := []struct {
		key string
		val time.Duration
	}{
		{"device.probe_interval", c.Device.ProbeInterval},
		{"device.reconnect_min", c.Device.ReconnectMin},
		{"device.reconnect_max", c.Device.ReconnectMax},
		{"device.acquire_timeout", c.Device.AcquireTimeout},
		{"button.poll_interval", c.Button.PollInterval},
		{"button.hold_threshold", c.Button.HoldThreshold},
		{"recorder.timeout", c.Recorder.Timeout},
		{"recorder.poll_interval", c.Recorder.PollInterval},
		{"recorder.lookahead", c.Recorder.Lookahead},
		{"recorder.backoff_max", c.Recorder.BackoffMax},
		{"alerts.failure_duration", c.Alerts.FailureDuration},
		{"alerts.reject_duration", c.Alerts.RejectDuration},
		{"dispatch.reply_timeout", c.Dispatch.ReplyTimeout},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return fmt.Errorf("%s must be positive", p.key)
		}
	}

	if c.Device.ReconnectMax < c.Device.ReconnectMin {
		return fmt.Errorf("device.reconnect_max must not be less than device.reconnect_min")
	}
	if c.Device.WriteRetries < 1 {
		return fmt.Errorf("device.write_retries must be at least 1")
	}
	if c.Button.DebounceSamples < 1 {
		return fmt.Errorf("button.debounce_samples must be at least 1")
	}

	if c.Server.Enabled && (c.Server.Port < 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	tcp := c.Console.TCP
	if tcp.Enabled && tcp.Address == "" {
		return fmt.Errorf("console.tcp.address is required when the tcp console is enabled")
	}
	if (tcp.TLSCert == "") != (tcp.TLSKey == "") {
		return fmt.Errorf("console.tcp.tls_cert and console.tcp.tls_key must be set together")
	}
	if tcp.ClientCA != "" && tcp.TLSCert == "" {
		return fmt.Errorf("console.tcp.client_ca requires console.tcp.tls_cert")
	}

	serial := c.Console.Serial
	if serial.Enabled {
		if serial.Port == "" {
			return fmt.Errorf("console.serial.port is required when the serial console is enabled")
		}
		if serial.BaudRate <= 0 {
			return fmt.Errorf("console.serial.baud_rate must be positive")
		}
		if serial.ReopenInterval <= 0 {
			return fmt.Errorf("console.serial.reopen_interval must be positive")
		}
	}

	return nil
}
