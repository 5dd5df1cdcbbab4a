// Package container provides dependency wiring and lifecycle management
// for the recording status light.
package container

import (
	"github.com/garyjia/recordlight/internal/application/executor"
	"github.com/garyjia/recordlight/internal/config"
	"github.com/garyjia/recordlight/internal/infrastructure/device"
	"github.com/garyjia/recordlight/internal/infrastructure/light"
	"github.com/garyjia/recordlight/internal/infrastructure/recorder/httpapi"
	"github.com/garyjia/recordlight/internal/infrastructure/worker"
	"github.com/garyjia/recordlight/internal/interfaces/console"
	apihttp "github.com/garyjia/recordlight/internal/interfaces/http"
)

// The functions below translate the file/env configuration into the
// per-component configs each package declares.

func deviceConfig(c *config.Config) device.Config {
	return device.Config{
		Type:           c.Device.Type,
		VendorID:       c.Device.VendorID,
		ProductID:      c.Device.ProductID,
		ReconnectMin:   c.Device.ReconnectMin,
		ReconnectMax:   c.Device.ReconnectMax,
		AcquireTimeout: c.Device.AcquireTimeout,
	}
}

func lightConfig(c *config.Config) light.Config {
	return light.Config{
		WriteRetries:  c.Device.WriteRetries,
		RetryBackoff:  c.Device.RetryBackoff,
		ProbeInterval: c.Device.ProbeInterval,
		ReconnectMin:  c.Device.ReconnectMin,
		ReconnectMax:  c.Device.ReconnectMax,
	}
}

func recorderClientConfig(c *config.Config) httpapi.Config {
	return httpapi.Config{
		BaseURL: c.Recorder.BaseURL,
		Timeout: c.Recorder.Timeout,
		CAFile:  c.Recorder.CAFile,
	}
}

func executorConfig(c *config.Config) executor.Config {
	return executor.Config{
		FailureAlert: c.Alerts.FailureDuration,
		RejectFlash:  c.Alerts.RejectDuration,
	}
}

func recorderPollerConfig(c *config.Config) worker.RecorderPollerConfig {
	return worker.RecorderPollerConfig{
		PollInterval:   c.Recorder.PollInterval,
		Lookahead:      c.Recorder.Lookahead,
		BackoffMax:     c.Recorder.BackoffMax,
		RequestTimeout: c.Recorder.Timeout,
	}
}

func buttonPollerConfig(c *config.Config) worker.ButtonPollerConfig {
	return worker.ButtonPollerConfig{
		PollInterval:    c.Button.PollInterval,
		DebounceSamples: c.Button.DebounceSamples,
		HoldThreshold:   c.Button.HoldThreshold,
	}
}

func tcpConsoleConfig(c *config.Config) console.TCPConfig {
	return console.TCPConfig{
		Address:  c.Console.TCP.Address,
		TLSCert:  c.Console.TCP.TLSCert,
		TLSKey:   c.Console.TCP.TLSKey,
		ClientCA: c.Console.TCP.ClientCA,
	}
}

func serialConsoleConfig(c *config.Config) console.SerialConfig {
	return console.SerialConfig{
		Port:           c.Console.Serial.Port,
		BaudRate:       c.Console.Serial.BaudRate,
		ReopenInterval: c.Console.Serial.ReopenInterval,
	}
}

func serverConfig(c *config.Config) apihttp.ServerConfig {
	return apihttp.ServerConfig{
		Host:         c.Server.Host,
		Port:         c.Server.Port,
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
		CommandRate:  c.Server.CommandRate,
		CommandBurst: c.Server.CommandBurst,
	}
}
