package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/recordlight/internal/application/dispatcher"
	"github.com/garyjia/recordlight/internal/application/executor"
	"github.com/garyjia/recordlight/internal/application/port"
	"github.com/garyjia/recordlight/internal/application/service"
	"github.com/garyjia/recordlight/internal/application/workflow"
	"github.com/garyjia/recordlight/internal/config"
	"github.com/garyjia/recordlight/internal/domain/event"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
	"github.com/garyjia/recordlight/internal/infrastructure/device"
	"github.com/garyjia/recordlight/internal/infrastructure/light"
	"github.com/garyjia/recordlight/internal/infrastructure/metrics"
	"github.com/garyjia/recordlight/internal/infrastructure/recorder/httpapi"
	"github.com/garyjia/recordlight/internal/infrastructure/recorder/simulated"
	"github.com/garyjia/recordlight/internal/infrastructure/worker"
	"github.com/garyjia/recordlight/internal/interfaces/console"
	"github.com/garyjia/recordlight/internal/interfaces/websocket"
	"github.com/garyjia/recordlight/pkg/utils"
)

// HardwareBundle holds the acquired device and the light driver on top of it.
type HardwareBundle struct {
	Device port.Device
	Light  *light.Driver
}

// CoreBundle holds the state machine pipeline.
type CoreBundle struct {
	Table      *statemachine.Table
	Engine     workflow.Engine
	Dispatcher dispatcher.Dispatcher
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Commands service.CommandService
	Status   service.StatusService
}

// ProvideHardware acquires the light device, failing once acquire_timeout passes,
// and wraps it in a light driver. The driver is not started.
func ProvideHardware(ctx context.Context, cfg *config.Config, open device.OpenFunc, logger *zap.Logger) (*HardwareBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	dev, err := device.Acquire(ctx, deviceConfig(cfg), open, logger)
	if err != nil {
		return nil, err
	}

	driver := light.NewDriver(dev, lightConfig(cfg), logger,
		light.WithConnectionHook(metrics.SetLightConnected))

	return &HardwareBundle{Device: dev, Light: driver}, nil
}

// ProvideRecorder creates the configured recorder backend.
func ProvideRecorder(cfg *config.Config, logger *zap.Logger) (port.Recorder, error) {
	switch cfg.Recorder.Type {
	case config.RecorderHTTP:
		client, err := httpapi.New(recorderClientConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("create recorder client: %w", err)
		}
		logger.Info("Using HTTP recorder", zap.String("base_url", cfg.Recorder.BaseURL))
		return client, nil
	case config.RecorderSimulated:
		logger.Info("Using simulated recorder")
		return simulated.New(), nil
	}
	return nil, fmt.Errorf("unknown recorder type %q", cfg.Recorder.Type)
}

// CoreDeps holds dependencies required for creating the state machine pipeline.
type CoreDeps struct {
	Config   *config.Config
	Light    port.Light
	Recorder port.Recorder
	Logger   *zap.Logger
}

// ProvideCore builds and checks the transition table, wires the executor into
// an engine and puts the engine behind the dispatch loop.
func ProvideCore(deps *CoreDeps) (*CoreBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("core dependencies are required")
	}
	if deps.Light == nil {
		return nil, fmt.Errorf("light is required")
	}
	if deps.Recorder == nil {
		return nil, fmt.Errorf("recorder is required")
	}

	table, err := statemachine.DefaultTable()
	if err != nil {
		return nil, fmt.Errorf("transition table: %w", err)
	}

	exec := executor.New(deps.Light, deps.Recorder, executorConfig(deps.Config), deps.Logger)

	engine, err := workflow.BuildEngine(table, exec, deps.Logger)
	if err != nil {
		return nil, err
	}
	engine.Subscribe("metrics", metrics.ObserveResult)

	disp := dispatcher.NewDispatcher(engine.HandleEvent,
		dispatcher.WithDropFunc(engine.DropEvent),
		dispatcher.WithLogger(utils.NewKVLogger(deps.Logger)),
	)

	return &CoreBundle{Table: table, Engine: engine, Dispatcher: disp}, nil
}

// ProvideServices creates the command and status services.
func ProvideServices(cfg *config.Config, core *CoreBundle, l port.Light, rec port.Recorder, logger *zap.Logger) *ServiceBundle {
	return &ServiceBundle{
		Commands: service.NewCommandService(core.Dispatcher, cfg.Dispatch.ReplyTimeout, utils.NewKVLogger(logger)),
		Status: service.NewStatusService(core.Engine, l, rec,
			service.WithQueueDepth(core.Dispatcher.Len)),
	}
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Config       *config.Config
	Hardware     *HardwareBundle
	Recorder     port.Recorder
	Core         *CoreBundle
	Services     *ServiceBundle
	Hub          *websocket.Hub
	SerialOpener console.SerialOpener
	Logger       *zap.Logger
}

// ProvideWorkers creates and registers all background workers.
// Returns *worker.WorkerManager with all workers registered but not started.
// Registration order is start order; StopAll runs it backwards.
// The light driver is not registered: the container stops it after the
// dispatch loop so the last display an action requests is still written.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, *console.TCPListener, error) {
	if deps == nil {
		return nil, nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Hardware == nil || deps.Core == nil || deps.Services == nil {
		return nil, nil, fmt.Errorf("hardware, core and services are required")
	}
	cfg := deps.Config

	manager := worker.NewWorkerManager(deps.Logger)

	manager.Register(worker.NewQueueGauge(cfg.Recorder.PollInterval, deps.Core.Dispatcher.Len, metrics.SetQueueDepth))

	if deps.Hub != nil {
		manager.Register(deps.Hub)
	}

	manager.Register(worker.NewRecorderPoller(recorderPollerConfig(cfg), deps.Recorder, deps.Core.Dispatcher, deps.Logger,
		worker.WithPollErrorHook(metrics.IncRecorderPollError)))

	if cfg.Button.Enabled {
		manager.Register(worker.NewButtonPoller(buttonPollerConfig(cfg), deps.Hardware.Device, deps.Core.Dispatcher, deps.Logger))
	}

	var tcp *console.TCPListener
	if cfg.Console.TCP.Enabled {
		proto := console.NewProtocol(console.ProtocolConfig{
			Dialect:      console.DialectTCP,
			Source:       event.SourceConsoleTCP,
			CommandRate:  cfg.Console.TCP.CommandRate,
			CommandBurst: cfg.Console.TCP.CommandBurst,
		}, deps.Services.Commands, deps.Services.Status, deps.Logger)
		tcp = console.NewTCPListener(tcpConsoleConfig(cfg), proto, deps.Logger)
		manager.Register(tcp)
	}

	if cfg.Console.Serial.Enabled {
		proto := console.NewProtocol(console.ProtocolConfig{
			Dialect: console.DialectSerial,
			Source:  event.SourceConsoleSerial,
		}, deps.Services.Commands, deps.Services.Status, deps.Logger)
		open := deps.SerialOpener
		if open == nil {
			open = console.OpenSerial
		}
		manager.Register(console.NewSerialListener(serialConsoleConfig(cfg), proto, open, deps.Logger))
	}

	return manager, tcp, nil
}
