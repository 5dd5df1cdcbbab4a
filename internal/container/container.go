package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/recordlight/internal/application/port"
	"github.com/garyjia/recordlight/internal/config"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
	"github.com/garyjia/recordlight/internal/infrastructure/device"
	"github.com/garyjia/recordlight/internal/infrastructure/metrics"
	"github.com/garyjia/recordlight/internal/infrastructure/worker"
	"github.com/garyjia/recordlight/internal/interfaces/console"
	apihttp "github.com/garyjia/recordlight/internal/interfaces/http"
	"github.com/garyjia/recordlight/internal/interfaces/websocket"
	"github.com/garyjia/recordlight/pkg/utils"
)

// Version is reported by /health
var Version = "dev"

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	openDevice   device.OpenFunc
	recorder     port.Recorder
	serialOpener console.SerialOpener

	// Infrastructure
	hardware *HardwareBundle

	// Application
	core     *CoreBundle
	services *ServiceBundle

	// Interfaces
	hub    *websocket.Hub
	server *apihttp.Server
	tcp    *console.TCPListener

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu          sync.Mutex
	cancel      context.CancelFunc
	group       *errgroup.Group
	loopRunning atomic.Bool
	ready       atomic.Bool
	closed      atomic.Bool
}

// Option customizes a Container, mainly to inject fakes in tests
type Option func(*Container)

// WithDeviceOpener replaces the device opener used at startup
func WithDeviceOpener(open device.OpenFunc) Option {
	return func(c *Container) {
		c.openDevice = open
	}
}

// WithRecorder uses rec instead of building one from configuration
func WithRecorder(rec port.Recorder) Option {
	return func(c *Container) {
		c.recorder = rec
	}
}

// WithSerialOpener replaces the serial port opener of the serial console
func WithSerialOpener(open console.SerialOpener) Option {
	return func(c *Container) {
		c.serialOpener = open
	}
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	State      statemachine.State         `json:"state"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config:     cfg,
		logger:     logger,
		openDevice: device.Open,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Light device (fails once device.acquire_timeout passes) and light driver
// 2. Recorder backend
// 3. Transition table, executor, engine and dispatch loop
// 4. Application services
// 5. Workers, console listeners, event hub and HTTP server
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.logger.Info("Starting container initialization")

	if err := c.start(runCtx); err != nil {
		cancel()
		c.teardown()
		return err
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

func (c *Container) start(ctx context.Context) error {
	// Step 1: light hardware
	hw, err := ProvideHardware(ctx, c.config, c.openDevice, c.logger)
	if err != nil {
		return fmt.Errorf("failed to acquire light device: %w", err)
	}
	c.hardware = hw
	metrics.SetLightConnected(true)
	// detached from run cancellation; teardown stops it once the loop has exited
	if err := hw.Light.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to start light driver: %w", err)
	}
	c.logger.Info("Light device initialized", zap.String("device", hw.Device.Name()))

	// Step 2: recorder
	if c.recorder == nil {
		rec, err := ProvideRecorder(c.config, c.logger)
		if err != nil {
			return err
		}
		c.recorder = rec
	}

	// Step 3: state machine pipeline
	core, err := ProvideCore(&CoreDeps{
		Config:   c.config,
		Light:    hw.Light,
		Recorder: c.recorder,
		Logger:   c.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize state machine: %w", err)
	}
	c.core = core
	c.logger.Info("State machine initialized", zap.Int("transitions", core.Table.Len()))

	// Step 4: services
	c.services = ProvideServices(c.config, core, hw.Light, c.recorder, c.logger)

	// Step 5: workers and listeners
	if c.config.Server.Enabled && c.config.Server.Events {
		c.hub = websocket.NewHub(websocket.DefaultHubConfig(), c.logger)
		core.Engine.Subscribe("websocket", c.hub.Observe)
	}

	workers, tcp, err := ProvideWorkers(&WorkerDeps{
		Config:       c.config,
		Hardware:     hw,
		Recorder:     c.recorder,
		Core:         core,
		Services:     c.services,
		Hub:          c.hub,
		SerialOpener: c.serialOpener,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.workers = workers
	c.tcp = tcp

	if c.config.Server.Enabled {
		deps := apihttp.Dependencies{
			Commands: c.services.Commands,
			Status:   c.services.Status,
			Table:    core.Table,
			Health: func() (bool, interface{}) {
				h := c.Health()
				return h.Overall, h
			},
			Version: Version,
		}
		if c.hub != nil {
			deps.Events = c.hub
		}
		c.server = apihttp.NewServer(serverConfig(c.config), deps, utils.NewKVLogger(c.logger))
		workers.Register(c.server)
	}

	// The dispatch loop runs before any producer starts
	group, gctx := errgroup.WithContext(ctx)
	c.group = group
	c.loopRunning.Store(true)
	group.Go(func() error {
		defer c.loopRunning.Store(false)
		return core.Dispatcher.Run(gctx)
	})

	if err := workers.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Workers started", zap.Int("count", workers.GetWorkerCount()))
	return nil
}

// Wait blocks until the dispatch loop exits and returns its error
func (c *Container) Wait() error {
	c.mu.Lock()
	group := c.group
	c.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	err := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed successfully")
	return nil
}

// teardown stops whatever Start managed to build, in reverse order
func (c *Container) teardown() error {
	var errs []error

	// Step 1: stop inputs and listeners (reverse of step 5)
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	// Step 2: close the dispatch loop; queued events still waiting are dropped
	if c.core != nil {
		if err := c.core.Dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.group != nil {
		if err := c.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("dispatch loop: %w", err))
		}
	}

	// Step 3: stop the light driver and release the device (reverse of step 1)
	if c.hardware != nil {
		if err := c.hardware.Light.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop light driver: %w", err))
		}
		if err := c.hardware.Device.Close(); err != nil {
			c.logger.Error("Failed to close light device", zap.Error(err))
			errs = append(errs, fmt.Errorf("close device: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	if c.hardware != nil {
		if c.hardware.Light.Connected() {
			set("light", true, c.hardware.Device.Name())
		} else {
			set("light", false, "disconnected, reconnecting")
		}
	} else {
		set("light", false, "not initialized")
	}

	if c.loopRunning.Load() {
		set("dispatcher", true, fmt.Sprintf("queue depth: %d", c.core.Dispatcher.Len()))
	} else {
		set("dispatcher", false, "dispatch loop not running")
	}

	if c.core != nil {
		state := c.core.Engine.Snapshot().State
		status.State = state
		if state == statemachine.StateDisconnected {
			set("recorder", false, "recorder unreachable")
		} else {
			set("recorder", true, string(state))
		}
	} else {
		set("recorder", false, "not initialized")
	}

	if c.workers != nil {
		healthy, msg := c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount())
		for _, st := range c.workers.Statuses() {
			if !st.Running {
				healthy = false
				msg = fmt.Sprintf("%s not running", st.Name)
				if st.LastErr != "" {
					msg += ": " + st.LastErr
				}
				break
			}
		}
		set("workers", healthy, msg)
	} else {
		set("workers", false, "not initialized")
	}

	return status
}

// Services returns the application services, nil before Start
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Table returns the transition table, nil before Start
func (c *Container) Table() *statemachine.Table {
	if c.core == nil {
		return nil
	}
	return c.core.Table
}

// TCPConsole returns the TCP console listener when enabled
func (c *Container) TCPConsole() *console.TCPListener {
	return c.tcp
}

// HTTPServer returns the HTTP server when enabled
func (c *Container) HTTPServer() *apihttp.Server {
	return c.server
}
