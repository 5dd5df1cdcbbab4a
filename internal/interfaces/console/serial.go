package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	serialReadTimeout = 250 * time.Millisecond
	maxLineLength     = 1024
)

// SerialConfig configures the serial console listener
type SerialConfig struct {
	Port           string
	BaudRate       int
	ReopenInterval time.Duration
}

// SerialPort is the subset of serial.Port used by the listener
type SerialPort interface {
	io.ReadWriteCloser
}

// SerialOpener opens a serial port
type SerialOpener func(name string, baudRate int) (SerialPort, error)

// OpenSerial opens a real serial port with 8N1 framing and a short read timeout
func OpenSerial(name string, baudRate int) (SerialPort, error) {
	p, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(serialReadTimeout); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// SerialListener serves the console protocol on one serial port, reopening it
// when it fails
type SerialListener struct {
	cfg    SerialConfig
	proto  *Protocol
	open   SerialOpener
	logger *zap.Logger

	mu      sync.Mutex
	current SerialPort
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSerialListener creates a serial console listener. A nil opener uses OpenSerial.
func NewSerialListener(cfg SerialConfig, proto *Protocol, open SerialOpener, logger *zap.Logger) *SerialListener {
	if open == nil {
		open = OpenSerial
	}
	return &SerialListener{
		cfg:    cfg,
		proto:  proto,
		open:   open,
		logger: logger,
	}
}

// Start opens the port in the background
func (l *SerialListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return fmt.Errorf("serial console already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(runCtx, l.done)

	l.logger.Info("Serial console started",
		zap.String("port", l.cfg.Port),
		zap.Int("baud_rate", l.cfg.BaudRate))
	return nil
}

// Stop closes the port and waits for the listener to exit
func (l *SerialListener) Stop() error {
	l.mu.Lock()
	if l.cancel == nil {
		l.mu.Unlock()
		return nil
	}
	cancel, done := l.cancel, l.done
	l.cancel = nil
	if l.current != nil {
		_ = l.current.Close()
	}
	l.mu.Unlock()

	cancel()
	<-done
	l.logger.Info("Serial console stopped")
	return nil
}

// Name returns the worker name for identification
func (l *SerialListener) Name() string {
	return "SerialConsole"
}

func (l *SerialListener) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		p, err := l.openWithBackoff(ctx)
		if err != nil {
			return
		}

		err = l.serve(ctx, p)
		l.setCurrent(nil)
		_ = p.Close()

		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("Serial console port failed, reopening", zap.String("port", l.cfg.Port), zap.Error(err))
	}
}

func (l *SerialListener) openWithBackoff(ctx context.Context) (SerialPort, error) {
	interval := l.cfg.ReopenInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return backoff.Retry(ctx, func() (SerialPort, error) {
		p, err := l.open(l.cfg.Port, l.cfg.BaudRate)
		if err != nil {
			return nil, err
		}
		if !l.setCurrent(p) {
			_ = p.Close()
			return nil, backoff.Permanent(context.Canceled)
		}
		return p, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			l.logger.Warn("Serial console port unavailable",
				zap.String("port", l.cfg.Port),
				zap.Duration("retry_in", next),
				zap.Error(err))
		}),
	)
}

// setCurrent records the open port; it refuses once Stop has run
func (l *SerialListener) setCurrent(p SerialPort) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p != nil && l.cancel == nil {
		return false
	}
	l.current = p
	return true
}

// serve reads lines until the port fails or ctx is done. Reads that time out
// return no data and no error.
func (l *SerialListener) serve(ctx context.Context, p SerialPort) error {
	session := l.proto.NewSession(l.cfg.Port)
	newline := l.proto.Dialect().Newline()

	var pending []byte
	buf := make([]byte, 256)
	for ctx.Err() == nil {
		n, err := p.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				i := bytes.IndexAny(pending, "\r\n")
				if i < 0 {
					break
				}
				line := string(pending[:i])
				pending = pending[i+1:]

				replies := session.Handle(ctx, line)
				if len(replies) == 0 {
					continue
				}
				if _, werr := io.WriteString(p, strings.Join(replies, newline)+newline); werr != nil {
					return werr
				}
			}
			if len(pending) > maxLineLength {
				pending = pending[:0]
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("port closed")
			}
			return err
		}
	}
	return nil
}
