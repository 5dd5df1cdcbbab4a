// Package console implements the line-oriented remote control protocol over TCP and serial.
package console

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/recordlight/internal/application/service"
	"github.com/garyjia/recordlight/internal/domain/event"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
	"github.com/garyjia/recordlight/internal/infrastructure/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Dialect selects the error wording and line ending of a listener
type Dialect string

const (
	DialectSerial Dialect = "serial"
	DialectTCP    Dialect = "tcp"
)

const statusCommand = "STATUS"

// unknown renders the reply for unrecognized command text
func (d Dialect) unknown(text string) string {
	if d == DialectTCP {
		return "-Error: Command not found: " + text
	}
	return "Error: Unhandled console command: " + text
}

func (d Dialect) errorLine(msg string) string {
	if d == DialectTCP {
		return "-Error: " + msg
	}
	return "Error: " + msg
}

// Newline terminates every reply line
func (d Dialect) Newline() string {
	if d == DialectSerial {
		return "\r\n"
	}
	return "\n"
}

// Protocol holds what every session of one listener shares
type Protocol struct {
	commands service.CommandService
	status   service.StatusService
	dialect  Dialect
	source   event.Source
	limit    rate.Limit
	burst    int
	logger   *zap.Logger
}

// ProtocolConfig configures a Protocol
type ProtocolConfig struct {
	Dialect Dialect
	Source  event.Source

	// CommandRate limits commands per second per session; zero disables limiting
	CommandRate  float64
	CommandBurst int
}

// NewProtocol creates a protocol handler
func NewProtocol(cfg ProtocolConfig, commands service.CommandService, status service.StatusService, logger *zap.Logger) *Protocol {
	limit := rate.Inf
	if cfg.CommandRate > 0 {
		limit = rate.Limit(cfg.CommandRate)
	}
	burst := cfg.CommandBurst
	if burst < 1 {
		burst = 1
	}
	return &Protocol{
		commands: commands,
		status:   status,
		dialect:  cfg.Dialect,
		source:   cfg.Source,
		limit:    limit,
		burst:    burst,
		logger:   logger,
	}
}

// Dialect returns the protocol dialect
func (p *Protocol) Dialect() Dialect {
	return p.dialect
}

// NewSession starts a session for one client connection
func (p *Protocol) NewSession(peer string) *Session {
	return &Session{
		proto:   p,
		peer:    peer,
		limiter: rate.NewLimiter(p.limit, p.burst),
	}
}

// Session is one client's conversation. It is used from a single goroutine.
type Session struct {
	proto   *Protocol
	peer    string
	limiter *rate.Limiter
}

// Handle processes one input line and returns the reply lines
func (s *Session) Handle(ctx context.Context, line string) []string {
	text := strings.TrimSpace(line)
	if text == "" {
		return nil
	}
	p := s.proto

	if strings.EqualFold(text, statusCommand) {
		return s.statusBlock(ctx)
	}

	input, ok := statemachine.ParseCommand(text)
	if !ok {
		metrics.IncConsoleCommand(p.source, "unknown")
		p.logger.Info("Unknown console command", zap.String("peer", s.peer), zap.String("text", text))
		return []string{p.dialect.unknown(text)}
	}

	if !s.limiter.Allow() {
		metrics.IncConsoleCommand(p.source, "throttled")
		p.logger.Warn("Console command throttled", zap.String("peer", s.peer), zap.Stringer("input", input))
		return []string{p.dialect.errorLine("Too many commands")}
	}

	res, err := p.commands.Execute(ctx, p.source, input, text)
	if err != nil || !res.Success {
		metrics.IncConsoleCommand(p.source, "error")
		p.logger.Info("Console command failed",
			zap.String("peer", s.peer),
			zap.Stringer("input", input),
			zap.Stringer("state", res.From),
			zap.Error(firstErr(err, res.Err)))
		return []string{fmt.Sprintf("%s ERROR", input)}
	}

	metrics.IncConsoleCommand(p.source, "ok")
	return []string{fmt.Sprintf("%s OK", input)}
}

func (s *Session) statusBlock(ctx context.Context) []string {
	report, err := s.proto.status.Report(ctx)
	if err != nil {
		return []string{s.proto.dialect.errorLine("Status unavailable: " + err.Error())}
	}

	fields := report.Fields()
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, f.Key+": "+f.Value)
	}
	return lines
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
