package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/recordlight/internal/application/port"
	"github.com/garyjia/recordlight/internal/domain/event"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
)

// ErrReplyTimeout is returned when a command is queued but not processed in time
var ErrReplyTimeout = errors.New("timed out waiting for command result")

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// CommandService submits remote commands to the dispatch queue and waits for their result
type CommandService interface {
	// Execute enqueues a command input and blocks until the machine has processed it.
	// The returned result is valid even when Success is false.
	Execute(ctx context.Context, source event.Source, input statemachine.Input, text string) (statemachine.Result, error)
}

type commandServiceImpl struct {
	submitter    port.Submitter
	replyTimeout time.Duration
	logger       Logger
}

// NewCommandService creates a new CommandService
func NewCommandService(submitter port.Submitter, replyTimeout time.Duration, logger Logger) CommandService {
	return &commandServiceImpl{
		submitter:    submitter,
		replyTimeout: replyTimeout,
		logger:       logger,
	}
}

// Execute enqueues a command input and waits for the result
func (s *commandServiceImpl) Execute(ctx context.Context, source event.Source, input statemachine.Input, text string) (statemachine.Result, error) {
	if !input.IsCommand() {
		return statemachine.Result{Input: input}, fmt.Errorf("%w: %s is not a command", statemachine.ErrInvalidInput, input)
	}

	evt := event.NewCommandEvent(input, source, text)
	if err := s.submitter.Submit(evt); err != nil {
		if s.logger != nil {
			s.logger.Error("Failed to queue command", "input", input, "source", source, "error", err)
		}
		return statemachine.Result{Input: input}, fmt.Errorf("queue command: %w", err)
	}

	waitCtx := ctx
	if s.replyTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.replyTimeout)
		defer cancel()
	}

	res, err := evt.Await(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = ErrReplyTimeout
		}
		if s.logger != nil {
			s.logger.Error("Command result not received", "input", input, "event_id", evt.ID, "error", err)
		}
		return statemachine.Result{Input: input}, err
	}

	if s.logger != nil {
		s.logger.Info("Command processed",
			"input", input,
			"source", source,
			"from", res.From,
			"to", res.To,
			"success", res.Success)
	}
	return res, nil
}
