package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/garyjia/recordlight/internal/application/dispatcher"
	"github.com/garyjia/recordlight/internal/application/service"
	"github.com/garyjia/recordlight/internal/domain/event"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
	"github.com/garyjia/recordlight/internal/infrastructure/metrics"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps    Dependencies
	limiter *rate.Limiter
	logger  Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, limiter *rate.Limiter, logger Logger) *Handlers {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Handlers{
		deps:    deps,
		limiter: limiter,
		logger:  logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Version    string      `json:"version"`
	Components interface{} `json:"components,omitempty"`
}

// CommandResponse is the outcome of one remote command
type CommandResponse struct {
	Input   statemachine.Input `json:"input"`
	Action  string             `json:"action"`
	From    statemachine.State `json:"from"`
	To      statemachine.State `json:"to"`
	Success bool               `json:"success"`
}

// TransitionResponse is one row of the transition table
type TransitionResponse struct {
	From   statemachine.State `json:"from"`
	Input  statemachine.Input `json:"input"`
	Action string             `json:"action"`
	To     statemachine.State `json:"to"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	healthy := true
	var components interface{}
	if h.deps.Health != nil {
		healthy, components = h.deps.Health()
	}

	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    h.deps.Version,
		Components: components,
	}
	code := http.StatusOK
	if !healthy {
		response.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, Response{
		Success: healthy,
		Data:    response,
	})
}

// GetStatus handles GET /api/v1/status
func (h *Handlers) GetStatus(c *gin.Context) {
	if h.deps.Status == nil {
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: "status not available"})
		return
	}

	report, err := h.deps.Status.Report(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to build status report", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to build status report",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    report,
	})
}

// ListTransitions handles GET /api/v1/transitions
func (h *Handlers) ListTransitions(c *gin.Context) {
	if h.deps.Table == nil {
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: "transition table not available"})
		return
	}

	state := statemachine.State(c.Query("state"))
	if state != "" && !state.IsValid() {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown state"})
		return
	}

	rows := h.deps.Table.Rows()
	out := make([]TransitionResponse, 0, len(rows))
	for _, t := range rows {
		if state != "" && t.From != state {
			continue
		}
		out = append(out, TransitionResponse{
			From:   t.From,
			Input:  t.Input,
			Action: t.Action.String(),
			To:     t.To,
		})
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    out,
	})
}

// ExecuteCommand handles POST /api/v1/commands/:command
func (h *Handlers) ExecuteCommand(c *gin.Context) {
	text := c.Param("command")
	input, ok := statemachine.ParseCommand(text)
	if !ok {
		metrics.IncConsoleCommand(event.SourceHTTP, "unknown")
		h.logger.Info("Unknown remote command", "text", text)
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "unknown command: " + strings.ToUpper(text),
		})
		return
	}

	if !h.limiter.Allow() {
		metrics.IncConsoleCommand(event.SourceHTTP, "throttled")
		c.JSON(http.StatusTooManyRequests, Response{
			Success: false,
			Error:   "too many commands",
		})
		return
	}

	if h.deps.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: "commands not available"})
		return
	}

	res, err := h.deps.Commands.Execute(c.Request.Context(), event.SourceHTTP, input, strings.ToUpper(text))
	if err == nil && errors.Is(res.Err, dispatcher.ErrLoopClosed) {
		err = res.Err
	}
	if err != nil {
		metrics.IncConsoleCommand(event.SourceHTTP, "error")
		h.logger.Error("Remote command failed", "input", input, "error", err)
		c.JSON(commandErrorStatus(err), Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	body := CommandResponse{
		Input:   res.Input,
		Action:  res.Action.String(),
		From:    res.From,
		To:      res.To,
		Success: res.Success,
	}

	if !res.Success {
		metrics.IncConsoleCommand(event.SourceHTTP, "error")
		msg := "command not applied"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		c.JSON(http.StatusConflict, Response{
			Success: false,
			Data:    body,
			Error:   msg,
		})
		return
	}

	metrics.IncConsoleCommand(event.SourceHTTP, "ok")
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    body,
	})
}

func commandErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrReplyTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, dispatcher.ErrLoopClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
