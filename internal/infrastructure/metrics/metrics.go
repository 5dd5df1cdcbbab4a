// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"

	"github.com/garyjia/recordlight/internal/domain/event"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "recordlight"

var (
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Processed inputs by source state, target state, input and outcome",
	}, []string{"from", "to", "input", "success"})

	CurrentState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "state",
		Help:      "1 for the active state machine state, 0 otherwise",
	}, []string{"state"})

	ActionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "action_failures_total",
		Help:      "Transition actions that reported failure",
	}, []string{"action"})

	LightConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "light_connected",
		Help:      "1 while the light device is reachable",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Inputs waiting in the dispatch queue",
	})

	RecorderPollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recorder_poll_errors_total",
		Help:      "Recorder status polls that failed",
	})

	ConsoleCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "console_commands_total",
		Help:      "Remote commands by source and result",
	}, []string{"source", "result"})
)

// ObserveResult records one processed input. It has the workflow observer signature.
func ObserveResult(evt *event.Event, res statemachine.Result) {
	TransitionsTotal.WithLabelValues(
		res.From.String(),
		res.To.String(),
		res.Input.String(),
		strconv.FormatBool(res.Success),
	).Inc()

	if !res.Success && res.Action.IsValid() && res.Action != statemachine.ActionNoop {
		ActionFailuresTotal.WithLabelValues(res.Action.String()).Inc()
	}

	SetState(res.To)
}

// SetState marks s as the only active state
func SetState(s statemachine.State) {
	for _, st := range statemachine.AllStates() {
		v := 0.0
		if st == s {
			v = 1
		}
		CurrentState.WithLabelValues(st.String()).Set(v)
	}
}

// SetLightConnected records the light connectivity health signal
func SetLightConnected(connected bool) {
	if connected {
		LightConnected.Set(1)
		return
	}
	LightConnected.Set(0)
}

// SetQueueDepth records the dispatch queue length
func SetQueueDepth(n int) {
	QueueDepth.Set(float64(n))
}

// IncRecorderPollError counts one failed recorder poll
func IncRecorderPollError() {
	RecorderPollErrorsTotal.Inc()
}

// IncConsoleCommand counts one remote command
func IncConsoleCommand(source event.Source, result string) {
	if result == "" {
		result = "unknown"
	}
	ConsoleCommandsTotal.WithLabelValues(source.String(), result).Inc()
}
