package service

import (
	"context"
	"time"

	"github.com/garyjia/recordlight/internal/application/port"
	"github.com/garyjia/recordlight/internal/application/workflow"
	"github.com/garyjia/recordlight/internal/domain/light"
	"github.com/garyjia/recordlight/internal/domain/recorder"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
)

const timeLayout = "2006-01-02 15:04:05"

// SnapshotSource exposes the engine's state snapshot
type SnapshotSource interface {
	Snapshot() workflow.Snapshot
}

// RecordingInfo describes a current or scheduled recording relative to the report time
type RecordingInfo struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	MinutesToStart int       `json:"minutes_to_start"`
	MinutesToEnd   int       `json:"minutes_to_end"`
}

// StatusReport is the point-in-time view served by STATUS and the HTTP API
type StatusReport struct {
	State          statemachine.State `json:"state"`
	LastInput      statemachine.Input `json:"last_input"`
	UpdatedAt      time.Time          `json:"updated_at"`
	Light          light.Display      `json:"light"`
	LightConnected bool               `json:"light_connected"`
	RecorderStatus recorder.Status    `json:"recorder_status"`
	RecorderError  string             `json:"recorder_error,omitempty"`
	Current        *RecordingInfo     `json:"current,omitempty"`
	Next           *RecordingInfo     `json:"next,omitempty"`
	QueueDepth     int                `json:"queue_depth"`
	GeneratedAt    time.Time          `json:"generated_at"`
}

// Field is one key/value line of the STATUS block
type Field struct {
	Key   string
	Value string
}

// Fields flattens the report into ordered key/value pairs
func (r *StatusReport) Fields() []Field {
	fields := []Field{
		{"State", r.State.String()},
		{"Light", r.Light.String()},
		{"LightConnected", boolText(r.LightConnected)},
		{"RecorderStatus", r.RecorderStatus.String()},
	}
	if r.RecorderError != "" {
		fields = append(fields, Field{"RecorderError", r.RecorderError})
	}
	fields = append(fields, recordingFields("Current", r.Current)...)
	fields = append(fields, recordingFields("Next", r.Next)...)
	fields = append(fields, Field{"QueueDepth", itoa(r.QueueDepth)})
	return fields
}

func recordingFields(prefix string, info *RecordingInfo) []Field {
	if info == nil {
		return []Field{{prefix + "Id", "none"}}
	}
	return []Field{
		{prefix + "Id", info.ID},
		{prefix + "Name", info.Name},
		{prefix + "Start", formatTime(info.StartTime)},
		{prefix + "End", formatTime(info.EndTime)},
		{prefix + "MinutesToStart", itoa(info.MinutesToStart)},
		{prefix + "MinutesToEnd", itoa(info.MinutesToEnd)},
	}
}

// StatusService builds status reports
type StatusService interface {
	Report(ctx context.Context) (*StatusReport, error)
}

type statusServiceImpl struct {
	snapshots  SnapshotSource
	light      port.Light
	recorder   port.RecorderStatusSource
	queueDepth func() int
	now        func() time.Time
}

// StatusOption configures the status service
type StatusOption func(*statusServiceImpl)

// WithQueueDepth reports the dispatch queue length
func WithQueueDepth(fn func() int) StatusOption {
	return func(s *statusServiceImpl) {
		s.queueDepth = fn
	}
}

// WithNow replaces time.Now, mainly for tests
func WithNow(now func() time.Time) StatusOption {
	return func(s *statusServiceImpl) {
		s.now = now
	}
}

// NewStatusService creates a new StatusService
func NewStatusService(snapshots SnapshotSource, l port.Light, rec port.RecorderStatusSource, opts ...StatusOption) StatusService {
	s := &statusServiceImpl{
		snapshots: snapshots,
		light:     l,
		recorder:  rec,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report builds a status report. Recorder errors are reported inside the report.
func (s *statusServiceImpl) Report(ctx context.Context) (*StatusReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := s.snapshots.Snapshot()
	now := s.now()
	report := &StatusReport{
		State:          snap.State,
		LastInput:      snap.LastInput,
		UpdatedAt:      snap.UpdatedAt,
		Light:          s.light.Current(),
		LightConnected: s.light.Connected(),
		RecorderStatus: recorder.StatusUnknown,
		GeneratedAt:    now,
	}
	if s.queueDepth != nil {
		report.QueueDepth = s.queueDepth()
	}

	status, err := s.recorder.GetStatus(ctx)
	if err != nil {
		report.RecorderStatus = recorder.StatusDisconnected
		report.RecorderError = err.Error()
		return report, nil
	}
	report.RecorderStatus = status

	if current, err := s.recorder.GetCurrentRecording(ctx); err != nil {
		report.RecorderError = err.Error()
	} else {
		report.Current = toInfo(current, now)
	}

	if next, err := s.recorder.GetNextRecording(ctx); err != nil {
		report.RecorderError = err.Error()
	} else {
		report.Next = toInfo(next, now)
	}

	return report, nil
}

func toInfo(r *recorder.Recording, now time.Time) *RecordingInfo {
	if r == nil {
		return nil
	}
	return &RecordingInfo{
		ID:             r.ID,
		Name:           r.Name,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		MinutesToStart: r.MinutesToStart(now),
		MinutesToEnd:   r.MinutesToEnd(now),
	}
}
