// Package recorder holds the value types reported by the external recording service.
package recorder

import (
	"strings"
	"time"
)

// Status is the raw status reported by the recorder
type Status string

const (
	StatusUnknown          Status = "Unknown"
	StatusPreviewing       Status = "Previewing"
	StatusRecording        Status = "Recording"
	StatusPaused           Status = "Paused"
	StatusStopped          Status = "Stopped"
	StatusRunningElsewhere Status = "RunningElsewhere"
	StatusFaulted          Status = "Faulted"
	StatusDisconnected     Status = "Disconnected"
)

var knownStatuses = []Status{
	StatusPreviewing,
	StatusRecording,
	StatusPaused,
	StatusStopped,
	StatusRunningElsewhere,
	StatusFaulted,
	StatusDisconnected,
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// ParseStatus maps a wire status string to a Status.
// Unrecognized values map to StatusUnknown.
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	for _, st := range knownStatuses {
		if strings.EqualFold(string(st), s) {
			return st
		}
	}
	return StatusUnknown
}

// Recording describes a current or scheduled recording
type Recording struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// MinutesToStart returns whole minutes until the recording starts, never negative
func (r *Recording) MinutesToStart(now time.Time) int {
	return minutesUntil(now, r.StartTime)
}

// MinutesToEnd returns whole minutes until the recording ends, never negative
func (r *Recording) MinutesToEnd(now time.Time) int {
	return minutesUntil(now, r.EndTime)
}

// StartsWithin reports whether the recording starts no later than now+window
func (r *Recording) StartsWithin(now time.Time, window time.Duration) bool {
	if r == nil || r.StartTime.IsZero() {
		return false
	}
	return !r.StartTime.After(now.Add(window))
}

func minutesUntil(now, t time.Time) int {
	if t.IsZero() || !t.After(now) {
		return 0
	}
	return int(t.Sub(now) / time.Minute)
}
