// Package simulated is an in-memory recorder for demos and tests.
package simulated

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/garyjia/recordlight/internal/domain/recorder"
	"github.com/google/uuid"
)

// ErrUnreachable is returned by every call while the recorder is unreachable
var ErrUnreachable = errors.New("simulated recorder unreachable")

const (
	defaultLength = time.Hour
	extendBy      = 5 * time.Minute
)

// Recorder is a thread-safe in-memory recorder
type Recorder struct {
	mu          sync.Mutex
	status      recorder.Status
	current     *recorder.Recording
	next        *recorder.Recording
	unreachable bool
	reject      map[string]bool
	calls       []string
	now         func() time.Time
}

// New creates a previewing recorder with nothing scheduled
func New() *Recorder {
	return &Recorder{
		status: recorder.StatusPreviewing,
		reject: make(map[string]bool),
		now:    time.Now,
	}
}

// SetStatus forces the reported status
func (r *Recorder) SetStatus(s recorder.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = s
}

// Schedule sets the next recording
func (r *Recorder) Schedule(next *recorder.Recording) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = next
}

// SetUnreachable makes every call fail with ErrUnreachable
func (r *Recorder) SetUnreachable(unreachable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unreachable = unreachable
}

// Reject makes the named operation ("start", "stop", "pause", "resume", "extend")
// report failure until cleared
func (r *Recorder) Reject(op string, reject bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reject[op] = reject
}

// Calls returns the control operations invoked so far
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// GetStatus returns the current status
func (r *Recorder) GetStatus(ctx context.Context) (recorder.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unreachable {
		return recorder.StatusUnknown, ErrUnreachable
	}
	return r.status, nil
}

// GetCurrentRecording returns the recording in progress, if any
func (r *Recorder) GetCurrentRecording(ctx context.Context) (*recorder.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unreachable {
		return nil, ErrUnreachable
	}
	return copyRecording(r.current), nil
}

// GetNextRecording returns the scheduled recording, if any
func (r *Recorder) GetNextRecording(ctx context.Context) (*recorder.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unreachable {
		return nil, ErrUnreachable
	}
	return copyRecording(r.next), nil
}

// StartNew starts an unscheduled recording
func (r *Recorder) StartNew(ctx context.Context) (bool, error) {
	return r.control("start", func() bool {
		if r.status != recorder.StatusPreviewing && r.status != recorder.StatusStopped {
			return false
		}
		now := r.now()
		r.current = &recorder.Recording{
			ID:        uuid.NewString(),
			Name:      "Ad hoc recording",
			StartTime: now,
			EndTime:   now.Add(defaultLength),
		}
		r.status = recorder.StatusRecording
		return true
	})
}

// StartNext starts the scheduled recording id ahead of time
func (r *Recorder) StartNext(ctx context.Context, id string) (bool, error) {
	return r.control("start", func() bool {
		if r.next == nil || r.next.ID != id || r.status != recorder.StatusPreviewing {
			return false
		}
		r.current, r.next = r.next, nil
		r.status = recorder.StatusRecording
		return true
	})
}

// Stop ends recording id
func (r *Recorder) Stop(ctx context.Context, id string) (bool, error) {
	return r.control("stop", func() bool {
		if !r.isCurrent(id) {
			return false
		}
		r.current = nil
		r.status = recorder.StatusStopped
		return true
	})
}

// Pause pauses recording id
func (r *Recorder) Pause(ctx context.Context, id string) (bool, error) {
	return r.control("pause", func() bool {
		if !r.isCurrent(id) || r.status != recorder.StatusRecording {
			return false
		}
		r.status = recorder.StatusPaused
		return true
	})
}

// Resume resumes recording id
func (r *Recorder) Resume(ctx context.Context, id string) (bool, error) {
	return r.control("resume", func() bool {
		if !r.isCurrent(id) || r.status != recorder.StatusPaused {
			return false
		}
		r.status = recorder.StatusRecording
		return true
	})
}

// Extend pushes the end of recording id back
func (r *Recorder) Extend(ctx context.Context, id string) (bool, error) {
	return r.control("extend", func() bool {
		if !r.isCurrent(id) {
			return false
		}
		r.current.EndTime = r.current.EndTime.Add(extendBy)
		return true
	})
}

func (r *Recorder) control(op string, apply func() bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, op)
	if r.unreachable {
		return false, ErrUnreachable
	}
	if r.reject[op] {
		return false, nil
	}
	return apply(), nil
}

func (r *Recorder) isCurrent(id string) bool {
	return r.current != nil && r.current.ID == id
}

func copyRecording(rec *recorder.Recording) *recorder.Recording {
	if rec == nil {
		return nil
	}
	c := *rec
	return &c
}
