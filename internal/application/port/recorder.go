package port

import (
	"context"

	"github.com/garyjia/recordlight/internal/domain/recorder"
)

// RecorderStatusSource reads the recorder's status and schedule
type RecorderStatusSource interface {
	GetStatus(ctx context.Context) (recorder.Status, error)

	// GetCurrentRecording returns nil when nothing is recording or paused
	GetCurrentRecording(ctx context.Context) (*recorder.Recording, error)

	// GetNextRecording returns nil when nothing is scheduled
	GetNextRecording(ctx context.Context) (*recorder.Recording, error)
}

// RecorderController issues recorder commands. The boolean is the recorder's own
// business result; the error is a transport failure.
type RecorderController interface {
	StartNew(ctx context.Context) (bool, error)
	StartNext(ctx context.Context, id string) (bool, error)
	Stop(ctx context.Context, id string) (bool, error)
	Pause(ctx context.Context, id string) (bool, error)
	Resume(ctx context.Context, id string) (bool, error)
	Extend(ctx context.Context, id string) (bool, error)
}

// Recorder is the full recorder surface consumed by the core
type Recorder interface {
	RecorderStatusSource
	RecorderController
}
