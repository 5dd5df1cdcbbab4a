package dispatcher

import (
	"context"

	"github.com/garyjia/recordlight/internal/domain/event"
)

// Handler processes one queued event. It must finish before the next event is dequeued.
type Handler func(ctx context.Context, evt *event.Event) error

// DropFunc is called for queued events discarded at shutdown
type DropFunc func(evt *event.Event)
