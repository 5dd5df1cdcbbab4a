package port

import "github.com/garyjia/recordlight/internal/domain/event"

// Submitter appends events to the dispatch queue without blocking
type Submitter interface {
	Submit(evt *event.Event) error
}
