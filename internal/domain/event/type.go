package event

import "errors"

// Source identifies the adapter that produced an event
type Source string

const (
	SourceButton        Source = "button"
	SourceRecorder      Source = "recorder"
	SourceConsoleSerial Source = "console.serial"
	SourceConsoleTCP    Source = "console.tcp"
	SourceHTTP          Source = "http"
)

// ErrNoReply is returned by Await on events created without a reply channel
var ErrNoReply = errors.New("event has no reply channel")

// String returns the string representation of the source
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is one of the defined constants
func (s Source) IsValid() bool {
	switch s {
	case SourceButton,
		SourceRecorder,
		SourceConsoleSerial,
		SourceConsoleTCP,
		SourceHTTP:
		return true
	default:
		return false
	}
}
