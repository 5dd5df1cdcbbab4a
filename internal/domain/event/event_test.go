package event

import (
	"context"
	"testing"
	"time"

	"github.com/garyjia/recordlight/internal/domain/statemachine"
)

func TestSource_String(t *testing.T) {
	tests := []struct {
		name   string
		source Source
		want   string
	}{
		{name: "button", source: SourceButton, want: "button"},
		{name: "recorder", source: SourceRecorder, want: "recorder"},
		{name: "serial console", source: SourceConsoleSerial, want: "console.serial"},
		{name: "tcp console", source: SourceConsoleTCP, want: "console.tcp"},
		{name: "http", source: SourceHTTP, want: "http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.source.String(); got != tt.want {
				t.Errorf("Source.String() = %v, want %v", got, tt.want)
			}
			if !tt.source.IsValid() {
				t.Errorf("Source.IsValid() = false for %v", tt.source)
			}
		})
	}

	if Source("usb").IsValid() {
		t.Error("unexpected valid source")
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	evt := NewEvent(statemachine.InputButtonHeld, SourceButton, statemachine.Payload{HoldDuration: 3 * time.Second})

	if evt.ID == "" {
		t.Error("expected generated ID")
	}
	if evt.Timestamp.Before(before) {
		t.Error("timestamp before creation")
	}
	if evt.Payload.HoldDuration != 3*time.Second {
		t.Errorf("HoldDuration = %v", evt.Payload.HoldDuration)
	}
	if evt.WantsReply() {
		t.Error("plain events must not want replies")
	}

	other := NewEvent(statemachine.InputButtonHeld, SourceButton, statemachine.Payload{})
	if other.ID == evt.ID {
		t.Error("expected unique IDs")
	}
}

func TestCommandEvent_ReplyAndAwait(t *testing.T) {
	evt := NewCommandEvent(statemachine.InputCommandStart, SourceConsoleTCP, "start")
	if !evt.WantsReply() {
		t.Fatal("command events want replies")
	}
	if evt.Payload.Text != "start" {
		t.Errorf("Payload.Text = %q", evt.Payload.Text)
	}

	evt.Reply(statemachine.Result{Input: statemachine.InputCommandStart, Success: true})
	// A second reply is dropped and must not block.
	evt.Reply(statemachine.Result{Input: statemachine.InputCommandStart})

	res, err := evt.Await(context.Background())
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if !res.Success {
		t.Error("expected the first reply")
	}
}

func TestAwait_ContextDone(t *testing.T) {
	evt := NewCommandEvent(statemachine.InputCommandStop, SourceHTTP, "stop")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := evt.Await(ctx); err == nil {
		t.Error("expected context error")
	}
}

func TestAwait_NoReplyChannel(t *testing.T) {
	evt := NewEvent(statemachine.InputRecorderRecording, SourceRecorder, statemachine.Payload{})
	if _, err := evt.Await(context.Background()); err != ErrNoReply {
		t.Errorf("Await() error = %v, want ErrNoReply", err)
	}
	// Replying to a plain event is a no-op.
	evt.Reply(statemachine.Result{})
}
