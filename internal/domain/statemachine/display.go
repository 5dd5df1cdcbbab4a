package statemachine

import "github.com/garyjia/recordlight/internal/domain/light"

var displays = map[State]light.Display{
	StateInit:              light.Solid(light.ColorOff),
	StatePreviewing:        light.Solid(light.ColorOff),
	StatePreviewingQueued:  light.Solid(light.ColorOff),
	StateRecordingWait:     light.Solid(light.ColorGreen),
	StateRecording:         light.Solid(light.ColorGreen),
	StatePausedWait:        light.Solid(light.ColorYellow),
	StatePaused:            light.Solid(light.ColorYellow),
	StateStoppingPaused:    light.Solid(light.ColorOff),
	StateStoppingRecording: light.Solid(light.ColorOff),
	StateStopped:           light.Solid(light.ColorOff),
	StateRunningElsewhere:  light.Solid(light.ColorOff),
	StateFaulted:           light.Solid(light.ColorRed),
	StateDisconnected:      light.Flash(light.ColorRed),
}

// Display returns what the light shows while the machine is in the given state
func Display(s State) light.Display {
	if d, ok := displays[s]; ok {
		return d
	}
	return light.Solid(light.ColorOff)
}
