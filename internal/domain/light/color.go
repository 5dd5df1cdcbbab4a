package light

import (
	"fmt"
	"strings"
)

// Color is one of the colors the status light can show
type Color string

const (
	ColorOff    Color = "Off"
	ColorRed    Color = "Red"
	ColorGreen  Color = "Green"
	ColorYellow Color = "Yellow"
)

var validColors = map[Color]bool{
	ColorOff:    true,
	ColorRed:    true,
	ColorGreen:  true,
	ColorYellow: true,
}

// String returns the string representation of the color
func (c Color) String() string {
	return string(c)
}

// IsValid returns true if the color is supported by the light driver
func (c Color) IsValid() bool {
	return validColors[c]
}

// ParseColor parses a color name, ignoring case
func ParseColor(s string) (Color, error) {
	for c := range validColors {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown light color: %q", s)
}

// Display is what the light should currently show
type Display struct {
	Color    Color `json:"color"`
	Flashing bool  `json:"flashing"`
}

// Solid returns a steady display of the given color
func Solid(c Color) Display {
	return Display{Color: c}
}

// Flash returns a flashing display of the given color
func Flash(c Color) Display {
	return Display{Color: c, Flashing: true}
}

// String renders the display as "Green" or "Red (flashing)"
func (d Display) String() string {
	if d.Flashing && d.Color != ColorOff {
		return string(d.Color) + " (flashing)"
	}
	return string(d.Color)
}
