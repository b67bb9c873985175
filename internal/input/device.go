// Package input drives the host's pointer and keyboard.
package input

import (
	"errors"
	"runtime"
)

// ErrUnsupported is returned by every Device call on builds without OS input support
var ErrUnsupported = errors.New("input injection not supported on this platform")

// Button is a pointer button name understood by the device
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "center"
)

// Axis selects a wheel axis
type Axis int

const (
	// Vertical scrolls; positive amounts scroll down
	Vertical Axis = iota
	// Horizontal scrolls; positive amounts scroll right
	Horizontal
)

func (a Axis) String() string {
	if a == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// Device is the OS pointer/keyboard. Implementations are not safe for
// concurrent use; callers serialize access.
type Device interface {
	// Location returns the absolute pointer position
	Location() (x, y int, err error)

	// MoveTo sets the absolute pointer position
	MoveTo(x, y int) error

	// Toggle presses or releases a pointer button
	Toggle(btn Button, down bool) error

	// Scroll turns the wheel on one axis
	Scroll(axis Axis, amount float64) error

	// KeyToggle presses or releases a key by device key name
	KeyToggle(key string, down bool) error

	// KeyTap presses and releases a key by device key name
	KeyTap(key string) error

	// TypeText types a literal string
	TypeText(text string) error
}

// ZoomModifier returns the key that turns a vertical scroll into a zoom
func ZoomModifier() string {
	return zoomModifierFor(runtime.GOOS)
}

func zoomModifierFor(goos string) string {
	if goos == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
