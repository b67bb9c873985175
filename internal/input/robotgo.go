//go:build cgo

package input

import (
	"fmt"
	"math"

	"github.com/go-vgo/robotgo"
)

// RobotDevice drives the real pointer and keyboard through robotgo
type RobotDevice struct{}

// NewDevice returns the platform device
func NewDevice() Device {
	return &RobotDevice{}
}

func (d *RobotDevice) Location() (int, int, error) {
	x, y := robotgo.GetMousePos()
	return x, y, nil
}

func (d *RobotDevice) MoveTo(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (d *RobotDevice) Toggle(btn Button, down bool) error {
	if err := robotgo.Toggle(string(btn), direction(down)); err != nil {
		return fmt.Errorf("toggle %s: %w", btn, err)
	}
	return nil
}

// Scroll rounds to whole wheel ticks. Any non-zero amount moves at least one tick.
func (d *RobotDevice) Scroll(axis Axis, amount float64) error {
	ticks := int(math.Round(math.Abs(amount)))
	if ticks == 0 {
		if amount == 0 {
			return nil
		}
		ticks = 1
	}

	var dir string
	switch {
	case axis == Vertical && amount > 0:
		dir = "down"
	case axis == Vertical:
		dir = "up"
	case amount > 0:
		dir = "right"
	default:
		dir = "left"
	}

	robotgo.ScrollDir(ticks, dir)
	return nil
}

func (d *RobotDevice) KeyToggle(key string, down bool) error {
	if err := robotgo.KeyToggle(key, direction(down)); err != nil {
		return fmt.Errorf("key %s %s: %w", key, direction(down), err)
	}
	return nil
}

func (d *RobotDevice) KeyTap(key string) error {
	if err := robotgo.KeyTap(key); err != nil {
		return fmt.Errorf("tap %s: %w", key, err)
	}
	return nil
}

func (d *RobotDevice) TypeText(text string) error {
	robotgo.TypeStr(text)
	return nil
}

func direction(down bool) string {
	if down {
		return "down"
	}
	return "up"
}
