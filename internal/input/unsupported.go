//go:build !cgo

package input

// Stub implementation for builds without cgo, where robotgo is unavailable

// UnsupportedDevice rejects every call
type UnsupportedDevice struct{}

// NewDevice returns the stub device
func NewDevice() Device {
	return &UnsupportedDevice{}
}

func (d *UnsupportedDevice) Location() (int, int, error)        { return 0, 0, ErrUnsupported }
func (d *UnsupportedDevice) MoveTo(x, y int) error              { return ErrUnsupported }
func (d *UnsupportedDevice) Toggle(btn Button, down bool) error { return ErrUnsupported }
func (d *UnsupportedDevice) Scroll(axis Axis, amount float64) error {
	return ErrUnsupported
}
func (d *UnsupportedDevice) KeyToggle(key string, down bool) error { return ErrUnsupported }
func (d *UnsupportedDevice) KeyTap(key string) error               { return ErrUnsupported }
func (d *UnsupportedDevice) TypeText(text string) error            { return ErrUnsupported }
