// Package protocol defines the JSON frames exchanged on the /ws input relay.
package protocol

import "rein/internal/config"

// MessageType is the discriminator carried in every frame's "type" field
type MessageType string

const (
	// TypeMove is a relative pointer displacement
	TypeMove MessageType = "move"

	// TypeClick presses or releases a pointer button
	TypeClick MessageType = "click"

	// TypeScroll is a relative wheel displacement
	TypeScroll MessageType = "scroll"

	// TypeZoom is a pinch gesture magnitude
	TypeZoom MessageType = "zoom"

	// TypeKey taps a single semantic key
	TypeKey MessageType = "key"

	// TypeText types a literal string
	TypeText MessageType = "text"

	// TypeCombo chords several keys
	TypeCombo MessageType = "combo"

	// TypeGetIP asks the host for its LAN address
	TypeGetIP MessageType = "get-ip"

	// TypeServerIP answers TypeGetIP
	TypeServerIP MessageType = "server-ip"

	// TypeUpdateConfig pushes new runtime settings to the host
	TypeUpdateConfig MessageType = "update-config"

	// TypeConfigUpdated is the host's reply carrying the merged settings
	TypeConfigUpdated MessageType = "config-updated"
)

// Button names a pointer button
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// Valid reports whether b is one of the known buttons
func (b Button) Valid() bool {
	switch b {
	case ButtonLeft, ButtonRight, ButtonMiddle:
		return true
	}
	return false
}

// Message is implemented by every frame variant
type Message interface {
	Type() MessageType
}

// Move is a relative pointer displacement
type Move struct {
	DX float64
	DY float64
}

// Click is a single button transition, not a full click
type Click struct {
	Button Button
	Press  bool
}

// Scroll is a relative wheel displacement
type Scroll struct {
	DX float64
	DY float64
}

// Zoom carries a sign-directional pinch magnitude
type Zoom struct {
	Delta float64
}

// Key is a semantic key name or a single literal character
type Key struct {
	Key string
}

// Text is typed verbatim
type Text struct {
	Text string
}

// Combo lists keys in press order
type Combo struct {
	Keys []string
}

// GetIP asks the host for its LAN address
type GetIP struct{}

// ServerIP reports the host's LAN address
type ServerIP struct {
	IP string
}

// UpdateConfig carries a partial config
type UpdateConfig struct {
	Config config.Patch
}

// ConfigUpdated carries the host config after an UpdateConfig was merged
type ConfigUpdated struct {
	Config config.Config
}

func (Move) Type() MessageType          { return TypeMove }
func (Click) Type() MessageType         { return TypeClick }
func (Scroll) Type() MessageType        { return TypeScroll }
func (Zoom) Type() MessageType          { return TypeZoom }
func (Key) Type() MessageType           { return TypeKey }
func (Text) Type() MessageType          { return TypeText }
func (Combo) Type() MessageType         { return TypeCombo }
func (GetIP) Type() MessageType         { return TypeGetIP }
func (ServerIP) Type() MessageType      { return TypeServerIP }
func (UpdateConfig) Type() MessageType  { return TypeUpdateConfig }
func (ConfigUpdated) Type() MessageType { return TypeConfigUpdated }
