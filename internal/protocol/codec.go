package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"rein/internal/config"
)

var (
	// ErrMalformed is returned for frames that are not a JSON object with a string type
	ErrMalformed = errors.New("protocol: malformed frame")

	// ErrUnknownType is returned for frames whose type is not recognised
	ErrUnknownType = errors.New("protocol: unknown message type")

	// ErrIncomplete is returned when a known type lacks a required field.
	// Receivers treat such frames as no-ops.
	ErrIncomplete = errors.New("protocol: missing required field")

	// ErrInvalidField is returned when a field is present but out of range
	ErrInvalidField = errors.New("protocol: invalid field value")
)

// frame is the flat wire record. Every variant shares it; unused fields are omitted.
type frame struct {
	Type   MessageType     `json:"type"`
	DX     *float64        `json:"dx,omitempty"`
	DY     *float64        `json:"dy,omitempty"`
	Button *Button         `json:"button,omitempty"`
	Press  *bool           `json:"press,omitempty"`
	Delta  *float64        `json:"delta,omitempty"`
	Key    *string         `json:"key,omitempty"`
	Text   *string         `json:"text,omitempty"`
	Keys   []string        `json:"keys,omitempty"`
	IP     *string         `json:"ip,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Encode serializes a message to its wire form
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformed)
	}

	f := frame{Type: msg.Type()}
	switch m := msg.(type) {
	case Move:
		f.DX, f.DY = &m.DX, &m.DY
	case Click:
		f.Button, f.Press = &m.Button, &m.Press
	case Scroll:
		f.DX, f.DY = &m.DX, &m.DY
	case Zoom:
		f.Delta = &m.Delta
	case Key:
		f.Key = &m.Key
	case Text:
		f.Text = &m.Text
	case Combo:
		f.Keys = m.Keys
	case GetIP:
	case ServerIP:
		f.IP = &m.IP
	case UpdateConfig:
		raw, err := json.Marshal(m.Config)
		if err != nil {
			return nil, err
		}
		f.Config = raw
	case ConfigUpdated:
		raw, err := json.Marshal(m.Config)
		if err != nil {
			return nil, err
		}
		f.Config = raw
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, msg)
	}

	return json.Marshal(f)
}

// Decode parses and validates one inbound frame
func Decode(data []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch f.Type {
	case TypeMove:
		if f.DX == nil || f.DY == nil {
			return nil, incomplete(f.Type, "dx/dy")
		}
		return Move{DX: *f.DX, DY: *f.DY}, nil

	case TypeClick:
		if f.Button == nil {
			return nil, incomplete(f.Type, "button")
		}
		if !f.Button.Valid() {
			return nil, fmt.Errorf("%w: button %q", ErrInvalidField, *f.Button)
		}
		return Click{Button: *f.Button, Press: f.Press != nil && *f.Press}, nil

	case TypeScroll:
		return Scroll{DX: deref(f.DX), DY: deref(f.DY)}, nil

	case TypeZoom:
		if f.Delta == nil {
			return nil, incomplete(f.Type, "delta")
		}
		return Zoom{Delta: *f.Delta}, nil

	case TypeKey:
		if f.Key == nil || *f.Key == "" {
			return nil, incomplete(f.Type, "key")
		}
		return Key{Key: *f.Key}, nil

	case TypeText:
		if f.Text == nil || *f.Text == "" {
			return nil, incomplete(f.Type, "text")
		}
		return Text{Text: *f.Text}, nil

	case TypeCombo:
		if len(f.Keys) == 0 {
			return nil, incomplete(f.Type, "keys")
		}
		for _, k := range f.Keys {
			if k == "" {
				return nil, fmt.Errorf("%w: empty key in combo", ErrInvalidField)
			}
		}
		return Combo{Keys: f.Keys}, nil

	case TypeGetIP:
		return GetIP{}, nil

	case TypeServerIP:
		if f.IP == nil || *f.IP == "" {
			return nil, incomplete(f.Type, "ip")
		}
		return ServerIP{IP: *f.IP}, nil

	case TypeUpdateConfig:
		if len(f.Config) == 0 {
			return nil, incomplete(f.Type, "config")
		}
		var p config.Patch
		if err := json.Unmarshal(f.Config, &p); err != nil {
			return nil, fmt.Errorf("%w: config: %v", ErrMalformed, err)
		}
		if p.IsEmpty() {
			return nil, incomplete(f.Type, "config fields")
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidField, err)
		}
		return UpdateConfig{Config: p}, nil

	case TypeConfigUpdated:
		if len(f.Config) == 0 {
			return nil, incomplete(f.Type, "config")
		}
		var c config.Config
		if err := json.Unmarshal(f.Config, &c); err != nil {
			return nil, fmt.Errorf("%w: config: %v", ErrMalformed, err)
		}
		return ConfigUpdated{Config: c}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
}

func incomplete(t MessageType, field string) error {
	return fmt.Errorf("%w: %s needs %s", ErrIncomplete, t, field)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
