package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupIsCaseInsensitive(t *testing.T) {
	for _, name := range []string{"enter", "Enter", "ENTER", "return"} {
		key, ok := Lookup(name)
		assert.True(t, ok, name)
		assert.Equal(t, "enter", key, name)
	}
}

func TestLookupSemanticNames(t *testing.T) {
	cases := map[string]string{
		"ArrowUp":   "up",
		"Backspace": "backspace",
		"Escape":    "esc",
		"Meta":      "cmd",
		"Control":   "ctrl",
		"F11":       "f11",
		" ":         "space",
		"Comma":     ",",
		"backslash": `\`,
	}
	for name, want := range cases {
		got, ok := Lookup(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, ok := Lookup("hyperdrive")
	assert.False(t, ok)

	_, ok = Lookup("a")
	assert.False(t, ok, "single characters are typed literally, not mapped")
}

func TestZoomModifier(t *testing.T) {
	assert.Equal(t, "cmd", zoomModifierFor("darwin"))
	assert.Equal(t, "ctrl", zoomModifierFor("linux"))
	assert.Equal(t, "ctrl", zoomModifierFor("windows"))
}

func TestAxisString(t *testing.T) {
	assert.Equal(t, "vertical", Vertical.String())
	assert.Equal(t, "horizontal", Horizontal.String())
}
