package input

import "strings"

// keyMap translates the semantic key names sent by clients into robotgo key names
var keyMap = map[string]string{
	"enter":     "enter",
	"return":    "enter",
	"backspace": "backspace",
	"delete":    "delete",
	"del":       "delete",
	"tab":       "tab",
	"escape":    "esc",
	"esc":       "esc",
	"space":     "space",
	" ":         "space",
	"insert":    "insert",
	"home":      "home",
	"end":       "end",
	"pageup":    "pageup",
	"pagedown":  "pagedown",
	"capslock":  "capslock",

	"up":         "up",
	"down":       "down",
	"left":       "left",
	"right":      "right",
	"arrowup":    "up",
	"arrowdown":  "down",
	"arrowleft":  "left",
	"arrowright": "right",

	"shift":   "shift",
	"control": "ctrl",
	"ctrl":    "ctrl",
	"alt":     "alt",
	"option":  "alt",
	"meta":    "cmd",
	"cmd":     "cmd",
	"command": "cmd",
	"super":   "cmd",
	"win":     "cmd",

	"f1":  "f1",
	"f2":  "f2",
	"f3":  "f3",
	"f4":  "f4",
	"f5":  "f5",
	"f6":  "f6",
	"f7":  "f7",
	"f8":  "f8",
	"f9":  "f9",
	"f10": "f10",
	"f11": "f11",
	"f12": "f12",

	"volumeup":   "audio_vol_up",
	"volumedown": "audio_vol_down",
	"mute":       "audio_mute",
	"play":       "audio_play",
	"pause":      "audio_pause",
	"next":       "audio_next",
	"prev":       "audio_prev",

	"comma":        ",",
	"period":       ".",
	"slash":        "/",
	"backslash":    "\\",
	"semicolon":    ";",
	"quote":        "'",
	"minus":        "-",
	"equal":        "=",
	"bracketleft":  "[",
	"bracketright": "]",
	"backquote":    "`",

	"printscreen": "printscreen",
	"menu":        "menu",
}

// Lookup resolves a semantic key name, case-insensitively
func Lookup(name string) (string, bool) {
	key, ok := keyMap[strings.ToLower(name)]
	return key, ok
}
