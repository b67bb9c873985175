// Package autostart registers the relay host to start on login.
package autostart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
)

// Label identifies the login item on every platform
const Label = "com.rein.host"

// ErrUnsupported is returned on platforms without a login item mechanism
var ErrUnsupported = errors.New("autostart: unsupported platform")

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

const linuxDesktopEntry = `[Desktop Entry]
Type=Application
Name=Rein input relay
Exec={{.Command}}
X-GNOME-Autostart-enabled=true
NoDisplay=true
`

const windowsStartupScript = "@echo off\r\nstart \"\" {{.Command}}\r\n"

var templates = map[string]*template.Template{
	"darwin":  template.Must(template.New("plist").Parse(macLaunchAgentPlist)),
	"linux":   template.Must(template.New("desktop").Parse(linuxDesktopEntry)),
	"windows": template.Must(template.New("cmd").Parse(windowsStartupScript)),
}

// Launcher writes the login item for one executable
type Launcher struct {
	GOOS string
	Home string
	// ConfigDir is the user config root on linux and %APPDATA% on windows
	ConfigDir string
	Args      []string
}

// New returns a launcher for the running executable started as "host"
func New() (*Launcher, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(home, ".config")
	}

	return &Launcher{
		GOOS:      runtime.GOOS,
		Home:      home,
		ConfigDir: configDir,
		Args:      []string{execPath, "host"},
	}, nil
}

// Path returns where the login item lives
func (l *Launcher) Path() (string, error) {
	switch l.GOOS {
	case "darwin":
		return filepath.Join(l.Home, "Library", "LaunchAgents", Label+".plist"), nil
	case "linux":
		return filepath.Join(l.ConfigDir, "autostart", Label+".desktop"), nil
	case "windows":
		return filepath.Join(l.ConfigDir, "Microsoft", "Windows", "Start Menu", "Programs", "Startup", Label+".cmd"), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, l.GOOS)
	}
}

// Enable writes the login item, replacing any previous one
func (l *Launcher) Enable() error {
	path, err := l.Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := struct {
		Label   string
		Args    []string
		Command string
	}{Label, l.Args, quoteArgs(l.Args)}

	if err := templates[l.GOOS].Execute(f, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Disable removes the login item; a missing item is not an error
func (l *Launcher) Disable() error {
	path, err := l.Path()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsEnabled checks if the login item exists
func (l *Launcher) IsEnabled() bool {
	path, err := l.Path()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if strings.ContainsAny(a, " \t\"") {
			a = `"` + strings.ReplaceAll(a, `"`, `\"`) + `"`
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}
