// Package config provides the runtime configuration store for the Rein host.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	// DefaultPort is the listening port used when the config file omits frontendPort
	DefaultPort = 3000

	// DefaultSensitivity is the pointer multiplier used when mouseSensitivity is absent
	DefaultSensitivity = 1.0

	fileName = "server-config.json"
)

var (
	// ErrInvalidPort is returned when a port is outside 1..65535
	ErrInvalidPort = errors.New("port must be between 1 and 65535")

	// ErrInvalidSensitivity is returned when the sensitivity is not strictly positive
	ErrInvalidSensitivity = errors.New("mouse sensitivity must be greater than zero")
)

// Config represents the negotiated runtime parameters of the host
type Config struct {
	// FrontendPort is the port the host listens on for /ws
	FrontendPort int `json:"frontendPort"`

	// MouseInvert flips scroll and zoom direction
	MouseInvert bool `json:"mouseInvert"`

	// MouseSensitivity multiplies every relative pointer move
	MouseSensitivity float64 `json:"mouseSensitivity"`
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	FrontendPort     *int     `json:"frontendPort,omitempty"`
	MouseInvert      *bool    `json:"mouseInvert,omitempty"`
	MouseSensitivity *float64 `json:"mouseSensitivity,omitempty"`
}

// DefaultConfig returns a Config with the documented defaults
func DefaultConfig() Config {
	return Config{
		FrontendPort:     DefaultPort,
		MouseInvert:      false,
		MouseSensitivity: DefaultSensitivity,
	}
}

// Validate checks the port and sensitivity ranges
func (c Config) Validate() error {
	if err := ValidatePort(c.FrontendPort); err != nil {
		return err
	}
	return ValidateSensitivity(c.MouseSensitivity)
}

// InvertMultiplier returns -1 when inversion is enabled, else 1
func (c Config) InvertMultiplier() float64 {
	if c.MouseInvert {
		return -1
	}
	return 1
}

// ValidatePort reports whether p is a usable TCP port
func ValidatePort(p int) error {
	if p < 1 || p > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, p)
	}
	return nil
}

// ValidateSensitivity reports whether s is a usable multiplier
func ValidateSensitivity(s float64) error {
	if !(s > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSensitivity, s)
	}
	return nil
}

// Validate checks every field that is set
func (p Patch) Validate() error {
	if p.FrontendPort != nil {
		if err := ValidatePort(*p.FrontendPort); err != nil {
			return err
		}
	}
	if p.MouseSensitivity != nil {
		if err := ValidateSensitivity(*p.MouseSensitivity); err != nil {
			return err
		}
	}
	return nil
}

// IsEmpty reports whether the patch sets nothing
func (p Patch) IsEmpty() bool {
	return p.FrontendPort == nil && p.MouseInvert == nil && p.MouseSensitivity == nil
}

// applyTo returns c with the patch merged in
func (p Patch) applyTo(c Config) Config {
	if p.FrontendPort != nil {
		c.FrontendPort = *p.FrontendPort
	}
	if p.MouseInvert != nil {
		c.MouseInvert = *p.MouseInvert
	}
	if p.MouseSensitivity != nil {
		c.MouseSensitivity = *p.MouseSensitivity
	}
	return c
}

// fileConfig mirrors the on-disk document where every field is optional
type fileConfig struct {
	FrontendPort     *int     `json:"frontendPort"`
	MouseInvert      *bool    `json:"mouseInvert"`
	MouseSensitivity *float64 `json:"mouseSensitivity"`
}

// Manager holds the process-wide Config and persists it to a flat JSON file
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     Config
	onChanged  func(old, updated Config)
}

// NewManager creates a manager bound to path. An empty path selects the
// platform default location.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}, nil
}

// NewMemoryManager creates a manager that never touches disk
func NewMemoryManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// DefaultPath returns the platform config location for server-config.json
func DefaultPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "rein")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "rein")
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".config")
		}
		configDir = filepath.Join(base, "rein")
	}

	return filepath.Join(configDir, fileName), nil
}

// Path returns the backing file, empty for memory managers
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk. A missing file keeps the defaults.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.configPath == "" {
		return nil
	}

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		log.Printf("Config: %s not found, using defaults", m.configPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", m.configPath, err)
	}

	cfg := Patch(fc).applyTo(DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", m.configPath, err)
	}
	m.config = cfg
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.configPath == "" {
		return nil
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}

	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns a snapshot of the current configuration
func (m *Manager) Get() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Apply merges a patch into the configuration and returns the previous and
// resulting values. Invalid patches leave the configuration untouched.
func (m *Manager) Apply(p Patch) (old, updated Config, err error) {
	if err := p.Validate(); err != nil {
		return Config{}, Config{}, err
	}

	m.mu.Lock()
	old = m.config
	m.config = p.applyTo(old)
	updated = m.config
	cb := m.onChanged
	m.mu.Unlock()

	if cb != nil && old != updated {
		cb(old, updated)
	}
	return old, updated, nil
}

// RegisterChangeCallback registers a function to be called when Apply changes the config
func (m *Manager) RegisterChangeCallback(fn func(old, updated Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
