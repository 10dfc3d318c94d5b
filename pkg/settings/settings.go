// Package settings manages persistent user settings for the panflow CLI.
package settings

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings holds persistent user preferences
type Settings struct {
	// DefaultConfig is the configuration file to use when --config is
	// not specified
	DefaultConfig string `yaml:"default_config,omitempty"`

	// DeviceType overrides device-type inference (firewall or panorama)
	DeviceType string `yaml:"device_type,omitempty"`

	// Version is the default PAN-OS version for new engines
	Version string `yaml:"panos_version,omitempty"`

	// ConflictStrategy is the default merge conflict strategy
	ConflictStrategy string `yaml:"conflict_strategy,omitempty"`

	// OutputDir is where transformed configurations are written when -o
	// names a bare filename
	OutputDir string `yaml:"output_dir,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "panflow_settings.yaml"
	}
	return filepath.Join(home, ".panflow", "settings.yaml")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// SetDefaultConfig sets the default configuration file
func (s *Settings) SetDefaultConfig(path string) {
	s.DefaultConfig = path
}

// SetDeviceType sets the device type override
func (s *Settings) SetDeviceType(dt string) {
	s.DeviceType = dt
}

// SetVersion sets the default PAN-OS version
func (s *Settings) SetVersion(v string) {
	s.Version = v
}

// GetConflictStrategy returns the conflict strategy (with fallback)
func (s *Settings) GetConflictStrategy() string {
	if s.ConflictStrategy != "" {
		return s.ConflictStrategy
	}
	return "skip"
}

// SetConflictStrategy sets the default conflict strategy
func (s *Settings) SetConflictStrategy(strategy string) {
	s.ConflictStrategy = strategy
}

// SetOutputDir sets the output directory
func (s *Settings) SetOutputDir(dir string) {
	s.OutputDir = dir
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
