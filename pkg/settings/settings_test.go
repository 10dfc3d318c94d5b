package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSettings_Defaults(t *testing.T) {
	s := &Settings{}

	// Test default conflict strategy
	if got := s.GetConflictStrategy(); got != "skip" {
		t.Errorf("GetConflictStrategy() default = %q, want %q", got, "skip")
	}

	// Test empty defaults
	if s.DefaultConfig != "" {
		t.Errorf("DefaultConfig should be empty, got %q", s.DefaultConfig)
	}
	if s.DeviceType != "" {
		t.Errorf("DeviceType should be empty, got %q", s.DeviceType)
	}
}

func TestSettings_SettersGetters(t *testing.T) {
	s := &Settings{}

	s.SetDefaultConfig("running-config.xml")
	if s.DefaultConfig != "running-config.xml" {
		t.Errorf("SetDefaultConfig() failed, got %q", s.DefaultConfig)
	}

	s.SetDeviceType("panorama")
	if s.DeviceType != "panorama" {
		t.Errorf("SetDeviceType() failed, got %q", s.DeviceType)
	}

	s.SetVersion("10.2")
	if s.Version != "10.2" {
		t.Errorf("SetVersion() failed, got %q", s.Version)
	}

	s.SetConflictStrategy("merge")
	if s.GetConflictStrategy() != "merge" {
		t.Errorf("SetConflictStrategy() failed, got %q", s.GetConflictStrategy())
	}
}

func TestSettings_Clear(t *testing.T) {
	s := &Settings{
		DefaultConfig:    "config.xml",
		DeviceType:       "firewall",
		Version:          "11.0",
		ConflictStrategy: "rename",
	}

	s.Clear()

	if s.DefaultConfig != "" || s.DeviceType != "" || s.Version != "" || s.ConflictStrategy != "" {
		t.Error("Clear() should reset all fields to empty")
	}
}

func TestSettings_SaveLoad(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "panflow-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "settings.yaml")

	original := &Settings{
		DefaultConfig:    "panorama.xml",
		DeviceType:       "panorama",
		Version:          "10.2",
		ConflictStrategy: "merge",
	}

	if err := original.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}

	if loaded.DefaultConfig != original.DefaultConfig {
		t.Errorf("DefaultConfig mismatch: got %q, want %q", loaded.DefaultConfig, original.DefaultConfig)
	}
	if loaded.DeviceType != original.DeviceType {
		t.Errorf("DeviceType mismatch: got %q, want %q", loaded.DeviceType, original.DeviceType)
	}
	if loaded.Version != original.Version {
		t.Errorf("Version mismatch: got %q, want %q", loaded.Version, original.Version)
	}
	if loaded.ConflictStrategy != original.ConflictStrategy {
		t.Errorf("ConflictStrategy mismatch: got %q, want %q", loaded.ConflictStrategy, original.ConflictStrategy)
	}
}

func TestSettings_LoadNonExistent(t *testing.T) {
	// Load from non-existent path should return empty settings
	s, err := LoadFrom("/nonexistent/path/settings.yaml")
	if err != nil {
		t.Fatalf("LoadFrom() non-existent should not error: %v", err)
	}
	if s == nil {
		t.Fatal("LoadFrom() should return non-nil Settings")
	}
	if s.DefaultConfig != "" || s.DeviceType != "" {
		t.Error("LoadFrom() non-existent should return empty settings")
	}
}

func TestSettings_LoadInvalidYAML(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "panflow-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "settings.yaml")
	if err := os.WriteFile(path, []byte(":\tnot yaml {"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	_, err = LoadFrom(path)
	if err == nil {
		t.Error("LoadFrom() with invalid YAML should error")
	}
}

func TestSettings_SaveCreatesDirectory(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "panflow-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Path with non-existent directory
	path := filepath.Join(tmpDir, "subdir", "nested", "settings.yaml")

	s := &Settings{DefaultConfig: "test.xml"}
	if err := s.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() should create directories: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("SaveTo() should have created the file")
	}
}

func TestDefaultSettingsPath(t *testing.T) {
	path := DefaultSettingsPath()
	if path == "" {
		t.Error("DefaultSettingsPath() should not be empty")
	}
	if !filepath.IsAbs(path) && path != "panflow_settings.yaml" {
		t.Errorf("DefaultSettingsPath() should be absolute or fallback, got %q", path)
	}
}

func TestLoad(t *testing.T) {
	originalHome := os.Getenv("HOME")
	defer os.Setenv("HOME", originalHome)

	tmpDir, err := os.MkdirTemp("", "panflow-test-home-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	os.Setenv("HOME", tmpDir)

	// Test Load() with non-existent settings (should return empty)
	s, err := Load()
	if err != nil {
		t.Fatalf("Load() with non-existent file should not error: %v", err)
	}
	if s == nil {
		t.Fatal("Load() should return non-nil Settings")
	}
	if s.DefaultConfig != "" {
		t.Error("Load() with non-existent file should return empty settings")
	}

	// Create .panflow directory and settings file
	panflowDir := filepath.Join(tmpDir, ".panflow")
	if err := os.MkdirAll(panflowDir, 0755); err != nil {
		t.Fatalf("Failed to create .panflow dir: %v", err)
	}

	settingsPath := filepath.Join(panflowDir, "settings.yaml")
	testSettings := "default_config: fw1.xml\ndevice_type: firewall\n"
	if err := os.WriteFile(settingsPath, []byte(testSettings), 0644); err != nil {
		t.Fatalf("Failed to write test settings: %v", err)
	}

	s, err = Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if s.DefaultConfig != "fw1.xml" {
		t.Errorf("Load() DefaultConfig = %q, want %q", s.DefaultConfig, "fw1.xml")
	}
	if s.DeviceType != "firewall" {
		t.Errorf("Load() DeviceType = %q, want %q", s.DeviceType, "firewall")
	}
}

func TestSave(t *testing.T) {
	originalHome := os.Getenv("HOME")
	defer os.Setenv("HOME", originalHome)

	tmpDir, err := os.MkdirTemp("", "panflow-test-home-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	os.Setenv("HOME", tmpDir)

	s := &Settings{
		DefaultConfig: "saved.xml",
		DeviceType:    "panorama",
	}

	if err := s.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	expectedPath := filepath.Join(tmpDir, ".panflow", "settings.yaml")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Save() did not create file at %s", expectedPath)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() after Save() failed: %v", err)
	}
	if loaded.DefaultConfig != "saved.xml" {
		t.Errorf("After Save(), DefaultConfig = %q, want %q", loaded.DefaultConfig, "saved.xml")
	}
	if loaded.DeviceType != "panorama" {
		t.Errorf("After Save(), DeviceType = %q, want %q", loaded.DeviceType, "panorama")
	}
}

func TestDefaultSettingsPath_NoHome(t *testing.T) {
	originalHome := os.Getenv("HOME")
	defer os.Setenv("HOME", originalHome)

	os.Unsetenv("HOME")

	path := DefaultSettingsPath()
	if path != "panflow_settings.yaml" {
		t.Errorf("DefaultSettingsPath() with no HOME = %q, want %q", path, "panflow_settings.yaml")
	}
}

func TestLoadFrom_ReadError(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "panflow-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Create a directory where the file should be (causes "is a directory" error)
	dirAsFile := filepath.Join(tmpDir, "settings.yaml")
	if err := os.Mkdir(dirAsFile, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	_, err = LoadFrom(dirAsFile)
	if err == nil {
		t.Error("LoadFrom() should error when path is a directory")
	}
}

func TestSaveTo_MkdirError(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "panflow-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Create a file where we want a directory to be (causes MkdirAll to fail)
	blockingFile := filepath.Join(tmpDir, "blocker")
	if err := os.WriteFile(blockingFile, []byte("blocking"), 0644); err != nil {
		t.Fatalf("Failed to create blocking file: %v", err)
	}

	path := filepath.Join(blockingFile, "subdir", "settings.yaml")
	s := &Settings{DefaultConfig: "test.xml"}

	err = s.SaveTo(path)
	if err == nil {
		t.Error("SaveTo() should fail when directory creation fails")
	}
}
