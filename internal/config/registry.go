package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "probekit"
	configFile = "config.yaml"

	// ConfigPathEnvVar overrides the config file location.
	ConfigPathEnvVar = "PROBEKIT_CONFIG"
)

var (
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
	globalRegistryErr  error

	// Serialises writers within this process
	fileMutex sync.Mutex
)

// GetConfigDir returns the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/probekit or $HOME/.config/probekit
//   - macOS: $HOME/.config/probekit
//   - Windows: %LOCALAPPDATA%\probekit
func GetConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, appName), nil
		}
		profile := os.Getenv("USERPROFILE")
		if profile == "" {
			return "", errors.New("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(profile, "AppData", "Local", appName), nil
	}

	// XDG_CONFIG_HOME is honoured everywhere except macOS, which keeps the
	// plain ~/.config layout.
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && runtime.GOOS != "darwin" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// GetConfigPath returns the config file path, honouring ConfigPathEnvVar.
func GetConfigPath() (string, error) {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// GetGlobalRegistry loads the registry at GetConfigPath once per process.
func GetGlobalRegistry() (*Registry, error) {
	globalRegistryOnce.Do(func() {
		path, err := GetConfigPath()
		if err != nil {
			globalRegistryErr = fmt.Errorf("failed to get config path: %w", err)
			return
		}
		globalRegistry, globalRegistryErr = LoadFile(path)
	})
	return globalRegistry, globalRegistryErr
}

// LoadFile reads a registry from path. A missing file yields a default
// registry.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return parseRegistry(data)
}

func parseRegistry(data []byte) (*Registry, error) {
	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if registry.Version != currentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", registry.Version, currentVersion)
	}

	if registry.Probes == nil {
		registry.Probes = make(map[string]*ProbeMeta)
	}
	if registry.Preferences == nil {
		registry.Preferences = DefaultPreferences()
	}
	registry.Preferences.applyDefaults()

	if err := registry.Preferences.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preferences: %w", err)
	}
	return &registry, nil
}

// Save writes the registry to GetConfigPath.
func (r *Registry) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return r.SaveTo(path)
}

const fileHeader = `# probekit configuration file
#
# probes:       nicknames and last known transport identities, keyed by serial
# preferences:  adapter, log_level and timeouts (durations such as 10s or 1m)
#   server:     listen address and mDNS announcement for 'probekit serve'
#   mqtt:       broker, client_id and topic_prefix; an empty broker disables MQTT
#
`

// SaveTo writes the registry to path through a temporary file and rename, so
// a crash never leaves a truncated config.
func (r *Registry) SaveTo(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append([]byte(fileHeader), data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}
