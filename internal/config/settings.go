package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/waltercore/rastercache/internal/cache"
	"github.com/waltercore/rastercache/pkg/tilecache"
)

// Settings is the daemon's persistent configuration, loaded from a YAML
// file at startup. Unlike pkg/tilecache.Options, which stays permissive so
// embedders can zero-value it, Settings is an external boundary: an unknown
// key in the file is almost always a typo, so LoadSettings rejects it
// outright instead of silently ignoring it.
type Settings struct {
	// MemCapacity is the in-memory budget in bytes. See
	// tilecache.DefaultMemCapacity for the zero-value default.
	MemCapacity int64 `yaml:"memcapacity"`
	// DiskCache enables writing tiles through to disk under CacheDir at add
	// time.
	DiskCache bool `yaml:"diskcache"`
	// EnableAutoFlush starts the idle-triggered background flush.
	EnableAutoFlush bool `yaml:"enableautoflush"`
	// AutoFlushInterval is the idle window before an automatic flush, in
	// milliseconds.
	AutoFlushInterval int `yaml:"autoflushinterval"`

	// CacheDir is where spilled tiles are written. Empty means the
	// OS-specific default cache directory.
	CacheDir string `yaml:"cachedir"`
	// DiagnosticsAddr is the listen address for internal/diagnostics.
	// Empty disables the diagnostics server entirely.
	DiagnosticsAddr string `yaml:"diagnosticsaddr"`
}

// DefaultSettings returns the daemon's settings before any file is loaded.
func DefaultSettings() *Settings {
	return &Settings{
		MemCapacity:       tilecache.DefaultMemCapacity,
		DiskCache:         true,
		EnableAutoFlush:   true,
		AutoFlushInterval: int(tilecache.DefaultAutoFlushInterval.Milliseconds()),
		CacheDir:          cache.GetCacheDir(),
		DiagnosticsAddr:   "127.0.0.1:8787",
	}
}

// GetSettingsPath returns the default location of the settings file.
func GetSettingsPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "config: resolve home directory")
	}
	return filepath.Join(homeDir, ".rastercache", "settings.yaml"), nil
}

// LoadSettings reads and validates settings from path, layering them over
// DefaultSettings. A missing file is not an error; it yields the defaults.
// An unrecognized key in the file is an error, since UnmarshalStrict is
// used deliberately to catch config typos early.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "config: read settings file")
	}

	if err := yaml.UnmarshalStrict(data, settings); err != nil {
		return nil, errors.Wrap(err, "config: parse settings file")
	}
	return settings, nil
}

// SaveSettings writes settings to path as YAML, creating its parent
// directory if necessary.
func SaveSettings(path string, settings *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "config: create settings directory")
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "config: marshal settings")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "config: write settings file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "config: commit settings file")
	}
	return nil
}
