package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	got, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), got)
}

func TestSaveAndLoadSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	want := DefaultSettings()
	want.MemCapacity = 128 * 1024 * 1024
	want.DiagnosticsAddr = "0.0.0.0:9000"

	require.NoError(t, SaveSettings(path, want))

	got, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadSettingsRejectsUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("memcapacity: 1024\nbogusfield: true\n"), 0o644))

	_, err := LoadSettings(path)
	assert.Error(t, err)
}

func TestLoadSettingsPartialOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("diagnosticsaddr: \"\"\n"), 0o644))

	got, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Empty(t, got.DiagnosticsAddr)
	assert.Equal(t, DefaultSettings().MemCapacity, got.MemCapacity)
}
