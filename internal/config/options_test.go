package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptions_ValidateRejectsOutOfRangeFields(t *testing.T) {
	opts := Default()
	opts.Display.Monitor = 999
	require.Error(t, opts.Validate())

	opts = Default()
	opts.Video.FPS = 0
	require.Error(t, opts.Validate())

	opts = Default()
	opts.Network.Port = 80
	require.Error(t, opts.Validate())
}

func TestSaveLoad_RoundTripsThroughTOML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	path := filepath.Join(home, ".config", "streamlinux", "config.toml")
	opts := Default()
	opts.Video.Width = 2560
	opts.Video.Height = 1440
	opts.Logging.Level = "debug"

	require.NoError(t, Save(path, opts))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2560, loaded.Video.Width)
	require.Equal(t, 1440, loaded.Video.Height)
	require.Equal(t, "debug", loaded.Logging.Level)
}

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	loaded, err := Load(filepath.Join(home, ".config", "streamlinux", "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), loaded)
}

func TestSave_RejectsInvalidOptions(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	opts := Default()
	opts.Video.BitrateBps = 1
	err := Save(filepath.Join(home, ".config", "streamlinux", "config.toml"), opts)
	require.Error(t, err)
}
