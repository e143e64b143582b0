package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePath_RejectsTraversal(t *testing.T) {
	_, err := ResolvePath("/home/user/../../etc/passwd")
	require.ErrorIs(t, err, ErrPathTraversal)
}

func TestResolvePath_AcceptsHomeConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".config", "streamlinux"), 0o755))

	resolved, err := ResolvePath("~/.config/streamlinux/config.toml")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "streamlinux", "config.toml"), resolved)
}

func TestResolvePath_RejectsDisallowedDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	_, err := ResolvePath("/tmp/other/foo")
	require.ErrorIs(t, err, ErrPathNotAllowed)
}

func TestResolvePath_EmptyPathUsesDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	resolved, err := ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, DefaultPath(), resolved)
}

func TestDefaultPath_PrefersXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	require.Equal(t, "/xdg/streamlinux/config.toml", DefaultPath())
}
