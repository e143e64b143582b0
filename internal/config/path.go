// Package config implements TOML-backed Options (pelletier/go-toml/v2)
// and path-safety validation, ground-truthed on
// original_source/linux-host/src/cli/config_manager.cpp's
// validate_config_path/get_default_path.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathTraversal/ErrPathNotAllowed report path-safety rejections.
var (
	ErrPathTraversal  = fmt.Errorf("config: path traversal sequences not allowed")
	ErrPathNotAllowed = fmt.Errorf("config: path must be in an allowed config directory")
)

// ResolvePath validates and canonicalizes a config file path per
// spec §6: reject "..", require the resolved path fall under
// $XDG_CONFIG_HOME or ~/.config/, ~/.local/, /etc/streamlinux/, or
// /tmp/streamlinux/. An empty path resolves to DefaultPath().
func ResolvePath(path string) (string, error) {
	if path == "" {
		return DefaultPath(), nil
	}
	if strings.Contains(path, "..") {
		return "", ErrPathTraversal
	}

	canonical, err := canonicalize(path)
	if err != nil {
		canonical = path
	}

	for _, prefix := range allowedPrefixes() {
		if strings.HasPrefix(canonical, prefix) {
			return canonical, nil
		}
	}
	return "", ErrPathNotAllowed
}

func canonicalize(path string) (string, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return "", err
	}
	if info, statErr := os.Stat(expanded); statErr == nil {
		_ = info
		return filepath.EvalSymlinks(expanded)
	}
	parent := filepath.Dir(expanded)
	if _, statErr := os.Stat(parent); statErr == nil {
		resolvedParent, err := filepath.EvalSymlinks(parent)
		if err != nil {
			return expanded, nil
		}
		return filepath.Join(resolvedParent, filepath.Base(expanded)), nil
	}
	return expanded, nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return filepath.Abs(path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}

func allowedPrefixes() []string {
	var prefixes []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		prefixes = append(prefixes, filepath.Join(xdg, "streamlinux")+string(filepath.Separator))
	}
	if home, err := os.UserHomeDir(); err == nil {
		prefixes = append(prefixes,
			filepath.Join(home, ".config")+string(filepath.Separator),
			filepath.Join(home, ".local")+string(filepath.Separator),
		)
	}
	prefixes = append(prefixes,
		"/etc/streamlinux/",
		"/tmp/streamlinux/",
	)
	return prefixes
}

// DefaultPath returns $XDG_CONFIG_HOME/streamlinux/config.toml, falling
// back to ~/.config/streamlinux/config.toml, then /etc/streamlinux/config.toml.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "streamlinux", "config.toml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "streamlinux", "config.toml")
	}
	return "/etc/streamlinux/config.toml"
}
