// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package config

import (
	"os"
	"path/filepath"
)

const appName = "gatekeep"

// Dir returns the XDG config directory for gatekeep.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultPath is the config file Load reads when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// resolvePath returns path, or DefaultPath when path is empty and that file
// exists, or "" when there is no file to read.
func resolvePath(path string) string {
	if path != "" {
		return path
	}
	if _, err := os.Stat(DefaultPath()); err == nil {
		return DefaultPath()
	}
	return ""
}
