// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

// Package xdg resolves XDG Base Directory paths for mydex.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "mydex"

// ConfigDir returns the mydex config directory.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ExistingConfigFile returns ConfigFile() when it exists, or "" when it
// does not. Other stat failures are returned.
func ExistingConfigFile() (string, error) {
	path := ConfigFile()
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", oops.Code("CONFIG_STAT_FAILED").With("path", path).Wrap(err)
	}
	if info.IsDir() {
		return "", oops.Code("CONFIG_STAT_FAILED").With("path", path).Errorf("%s is a directory", path)
	}
	return path, nil
}
