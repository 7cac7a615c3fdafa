package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded is a resolved, validated configuration and where it came from.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	// Exists is false when the default location has no file and defaults apply.
	Exists bool
}

// Load reads the config file on top of Default. A missing file at the default
// location is normal; a missing file the user named is an error.
func Load(flag string) (Loaded, error) {
	path, explicit, err := ResolvePath(flag)
	if err != nil {
		return Loaded{}, err
	}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return Loaded{Path: path, Config: Default()}, nil
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, warnings, err := Parse(string(content), Default())
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return Loaded{Path: path, Config: cfg, Warnings: warnings, Exists: true}, nil
}
