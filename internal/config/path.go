package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EnvPath names an environment variable that points at the config file.
const EnvPath = "HIFZ_CONFIG"

// ResolvePath picks the config location: the --config value, then $HIFZ_CONFIG,
// then the XDG or home default. explicit reports whether the user named the file.
func ResolvePath(flag string) (path string, explicit bool, err error) {
	if p := strings.TrimSpace(flag); p != "" {
		return p, true, nil
	}
	if p := strings.TrimSpace(os.Getenv(EnvPath)); p != "" {
		return p, true, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "hifz", "config.jsonc"), false, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", "hifz", "config.jsonc"), false, nil
}
