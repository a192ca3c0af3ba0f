package paths

import (
	"os"
	"path/filepath"
)

const appName = "codewizard"

// ConfigDir returns the codewizard config directory, following XDG conventions:
// $XDG_CONFIG_HOME/codewizard or ~/.config/codewizard as fallback.
func ConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns $XDG_DATA_HOME/codewizard or ~/.local/share/codewizard.
func DataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, fallback)
	}
	return filepath.Join(base, appName), nil
}
