package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/jneless/bkp-drive/internal/constants"
)

// AppDir is the directory name under the user config root.
const AppDir = "bkp-drive"

// ConfigDir returns the platform-appropriate config directory.
//   - Windows: %USERPROFILE%\.config\bkp-drive
//   - Unix: ~/.config/bkp-drive
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
		return filepath.Join(userProfile, ".config", AppDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppDir), nil
}

// DefaultConfigPath returns the default path of the INI config file.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config"), nil
}

// DefaultStateDir returns where the bbolt session and persistent stores live.
func DefaultStateDir() string {
	dir, err := ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppDir, constants.StateDirName)
	}
	return filepath.Join(dir, constants.StateDirName)
}

// EnsureDir creates dir with owner-only permissions.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}
