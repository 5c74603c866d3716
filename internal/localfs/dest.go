package localfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateName checks a file name taken from a remote key before it is
// joined onto a local directory.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("file name cannot be empty")
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("file name contains a null byte: %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("file name cannot contain path separators: %q", name)
	case name == "." || name == "..":
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}

// ResolvePath expands a leading ~ and returns an absolute path. Symlinks
// in the part of the path that exists are resolved; missing components
// are appended as given.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = home + path[1:]
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	// walk up to the deepest existing ancestor
	current := abs
	var missing []string
	for {
		if _, err := os.Stat(current); err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				resolved = current
			}
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}

// DownloadTarget picks the local path for a download of the object named
// name. out may be empty (current directory), an existing directory, or
// a file path.
func DownloadTarget(name, out string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	dest, err := ResolvePath(out)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", out, err)
	}
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		return filepath.Join(dest, name), nil
	}
	return dest, nil
}
