// Package localfs walks local directories for folder uploads.
package localfs

import (
	"path/filepath"
	"strings"
)

// IsHidden reports whether the base name of path starts with a dot.
func IsHidden(path string) bool {
	return IsHiddenName(filepath.Base(path))
}

// IsHiddenName reports whether name is a dot file. "." and ".." are not hidden.
func IsHiddenName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}
