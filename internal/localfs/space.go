package localfs

import (
	"fmt"
	"path/filepath"
)

// SpaceMargin is applied to the required size when checking free space.
const SpaceMargin = 1.1

// InsufficientSpaceError reports that a file would not fit on its disk.
type InsufficientSpaceError struct {
	Path      string
	Required  int64
	Available int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space for %s: need %.2f MiB, have %.2f MiB available",
		e.Path, float64(e.Required)/(1024*1024), float64(e.Available)/(1024*1024))
}

// CheckSpace reports whether required bytes (plus SpaceMargin) fit on the
// filesystem that will hold target. target itself need not exist. When
// the free space cannot be determined the check passes.
func CheckSpace(target string, required int64) error {
	if required <= 0 {
		return nil
	}
	available := AvailableSpace(filepath.Dir(target))
	if available <= 0 {
		return nil
	}
	need := int64(float64(required) * SpaceMargin)
	if available < need {
		return &InsufficientSpaceError{Path: target, Required: need, Available: available}
	}
	return nil
}
