package localfs

import (
	"fmt"
	"path/filepath"
)

// UniqueNames returns names with collisions resolved: the first
// occurrence keeps its name, later ones get "_2", "_3", ... inserted
// before the extension. The result has the same order and length.
func UniqueNames(names []string) []string {
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}

	seen := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		if !seen[n] {
			seen[n] = true
			out[i] = n
			continue
		}
		ext := filepath.Ext(n)
		base := n[:len(n)-len(ext)]
		for k := 2; ; k++ {
			candidate := fmt.Sprintf("%s_%d%s", base, k, ext)
			if !taken[candidate] {
				taken[candidate] = true
				seen[candidate] = true
				out[i] = candidate
				break
			}
		}
	}
	return out
}
