package localfs

import (
	"path"
	"strings"
)

// Filter selects files by glob pattern. Patterns without a "/" match the
// file name; patterns with one match the path below the walk root, where
// "**" spans any number of directories. Exclude wins over Include; an
// empty Include admits everything.
type Filter struct {
	Include []string
	Exclude []string
}

// Empty reports whether the filter admits every file.
func (f Filter) Empty() bool {
	return len(f.Include) == 0 && len(f.Exclude) == 0
}

// Match reports whether the file at rel ("/"-separated, relative to the
// walk root) passes the filter.
func (f Filter) Match(rel string) bool {
	for _, p := range f.Exclude {
		if matchPattern(rel, p) {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, p := range f.Include {
		if matchPattern(rel, p) {
			return true
		}
	}
	return false
}

// ParsePatterns splits a comma-separated pattern list.
func ParsePatterns(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func matchPattern(rel, pattern string) bool {
	pattern = strings.ReplaceAll(pattern, `\`, "/")
	if !strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, path.Base(rel))
		return ok
	}
	return matchSegments(strings.Split(rel, "/"), strings.Split(pattern, "/"))
}

// matchSegments matches path segments against pattern segments; a "**"
// segment consumes zero or more path segments.
func matchSegments(parts, pats []string) bool {
	for len(pats) > 0 {
		if pats[0] == "**" {
			rest := pats[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(parts); i++ {
				if matchSegments(parts[i:], rest) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		if ok, _ := path.Match(pats[0], parts[0]); !ok {
			return false
		}
		parts, pats = parts[1:], pats[1:]
	}
	return len(parts) == 0
}
