// Package models holds the wire and domain types of the drive API.
package models

import (
	"strings"
	"time"
)

// Separator delimits key segments. A key ending in Separator names a folder.
const Separator = "/"

// Entry is one listed object: a file, or a folder identified by its
// trailing-separator key. Folders have size 0 and no timestamp.
type Entry struct {
	Name         string
	Key          string
	IsFolder     bool
	Size         int64
	LastModified *time.Time
}

// FileInfo is a file as returned by GET /files.
type FileInfo struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	ContentType  string    `json:"contentType,omitempty"`
	ETag         string    `json:"etag,omitempty"`
}

// ListResponse is the body of GET /files?prefix=.
type ListResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Error   string     `json:"error,omitempty"`
	Files   []FileInfo `json:"files"`
	Folders []string   `json:"folders"`
	Total   int        `json:"total,omitempty"`
}

// ListResult is one listed prefix: immediate sub-folder names and files.
type ListResult struct {
	Prefix  string
	Folders []string
	Files   []Entry
}

// Entries merges folders and files into one list, folders first.
// Folder keys are built as prefix + name + separator. Files whose key
// ends in the separator (empty folder markers) are dropped.
func (r *ListResult) Entries() []Entry {
	out := make([]Entry, 0, len(r.Folders)+len(r.Files))
	for _, name := range r.Folders {
		name = strings.TrimSuffix(name, Separator)
		if name == "" {
			continue
		}
		out = append(out, Entry{
			Name:     name,
			Key:      r.Prefix + name + Separator,
			IsFolder: true,
		})
	}
	for _, f := range r.Files {
		if IsFolderKey(f.Key) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// FileEntry converts a wire file into an Entry.
func FileEntry(f FileInfo) Entry {
	e := Entry{
		Name: f.Name,
		Key:  f.Key,
		Size: f.Size,
	}
	if e.Name == "" {
		e.Name = BaseName(f.Key)
	}
	if !f.LastModified.IsZero() {
		t := f.LastModified
		e.LastModified = &t
	}
	return e
}

// IsFolderKey reports whether key names a folder.
func IsFolderKey(key string) bool {
	return strings.HasSuffix(key, Separator)
}

// BaseName returns the last segment of key, without a trailing separator.
func BaseName(key string) string {
	key = strings.TrimSuffix(key, Separator)
	if i := strings.LastIndex(key, Separator); i >= 0 {
		return key[i+1:]
	}
	return key
}

// Depth counts the separators of key once its trailing separator is trimmed.
// "a.txt" and "docs/" are depth 0, "docs/b.txt" and "docs/sub/" depth 1.
func Depth(key string) int {
	return strings.Count(strings.TrimSuffix(key, Separator), Separator)
}

// NormalizeFolder turns a user-supplied path into "" (root) or a folder
// key ending in the separator. Leading separators and empty segments are
// dropped.
func NormalizeFolder(p string) string {
	parts := strings.Split(p, Separator)
	kept := parts[:0]
	for _, s := range parts {
		if s != "" && s != "." {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, Separator) + Separator
}

// ParentFolder returns the folder containing key, "" for root-level keys.
func ParentFolder(key string) string {
	key = strings.TrimSuffix(key, Separator)
	if i := strings.LastIndex(key, Separator); i >= 0 {
		return key[:i+1]
	}
	return ""
}
