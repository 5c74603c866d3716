package localfs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WalkOptions configures Walk.
type WalkOptions struct {
	// IncludeHidden includes dot files and dot directories.
	IncludeHidden bool
	// Filter restricts the files reported by WalkFiles.
	Filter Filter
}

// FileEntry is a file or directory found by Walk.
type FileEntry struct {
	Path    string // path on disk
	Rel     string // "/"-separated, relative to the parent of the walk root
	Name    string
	Size    int64 // 0 for directories
	IsDir   bool
	ModTime time.Time
}

// WalkFunc is called for each entry. Returning filepath.SkipDir for a
// directory skips its contents; any other error stops the walk.
type WalkFunc func(entry FileEntry) error

// Walk visits root and everything below it, directories before their
// contents, in lexical order. Symlinks are not followed or reported, and
// unreadable entries are skipped. Rel paths start with the root's own
// name, the way a browser folder picker reports them.
func Walk(root string, opts WalkOptions, fn WalkFunc) error {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}
	parent := filepath.Dir(root)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		name := d.Name()
		if path != root && !opts.IncludeHidden && IsHiddenName(name) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return nil
		}

		entry := FileEntry{
			Path:    path,
			Rel:     filepath.ToSlash(rel),
			Name:    name,
			IsDir:   d.IsDir(),
			ModTime: info.ModTime(),
		}
		if !entry.IsDir {
			entry.Size = info.Size()
		}
		return fn(entry)
	})
}

// WalkFiles is Walk restricted to regular files passing opts.Filter.
func WalkFiles(root string, opts WalkOptions, fn WalkFunc) error {
	return Walk(root, opts, func(entry FileEntry) error {
		if entry.IsDir {
			return nil
		}
		if !opts.Filter.Empty() {
			// drop the root's own name
			_, below, _ := strings.Cut(entry.Rel, "/")
			if !opts.Filter.Match(below) {
				return nil
			}
		}
		return fn(entry)
	})
}

// CollectFiles returns every regular file under root in walk order.
func CollectFiles(root string, opts WalkOptions) ([]FileEntry, error) {
	var files []FileEntry
	err := WalkFiles(root, opts, func(entry FileEntry) error {
		files = append(files, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
