package localfs

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
)

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{".hidden", true},
		{"visible.txt", false},
		{"/path/to/.hidden", true},
		{"../visible.txt", false},
		{"..", false},
		{".", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsHidden(tt.path); got != tt.expected {
				t.Errorf("IsHidden(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCollectFiles(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "album")
	writeTree(t, root, map[string]string{
		"root.txt":      "r",
		"d1/x.txt":      "xx",
		"d1/d2/y.txt":   "yyy",
		".secret":       "s",
		".git/config":   "c",
		"d1/.cache/z.o": "z",
	})

	files, err := CollectFiles(root, WalkOptions{})
	if err != nil {
		t.Fatalf("CollectFiles() error = %v", err)
	}
	var rels []string
	for _, f := range files {
		rels = append(rels, f.Rel)
	}
	want := []string{"album/d1/d2/y.txt", "album/d1/x.txt", "album/root.txt"}
	if !reflect.DeepEqual(rels, want) {
		t.Errorf("Rel paths = %v, want %v", rels, want)
	}
	if files[0].Size != 3 {
		t.Errorf("Size = %d, want 3", files[0].Size)
	}

	all, err := CollectFiles(root, WalkOptions{IncludeHidden: true})
	if err != nil {
		t.Fatalf("CollectFiles(hidden) error = %v", err)
	}
	if len(all) != 6 {
		t.Errorf("CollectFiles(hidden) found %d files, want 6", len(all))
	}
}

func TestWalkSkipsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on Windows")
	}
	tmp := t.TempDir()
	root := filepath.Join(tmp, "src")
	writeTree(t, root, map[string]string{"a.txt": "a"})
	writeTree(t, tmp, map[string]string{"outside/b.txt": "b"})
	if err := os.Symlink(filepath.Join(tmp, "outside"), filepath.Join(root, "link")); err != nil {
		t.Fatal(err)
	}

	files, err := CollectFiles(root, WalkOptions{})
	if err != nil {
		t.Fatalf("CollectFiles() error = %v", err)
	}
	if len(files) != 1 || files[0].Rel != "src/a.txt" {
		t.Errorf("files = %+v, want only src/a.txt", files)
	}
}

func TestWalkErrors(t *testing.T) {
	tmp := t.TempDir()
	if _, err := CollectFiles(filepath.Join(tmp, "missing"), WalkOptions{}); err == nil {
		t.Error("CollectFiles(missing) should fail")
	}
	writeTree(t, tmp, map[string]string{"file.txt": "f"})
	if _, err := CollectFiles(filepath.Join(tmp, "file.txt"), WalkOptions{}); err == nil {
		t.Error("CollectFiles(file) should fail")
	}

	root := filepath.Join(tmp, "tree")
	writeTree(t, root, map[string]string{"skip/a.txt": "a", "keep/b.txt": "b"})
	var seen []string
	err := Walk(root, WalkOptions{}, func(e FileEntry) error {
		if e.IsDir && e.Name == "skip" {
			return filepath.SkipDir
		}
		seen = append(seen, e.Rel)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	want := []string{"tree", "tree/keep", "tree/keep/b.txt"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("Walk() visited %v, want %v", seen, want)
	}
}

func TestFilterMatch(t *testing.T) {
	f := Filter{
		Include: []string{"*.jpg", "raw/**/*.dng"},
		Exclude: []string{"thumb_*", "**/tmp/**"},
	}
	tests := []struct {
		rel  string
		want bool
	}{
		{"a.jpg", true},
		{"trip/day1/a.jpg", true},
		{"thumb_a.jpg", false},
		{"trip/tmp/a.jpg", false},
		{"raw/x.dng", true},
		{"raw/2024/05/x.dng", true},
		{"other/x.dng", false},
		{"notes.txt", false},
	}
	for _, tt := range tests {
		if got := f.Match(tt.rel); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}

	if !(Filter{}).Match("anything/at/all") {
		t.Error("empty filter should admit everything")
	}
}

func TestParsePatterns(t *testing.T) {
	got := ParsePatterns(" *.jpg, ,raw/** ,")
	want := []string{"*.jpg", "raw/**"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParsePatterns() = %v, want %v", got, want)
	}
	if got := ParsePatterns(""); got != nil {
		t.Errorf("ParsePatterns(\"\") = %v, want nil", got)
	}
}

func TestCollectFilesFiltered(t *testing.T) {
	root := filepath.Join(t.TempDir(), "album")
	for _, p := range []string{"a.jpg", "b.txt", "sub/c.jpg", "tmp/d.jpg"} {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(p), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := CollectFiles(root, WalkOptions{Filter: Filter{
		Include: []string{"*.jpg"},
		Exclude: []string{"tmp/**"},
	}})
	if err != nil {
		t.Fatalf("CollectFiles() error = %v", err)
	}
	var rels []string
	for _, f := range files {
		rels = append(rels, f.Rel)
	}
	want := []string{"album/a.jpg", "album/sub/c.jpg"}
	if !reflect.DeepEqual(rels, want) {
		t.Errorf("CollectFiles() = %v, want %v", rels, want)
	}
}
