package view

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jneless/bkp-drive/internal/api"
	"github.com/jneless/bkp-drive/internal/api/apitest"
	"github.com/jneless/bkp-drive/internal/config"
	"github.com/jneless/bkp-drive/internal/models"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1, "1 B"},
		{1023, "1023 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1048576, "1 MB"},
		{1234567, "1.18 MB"},
		{5 * 1024 * 1024 * 1024, "5 GB"},
		{3 * 1024 * 1024 * 1024 * 1024 * 1024, "3072 TB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.in); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKindAndIcon(t *testing.T) {
	tests := []struct {
		name  string
		kind  MediaKind
		icon  string
		glyph string
	}{
		{"photo.JPG", MediaImage, IconImage, "🖼️"},
		{"pic.webp", MediaImage, IconImage, "📄"},
		{"clip.mp4", MediaVideo, IconVideo, "🎬"},
		{"movie.rmvb", MediaVideo, IconVideo, "📄"},
		{"song.mp3", MediaNone, IconFile, "🎵"},
		{"README", MediaNone, IconFile, "📄"},
	}
	for _, tt := range tests {
		if got := KindOf(tt.name); got != tt.kind {
			t.Errorf("KindOf(%q) = %v, want %v", tt.name, got, tt.kind)
		}
		if got := IconFor(tt.name); got != tt.icon {
			t.Errorf("IconFor(%q) = %q, want %q", tt.name, got, tt.icon)
		}
		if got := GlyphFor(tt.name); got != tt.glyph {
			t.Errorf("GlyphFor(%q) = %q, want %q", tt.name, got, tt.glyph)
		}
	}
}

func sampleEntries() []models.Entry {
	mod := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	return []models.Entry{
		{Name: "docs", Key: "docs/", IsFolder: true},
		{Name: "a.png", Key: "a.png", Size: 2048, LastModified: &mod},
		{Name: "b.mov", Key: "b.mov", Size: 10},
		{Name: "c.txt", Key: "c.txt", Size: 0},
	}
}

func TestRender(t *testing.T) {
	sel := map[string]bool{"a.png": true}
	m := Render(sampleEntries(), ModeList, func(k string) bool { return sel[k] })

	if m.Empty || len(m.Items) != 4 {
		t.Fatalf("Render() = %+v", m)
	}
	folder := m.Items[0]
	if folder.Icon != IconFolder || folder.SizeText != "" || folder.DateText != "" || folder.Thumb != MediaNone {
		t.Errorf("folder item = %+v, want folder icon without metadata", folder)
	}
	img := m.Items[1]
	if !img.Checked || img.Thumb != MediaImage || img.ThumbSize != 32 || img.SizeText != "2 KB" || img.DateText != "2024-05-01" {
		t.Errorf("image item = %+v", img)
	}
	if m.Items[2].Thumb != MediaVideo || m.Items[2].Checked {
		t.Errorf("video item = %+v", m.Items[2])
	}
	if m.Items[3].ThumbSize != 0 || m.Items[3].SizeText != "0 B" {
		t.Errorf("plain item = %+v", m.Items[3])
	}

	grid := Render(sampleEntries(), ModeGrid, nil)
	if grid.Items[1].ThumbSize != 128 {
		t.Errorf("grid ThumbSize = %d, want 128", grid.Items[1].ThumbSize)
	}
	if !Render(nil, ModeGrid, nil).Empty {
		t.Error("Render(nil) should be Empty")
	}
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	m := Render(sampleEntries(), ModeList, func(k string) bool { return k == "c.txt" })
	if err := Text(&buf, m, 0); err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"NAME", "docs/", "[x] c.txt", "2 KB", "2024-05-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := Text(&buf, Render(sampleEntries(), ModeGrid, nil), 48); err != nil {
		t.Fatalf("Text(grid) error = %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Errorf("grid output has %d lines, want 2:\n%s", lines, buf.String())
	}

	buf.Reset()
	_ = Text(&buf, Render(nil, ModeList, nil), 0)
	if !strings.Contains(buf.String(), "empty") {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestProcess(t *testing.T) {
	if got := Process(MediaImage, 32); got != "image/resize,w_32" {
		t.Errorf("Process(image) = %q", got)
	}
	if got := Process(MediaVideo, 128); got != "video/snapshot,t_0,w_128,h_128,f_jpg" {
		t.Errorf("Process(video) = %q", got)
	}
	if got := Process(MediaNone, 32); got != "" {
		t.Errorf("Process(none) = %q", got)
	}
}

func TestThumbnailLoader(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.Put("a.png", []byte("png"))
	srv.Put("b.mov", []byte("mov"))
	srv.FailThumb["b.mov"] = true

	cfg := config.NewConfig()
	cfg.BaseURL = srv.BaseURL()
	cfg.RequestsPerSecond = 0
	cfg.Token = apitest.Token
	c, err := api.NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	var mu sync.Mutex
	results := map[string]ThumbResult{}
	loader := NewThumbnailLoader(c, 2, nil, nil)
	batch := loader.Start(context.Background(), Render(sampleEntries(), ModeGrid, nil), func(r ThumbResult) {
		mu.Lock()
		results[r.Key] = r
		mu.Unlock()
	})
	batch.Wait()

	if batch.Len() != 2 {
		t.Errorf("Len() = %d, want 2", batch.Len())
	}
	if r := results["a.png"]; r.Fallback || string(r.Data) != "processed:image/resize,w_128:a.png" {
		t.Errorf("a.png result = %+v", r)
	}
	if r := results["b.mov"]; !r.Fallback || r.Err == nil {
		t.Errorf("b.mov result = %+v, want fallback", r)
	}

	c.SetToken("")
	before := len(srv.Requests())
	batch = loader.Start(context.Background(), Render(sampleEntries(), ModeGrid, nil), nil)
	batch.Wait()
	if batch.Len() != 0 || len(srv.Requests()) != before {
		t.Error("thumbnails fetched without a token")
	}
}

type slowFetcher struct {
	calls   atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
	release chan struct{}
}

func (f *slowFetcher) HasToken() bool { return true }

func (f *slowFetcher) Thumbnail(ctx context.Context, key, process string) ([]byte, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	select {
	case <-f.release:
		return []byte(key), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestThumbnailLoaderBoundsAndDedup(t *testing.T) {
	f := &slowFetcher{release: make(chan struct{})}
	loader := NewThumbnailLoader(f, 2, nil, nil)

	var entries []models.Entry
	for _, n := range []string{"1", "2", "3", "4", "5"} {
		entries = append(entries, models.Entry{Name: n + ".jpg", Key: n + ".jpg"})
	}
	// the same key twice shares one fetch
	entries = append(entries, models.Entry{Name: "1.jpg", Key: "1.jpg"})

	var fallbacks atomic.Int32
	batch := loader.Start(context.Background(), Render(entries, ModeList, nil), func(r ThumbResult) {
		if r.Fallback {
			fallbacks.Add(1)
		}
	})
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	batch.Wait()

	if got := f.maxSeen.Load(); got > 2 {
		t.Errorf("max concurrent fetches = %d, want <= 2", got)
	}
	if got := f.calls.Load(); got > 6 || got < 5 {
		t.Errorf("fetch calls = %d, want 5 or 6", got)
	}
	if fallbacks.Load() != 0 {
		t.Errorf("fallbacks = %d, want 0", fallbacks.Load())
	}

	// cancelled batches degrade to fallbacks without blocking
	f2 := &slowFetcher{release: make(chan struct{})}
	batch = NewThumbnailLoader(f2, 1, nil, nil).Start(context.Background(), Render(entries[:3], ModeList, nil), func(r ThumbResult) {
		if !r.Fallback || !errors.Is(r.Err, context.Canceled) {
			t.Errorf("cancelled result = %+v", r)
		}
	})
	batch.Cancel()
	batch.Wait()
	close(f2.release)
}

func TestThumbnailSharedFetchSurvivesOtherBatchCancel(t *testing.T) {
	f := &slowFetcher{release: make(chan struct{})}
	loader := NewThumbnailLoader(f, 2, nil, nil)
	m := Render([]models.Entry{{Name: "x.jpg", Key: "x.jpg"}}, ModeGrid, nil)

	var gotA, gotB ThumbResult
	a := loader.Start(context.Background(), m, func(r ThumbResult) { gotA = r })
	b := loader.Start(context.Background(), m, func(r ThumbResult) { gotB = r })
	for f.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	a.Cancel()
	a.Wait()
	close(f.release)
	b.Wait()

	if !gotA.Fallback || !errors.Is(gotA.Err, context.Canceled) {
		t.Errorf("cancelled batch result = %+v, want cancelled fallback", gotA)
	}
	if gotB.Fallback || string(gotB.Data) != "x.jpg" {
		t.Errorf("other batch result = %+v, want data %q", gotB, "x.jpg")
	}
	if got := f.calls.Load(); got > 2 {
		t.Errorf("fetch calls = %d, want at most 2", got)
	}
}
