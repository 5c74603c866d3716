// Package view maps a directory listing to a display model. Rendering is
// pure; thumbnails are fetched separately by ThumbnailLoader.
package view

import (
	"math"
	"strconv"
	"strings"

	"github.com/jneless/bkp-drive/internal/constants"
	"github.com/jneless/bkp-drive/internal/models"
)

// Mode is the listing layout.
type Mode string

const (
	ModeList Mode = "list"
	ModeGrid Mode = "grid"
)

// MediaKind says which thumbnail, if any, an entry gets.
type MediaKind int

const (
	MediaNone MediaKind = iota
	MediaImage
	MediaVideo
)

func (k MediaKind) String() string {
	switch k {
	case MediaImage:
		return "image"
	case MediaVideo:
		return "video"
	}
	return "none"
}

// Icon classes.
const (
	IconFolder = "folder"
	IconImage  = "image"
	IconVideo  = "video"
	IconFile   = "file"
)

// Item is one rendered entry.
type Item struct {
	Key       string
	Name      string
	IsFolder  bool
	Icon      string
	Glyph     string
	Thumb     MediaKind
	ThumbSize int
	SizeText  string
	DateText  string
	Checked   bool
}

// Model is a rendered listing.
type Model struct {
	Mode  Mode
	Items []Item
	Empty bool
}

// DateLayout formats modification dates.
const DateLayout = "2006-01-02"

var glyphs = map[string]string{
	"txt": "📄", "doc": "📄", "docx": "📄", "pdf": "📄",
	"jpg": "🖼️", "jpeg": "🖼️", "png": "🖼️", "gif": "🖼️",
	"mp4": "🎬", "avi": "🎬", "mov": "🎬",
	"mp3": "🎵", "wav": "🎵", "flac": "🎵",
	"zip": "📦", "rar": "📦", "7z": "📦",
	"js": "📜", "html": "📜", "css": "📜", "json": "📜",
}

const (
	folderGlyph  = "📁"
	defaultGlyph = "📄"
)

// Render builds the display model. selected may be nil.
func Render(entries []models.Entry, mode Mode, selected func(key string) bool) Model {
	m := Model{Mode: mode, Items: make([]Item, 0, len(entries)), Empty: len(entries) == 0}
	thumbSize := ThumbSize(mode)

	for _, e := range entries {
		it := Item{
			Key:      e.Key,
			Name:     e.Name,
			IsFolder: e.IsFolder,
			Checked:  selected != nil && selected(e.Key),
		}
		if e.IsFolder {
			it.Icon, it.Glyph = IconFolder, folderGlyph
			m.Items = append(m.Items, it)
			continue
		}

		it.Glyph = GlyphFor(e.Name)
		it.Thumb = KindOf(e.Name)
		it.Icon = IconFor(e.Name)
		if it.Thumb != MediaNone {
			it.ThumbSize = thumbSize
		}
		it.SizeText = FormatSize(e.Size)
		if e.LastModified != nil && !e.LastModified.IsZero() {
			it.DateText = e.LastModified.Local().Format(DateLayout)
		}
		m.Items = append(m.Items, it)
	}
	return m
}

// ThumbSize returns the thumbnail edge length for mode.
func ThumbSize(mode Mode) int {
	if mode == ModeGrid {
		return constants.GridThumbnailSize
	}
	return constants.ListThumbnailSize
}

// Ext returns the lower-cased extension of name without the dot.
func Ext(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// KindOf classifies a file name by extension.
func KindOf(name string) MediaKind {
	ext := Ext(name)
	for _, e := range constants.ImageExtensions {
		if ext == e {
			return MediaImage
		}
	}
	for _, e := range constants.VideoExtensions {
		if ext == e {
			return MediaVideo
		}
	}
	return MediaNone
}

// IconFor returns the icon class of a file name.
func IconFor(name string) string {
	switch KindOf(name) {
	case MediaImage:
		return IconImage
	case MediaVideo:
		return IconVideo
	}
	return IconFile
}

// GlyphFor returns the fallback glyph of a file name.
func GlyphFor(name string) string {
	if g, ok := glyphs[Ext(name)]; ok {
		return g
	}
	return defaultGlyph
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatSize renders bytes in binary units with at most two decimals,
// e.g. "0 B", "1 KB", "1.5 MB".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}
