// Package preview opens remote images as decoded, explicitly released handles.
package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/jneless/bkp-drive/internal/logging"
	"github.com/jneless/bkp-drive/internal/view"
)

// ErrClosed is returned when a released handle is used.
var ErrClosed = errors.New("preview closed")

// Source downloads objects. *api.Client implements it.
type Source interface {
	Download(ctx context.Context, key, process string) (io.ReadCloser, int64, error)
}

// Handle is a decoded image. It holds the pixels until Close.
type Handle struct {
	Key    string
	Format string

	mu  sync.Mutex
	img image.Image
}

// Open downloads key and decodes it. The download is released on every
// path; only the decoded image outlives the call.
func Open(ctx context.Context, src Source, key string) (*Handle, error) {
	if view.KindOf(key) != view.MediaImage {
		return nil, fmt.Errorf("preview %s: not an image", key)
	}

	body, _, err := src.Download(ctx, key, "")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	img, format, err := image.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("preview %s: failed to decode image: %w", key, err)
	}
	return &Handle{Key: key, Format: format, img: img}, nil
}

// Image returns the decoded image, or ErrClosed.
func (h *Handle) Image() (image.Image, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.img == nil {
		return nil, ErrClosed
	}
	return h.img, nil
}

// Bounds returns the image size, zero once closed.
func (h *Handle) Bounds() image.Rectangle {
	img, err := h.Image()
	if err != nil {
		return image.Rectangle{}
	}
	return img.Bounds()
}

// Fit returns a copy scaled to fit within w x h, keeping the aspect ratio.
// Images already small enough are returned unscaled.
func (h *Handle) Fit(w, hgt int) (image.Image, error) {
	img, err := h.Image()
	if err != nil {
		return nil, err
	}
	if w <= 0 || hgt <= 0 {
		return nil, fmt.Errorf("invalid fit box %dx%d", w, hgt)
	}
	b := img.Bounds()
	if b.Dx() <= w && b.Dy() <= hgt {
		return imaging.Clone(img), nil
	}
	return imaging.Fit(img, w, hgt, imaging.Lanczos), nil
}

// Save encodes the image (or a fitted copy when w and h are positive) to
// path; the format follows the file extension.
func (h *Handle) Save(path string, w, hgt int) error {
	var (
		img image.Image
		err error
	)
	if w > 0 && hgt > 0 {
		img, err = h.Fit(w, hgt)
	} else {
		img, err = h.Image()
	}
	if err != nil {
		return err
	}
	return imaging.Save(img, path)
}

// Close releases the pixels. Safe to call more than once.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	h.img = nil
	h.mu.Unlock()
	return nil
}

// Closed reports whether the handle was released.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.img == nil
}

// Viewer shows at most one image at a time.
type Viewer struct {
	src    Source
	logger *logging.Logger

	mu      sync.Mutex
	current *Handle
}

// NewViewer creates a viewer over src. logger may be nil.
func NewViewer(src Source, logger *logging.Logger) *Viewer {
	return &Viewer{src: src, logger: logging.OrNop(logger)}
}

// Show releases the image on display, then opens key. On failure nothing
// is displayed.
func (v *Viewer) Show(ctx context.Context, key string) (*Handle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current != nil {
		v.current.Close()
		v.current = nil
	}

	h, err := Open(ctx, v.src, key)
	if err != nil {
		v.logger.Debug().Str("key", key).Err(err).Msg("preview failed")
		return nil, err
	}
	v.current = h
	return h, nil
}

// Current returns the displayed handle, nil if none.
func (v *Viewer) Current() *Handle {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Close releases the displayed image.
func (v *Viewer) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	err := v.current.Close()
	v.current = nil
	return err
}
