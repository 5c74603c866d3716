package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// UploadUI shows a folder-upload batch: one bar counting files and one
// byte bar per file in flight. Without a terminal it prints one line per
// file instead.
type UploadUI struct {
	progress   *mpb.Progress
	overall    *mpb.Bar
	out        io.Writer
	isTerminal bool
	totalFiles int
	completed  int32
	failed     int32
}

// FileBar tracks a single file of the batch.
type FileBar struct {
	bar       *mpb.Bar
	ui        *UploadUI
	index     int
	path      string
	folder    string
	size      int64
	startTime time.Time
}

// NewUploadUI creates a UI on stderr.
func NewUploadUI(totalFiles int) *UploadUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	if isTerminal {
		enableANSIOnWindows(os.Stderr)
	}
	return newUploadUI(totalFiles, os.Stderr, isTerminal)
}

func newUploadUI(totalFiles int, out io.Writer, isTerminal bool) *UploadUI {
	u := &UploadUI{out: out, isTerminal: isTerminal, totalFiles: totalFiles}
	if !isTerminal {
		return u
	}

	u.progress = mpb.New(
		mpb.WithOutput(out),
		mpb.WithRefreshRate(300*time.Millisecond),
		mpb.WithWidth(100),
	)
	u.overall = u.progress.New(int64(totalFiles),
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name("files", decor.WCSyncSpace),
			decor.CountersNoUnit("%d / %d", decor.WCSyncSpace),
		),
		mpb.AppendDecorators(decor.Percentage(decor.WCSyncSpace)),
	)
	return u
}

// Stage prints a batch state line, e.g. "creating folders".
func (u *UploadUI) Stage(msg string) {
	fmt.Fprintf(u.Writer(), "%s\n", msg)
}

// AddFileBar starts tracking file index (1-based) of the batch.
func (u *UploadUI) AddFileBar(index int, path, folder string, size int64) *FileBar {
	fb := &FileBar{
		ui:        u,
		index:     index,
		path:      path,
		folder:    displayFolder(folder),
		size:      size,
		startTime: time.Now(),
	}

	if u.isTerminal {
		label := fmt.Sprintf("[%d/%d] %s (%.1f MiB) → %s",
			index, u.totalFiles, truncatePath(path, 2), float64(size)/(1024*1024), fb.folder)
		fb.bar = u.progress.New(size,
			mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
			mpb.PrependDecorators(decor.Name(label, decor.WCSyncSpace)),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Fprintf(u.out, "Uploading [%d/%d]: %s (%.1f MiB) → %s\n",
			index, u.totalFiles, truncatePath(path, 2), float64(size)/(1024*1024), fb.folder)
	}
	return fb
}

// ProxyReader counts bytes read from r on the file's bar.
func (f *FileBar) ProxyReader(r io.Reader) io.Reader {
	if f.bar == nil {
		return r
	}
	return f.bar.ProxyReader(r)
}

// Complete finishes the file's bar and prints a summary line.
func (f *FileBar) Complete(err error) {
	elapsed := time.Since(f.startTime)

	var msg string
	if err == nil {
		if f.bar != nil {
			f.bar.SetTotal(f.size, true)
		}
		msg = fmt.Sprintf("✓ %s → %s (%.1f MiB, %s)\n",
			truncatePath(f.path, 2), f.folder, float64(f.size)/(1024*1024), elapsed.Round(time.Millisecond))
		atomic.AddInt32(&f.ui.completed, 1)
	} else {
		if f.bar != nil {
			f.bar.Abort(false)
		}
		msg = fmt.Sprintf("✗ %s → %s: %v\n", truncatePath(f.path, 2), f.folder, err)
		atomic.AddInt32(&f.ui.failed, 1)
	}
	if f.ui.overall != nil {
		f.ui.overall.Increment()
	}
	io.WriteString(f.ui.Writer(), msg)
}

// counts returns how many files completed and failed.
func (u *UploadUI) counts() (completed, failed int) {
	return int(atomic.LoadInt32(&u.completed)), int(atomic.LoadInt32(&u.failed))
}

// Wait stops the bars and blocks until they are flushed. Bars of files
// never started are aborted.
func (u *UploadUI) Wait() {
	if u.progress == nil {
		return
	}
	if u.overall != nil && !u.overall.Completed() {
		u.overall.Abort(false)
	}
	u.progress.Wait()
}

// Writer returns a writer that prints above the bars.
func (u *UploadUI) Writer() io.Writer {
	if u.progress != nil {
		return u.progress
	}
	return u.out
}

// IsTerminal reports whether bars are drawn.
func (u *UploadUI) IsTerminal() bool {
	return u.isTerminal
}

func displayFolder(folder string) string {
	if folder == "" {
		return "/"
	}
	return folder
}

// truncatePath keeps the last maxComponents parts of path.
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.ToSlash(path)
	}
	return "…/" + strings.Join(parts[len(parts)-maxComponents:], "/")
}

// enableANSIOnWindows turns on escape sequence processing on Windows consoles.
func enableANSIOnWindows(f *os.File) {
	if runtime.GOOS == "windows" {
		enableWindowsANSI(f)
	}
}
