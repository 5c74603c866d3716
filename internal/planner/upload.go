package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync/atomic"

	"github.com/jneless/bkp-drive/internal/api"
	"github.com/jneless/bkp-drive/internal/models"
	"github.com/jneless/bkp-drive/internal/resolver"
)

// BatchState is a step of the upload state machine.
type BatchState string

const (
	StateIdle            BatchState = "idle"
	StatePlanning        BatchState = "planning"
	StateCreatingFolders BatchState = "creating_folders"
	StateUploadingFiles  BatchState = "uploading_files"
	StateCompleted       BatchState = "completed"
	StateCancelled       BatchState = "cancelled"
	StateFailed          BatchState = "failed"
)

// Terminal reports whether no further transition follows s.
func (s BatchState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// CancelFlag is a cooperative stop request shared with a running batch.
// It is checked between steps; the step in flight completes.
type CancelFlag struct {
	set atomic.Bool
}

// Cancel requests the batch to stop.
func (c *CancelFlag) Cancel() { c.set.Store(true) }

// Cancelled reports whether Cancel was called. A nil flag is never cancelled.
func (c *CancelFlag) Cancelled() bool {
	return c != nil && c.set.Load()
}

// LocalFile is one file to upload. Path is relative, "/"-separated, and
// decides the remote folder the file lands in.
type LocalFile struct {
	Path string
	Size int64
	Open func() (io.ReadCloser, error)
}

// DiskFile returns a LocalFile reading from the local file at abs.
func DiskFile(rel, abs string, size int64) LocalFile {
	return LocalFile{
		Path: rel,
		Size: size,
		Open: func() (io.ReadCloser, error) { return os.Open(abs) },
	}
}

// PlannedFile is a LocalFile with its resolved destination.
type PlannedFile struct {
	LocalFile
	Name   string
	Folder string // "" for the root, otherwise ends in "/"
	Key    string
}

// UploadPlan creates Folders in order, then uploads Files in order.
type UploadPlan struct {
	Base    string
	Folders []string
	Files   []PlannedFile
}

// TotalBytes sums the sizes of all planned files.
func (p *UploadPlan) TotalBytes() int64 {
	var n int64
	for _, f := range p.Files {
		n += f.Size
	}
	return n
}

// PlanUpload derives the folders needed by files under base and orders
// them shallow to deep, then lexically. Files keep their input order.
func PlanUpload(base string, files []LocalFile) (*UploadPlan, error) {
	base = models.NormalizeFolder(base)
	plan := &UploadPlan{Base: base}
	folderSet := make(map[string]struct{})

	for _, f := range files {
		rel, err := cleanRelPath(f.Path)
		if err != nil {
			return nil, err
		}

		dir, name := path.Split(rel)
		folder := base + dir
		plan.Files = append(plan.Files, PlannedFile{
			LocalFile: f,
			Name:      name,
			Folder:    folder,
			Key:       folder + name,
		})

		// every ancestor of the file, below base
		acc := base
		for _, seg := range strings.Split(strings.TrimSuffix(dir, models.Separator), models.Separator) {
			if seg == "" {
				continue
			}
			acc += seg + models.Separator
			folderSet[acc] = struct{}{}
		}
	}

	for f := range folderSet {
		plan.Folders = append(plan.Folders, f)
	}
	resolver.SortShallowestFirst(plan.Folders)
	return plan, nil
}

func cleanRelPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", models.Separator)
	if p == "" || strings.HasPrefix(p, models.Separator) {
		return "", fmt.Errorf("invalid upload path %q: must be relative", p)
	}
	var parts []string
	for _, seg := range strings.Split(p, models.Separator) {
		switch seg {
		case "", ".":
		case "..":
			return "", fmt.Errorf("invalid upload path %q: must not leave its folder", p)
		default:
			parts = append(parts, seg)
		}
	}
	if len(parts) == 0 || strings.HasSuffix(p, models.Separator) {
		return "", fmt.Errorf("invalid upload path %q: not a file", p)
	}
	return strings.Join(parts, models.Separator), nil
}

// Progress is reported after each uploaded file.
type Progress struct {
	Done    int
	Total   int
	Percent float64
	Current string
}

// FolderFailure is a folder whose creation failed and was ignored.
type FolderFailure struct {
	Path string
	Err  error
}

// UploadReport describes how a batch ended.
type UploadReport struct {
	State          BatchState
	FoldersCreated []string
	FolderFailures []FolderFailure
	Uploaded       []string
	// FailedFile is the key whose upload failed the batch.
	FailedFile string
	Err        error
}

// UploadOptions tune ExecuteUpload. All fields are optional.
type UploadOptions struct {
	Cancel     *CancelFlag
	OnProgress func(Progress)
	// OnState is called on every state transition.
	OnState func(from, to BatchState)
	// WrapReader may wrap each file's reader, e.g. for byte progress.
	WrapReader func(f PlannedFile, r io.Reader) io.Reader
	// OnFileDone is called after each file attempt.
	OnFileDone func(f PlannedFile, err error)
}

type batchRun struct {
	p      *Planner
	opts   UploadOptions
	state  BatchState
	report *UploadReport
}

func (b *batchRun) transition(to BatchState, err error) {
	from := b.state
	b.state = to
	b.report.State = to
	b.p.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("upload batch state")
	b.p.bus.PublishBatchState(string(from), string(to), err)
	if b.opts.OnState != nil {
		b.opts.OnState(from, to)
	}
}

// stopped reports whether the batch must stop before its next step.
func (b *batchRun) stopped(ctx context.Context) bool {
	return b.opts.Cancel.Cancelled() || ctx.Err() != nil
}

func (b *batchRun) finish(to BatchState, err error) (*UploadReport, error) {
	b.report.Err = err
	b.transition(to, err)
	return b.report, err
}

func (b *batchRun) cancelled(total int) (*UploadReport, error) {
	err := fmt.Errorf("upload stopped after %d of %d files: %w", len(b.report.Uploaded), total, api.ErrCancelled)
	return b.finish(StateCancelled, err)
}

// Upload plans files under base and executes the plan.
func (p *Planner) Upload(ctx context.Context, base string, files []LocalFile, opts UploadOptions) (*UploadReport, error) {
	run := &batchRun{p: p, opts: opts, state: StateIdle, report: &UploadReport{State: StateIdle}}
	run.transition(StatePlanning, nil)

	plan, err := PlanUpload(base, files)
	if err != nil {
		return run.finish(StateFailed, err)
	}
	return p.execute(ctx, run, plan)
}

// ExecuteUpload runs plan: folders first (failures ignored), then files
// one at a time. The first failed file stops the batch with StateFailed;
// files already uploaded stay. A cancel request or a cancelled context
// ends the batch with StateCancelled and an error matching
// api.ErrCancelled.
func (p *Planner) ExecuteUpload(ctx context.Context, plan *UploadPlan, opts UploadOptions) (*UploadReport, error) {
	run := &batchRun{p: p, opts: opts, state: StateIdle, report: &UploadReport{State: StateIdle}}
	run.transition(StatePlanning, nil)
	return p.execute(ctx, run, plan)
}

func (p *Planner) execute(ctx context.Context, run *batchRun, plan *UploadPlan) (*UploadReport, error) {
	if plan == nil {
		return run.finish(StateFailed, errors.New("no upload plan"))
	}
	total := len(plan.Files)

	run.transition(StateCreatingFolders, nil)
	for _, folder := range plan.Folders {
		if run.stopped(ctx) {
			return run.cancelled(total)
		}
		if err := p.remote.CreateFolder(ctx, folder); err != nil {
			if api.IsCancelled(err) {
				return run.cancelled(total)
			}
			if api.IsAlreadyExists(err) {
				p.logger.Debug().Str("folder", folder).Msg("folder already exists")
			} else {
				p.logger.Warn().Str("folder", folder).Err(err).Msg("folder creation failed, continuing")
			}
			run.report.FolderFailures = append(run.report.FolderFailures, FolderFailure{Path: folder, Err: err})
			continue
		}
		run.report.FoldersCreated = append(run.report.FoldersCreated, folder)
	}

	run.transition(StateUploadingFiles, nil)
	for i, f := range plan.Files {
		if run.stopped(ctx) {
			return run.cancelled(total)
		}

		err := p.uploadOne(ctx, f, run.opts)
		if run.opts.OnFileDone != nil {
			run.opts.OnFileDone(f, err)
		}
		if err != nil {
			if api.IsCancelled(err) {
				return run.cancelled(total)
			}
			run.report.FailedFile = f.Key
			return run.finish(StateFailed, fmt.Errorf("upload of %s failed: %w", f.Key, err))
		}
		run.report.Uploaded = append(run.report.Uploaded, f.Key)

		prog := Progress{
			Done:    i + 1,
			Total:   total,
			Percent: float64(i+1) * 100 / float64(total),
			Current: f.Path,
		}
		p.bus.PublishBatchProgress(prog.Done, prog.Total, prog.Percent, prog.Current)
		if run.opts.OnProgress != nil {
			run.opts.OnProgress(prog)
		}
	}

	return run.finish(StateCompleted, nil)
}

func (p *Planner) uploadOne(ctx context.Context, f PlannedFile, opts UploadOptions) error {
	if f.Open == nil {
		return errors.New("no data source")
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Path, err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if opts.WrapReader != nil {
		r = opts.WrapReader(f, r)
	}
	p.logger.Debug().Str("key", f.Key).Int64("size", f.Size).Msg("uploading file")
	_, err = p.remote.UploadFile(ctx, f.Name, r, f.Folder)
	return err
}
