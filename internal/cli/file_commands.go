package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jneless/bkp-drive/internal/api"
	"github.com/jneless/bkp-drive/internal/localfs"
	"github.com/jneless/bkp-drive/internal/models"
	"github.com/jneless/bkp-drive/internal/planner"
	"github.com/jneless/bkp-drive/internal/preview"
	"github.com/jneless/bkp-drive/internal/progress"
	"github.com/jneless/bkp-drive/internal/view"
)

// newMkdirCmd creates the 'mkdir' command.
func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir NAME",
		Short: "Create a folder in the current folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if err := a.requireAuth(); err != nil {
					return err
				}
				name := strings.TrimSpace(args[0])
				if name == "" {
					return fmt.Errorf("folder name is empty")
				}
				folder := a.session.Resolve(name)
				if folder == "" {
					return fmt.Errorf("invalid folder name %q", name)
				}
				if err := a.client.CreateFolder(GetContext(), folder); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", displayPath(folder))
				return nil
			})
		},
	}
}

// newUploadCmd creates the 'upload' command.
func newUploadCmd() *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload files into the current folder",
		Long: `Upload local files into the current folder, or into --to.

Files are uploaded one at a time. The first failure stops the batch;
files already uploaded stay. Press Ctrl+C once to stop after the current
file, twice to abort it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if err := a.requireAuth(); err != nil {
					return err
				}
				base := a.uploadBase(dest)

				files := make([]planner.LocalFile, 0, len(args))
				for _, p := range args {
					info, err := os.Stat(p)
					if err != nil {
						return fmt.Errorf("cannot read %s: %w", p, err)
					}
					if info.IsDir() {
						return fmt.Errorf("%s is a directory, use 'bkp-drive upload-dir'", p)
					}
					files = append(files, planner.DiskFile(filepath.Base(p), p, info.Size()))
				}
				return runUpload(cmd, a, base, files)
			})
		},
	}

	cmd.Flags().StringVar(&dest, "to", "", "Destination folder (default: current folder)")
	return cmd
}

// newUploadDirCmd creates the 'upload-dir' command.
func newUploadDirCmd() *cobra.Command {
	var (
		dest          string
		includeHidden bool
		include       string
		exclude       string
	)

	cmd := &cobra.Command{
		Use:   "upload-dir DIR",
		Short: "Upload a local directory tree",
		Long: `Upload DIR and everything below it into the current folder, or
into --to. Remote folders are created first, parents before children,
then files are uploaded one at a time in walk order.

Symlinks are skipped. Hidden files are skipped unless --include-hidden.
--include and --exclude take comma-separated globs; a pattern with a "/"
matches the path below DIR and "**" spans directories.
Press Ctrl+C once to stop after the current file, twice to abort it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if err := a.requireAuth(); err != nil {
					return err
				}
				root := args[0]
				info, err := os.Stat(root)
				if err != nil {
					return fmt.Errorf("cannot read %s: %w", root, err)
				}
				if !info.IsDir() {
					return fmt.Errorf("%s is not a directory", root)
				}

				entries, err := localfs.CollectFiles(root, localfs.WalkOptions{
					IncludeHidden: includeHidden,
					Filter: localfs.Filter{
						Include: localfs.ParsePatterns(include),
						Exclude: localfs.ParsePatterns(exclude),
					},
				})
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No files to upload in %s\n", root)
					return nil
				}

				files := make([]planner.LocalFile, len(entries))
				for i, e := range entries {
					files[i] = planner.DiskFile(e.Rel, e.Path, e.Size)
				}
				return runUpload(cmd, a, a.uploadBase(dest), files)
			})
		},
	}

	cmd.Flags().StringVar(&dest, "to", "", "Destination folder (default: current folder)")
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "Include hidden files and directories")
	cmd.Flags().StringVar(&include, "include", "", "Only upload files matching these globs, e.g. \"*.jpg,raw/**\"")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Skip files matching these globs")
	return cmd
}

// uploadBase resolves the destination folder of an upload.
func (a *app) uploadBase(dest string) string {
	if dest == "" {
		return a.session.CurrentPath()
	}
	return a.session.Resolve(dest)
}

// runUpload executes one batch with progress bars and the two-stage
// Ctrl+C cancel.
func runUpload(cmd *cobra.Command, a *app, base string, files []planner.LocalFile) error {
	flag := &planner.CancelFlag{}
	activeBatch.Store(flag)
	defer activeBatch.Store(nil)

	plan, err := planner.PlanUpload(base, files)
	if err != nil {
		return err
	}

	ui := progress.NewUploadUI(len(plan.Files))
	bars := make(map[string]*progress.FileBar)
	started := 0

	report, err := a.planner().ExecuteUpload(GetContext(), plan, planner.UploadOptions{
		Cancel: flag,
		OnState: func(from, to planner.BatchState) {
			switch to {
			case planner.StateCreatingFolders:
				ui.Stage("Creating folders...")
			case planner.StateUploadingFiles:
				ui.Stage(fmt.Sprintf("Uploading %d file(s), %s, to %s",
					len(plan.Files), view.FormatSize(plan.TotalBytes()), displayPath(plan.Base)))
			}
		},
		WrapReader: func(f planner.PlannedFile, r io.Reader) io.Reader {
			started++
			bar := ui.AddFileBar(started, f.Path, f.Folder, f.Size)
			bars[f.Key] = bar
			return bar.ProxyReader(r)
		},
		OnFileDone: func(f planner.PlannedFile, err error) {
			if bar, ok := bars[f.Key]; ok {
				bar.Complete(err)
			}
		},
	})
	ui.Wait()

	out := cmd.OutOrStdout()
	if report != nil {
		for _, ff := range report.FolderFailures {
			a.logger.Debug().Str("folder", ff.Path).Err(ff.Err).Msg("folder not created")
		}
		fmt.Fprintf(out, "%s: %d of %d file(s) uploaded, %d folder(s) created\n",
			report.State, len(report.Uploaded), len(files), len(report.FoldersCreated))
	}
	return err
}

// newDownloadCmd creates the 'download' command.
func newDownloadCmd() *cobra.Command {
	var (
		outPath string
		quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "download FILE",
		Short: "Download a file",
		Long: `Download FILE (relative to the current folder) to the local
directory, or to -o PATH.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if err := a.requireAuth(); err != nil {
					return err
				}
				key := a.resolveKey(args[0])
				if key == "" || models.IsFolderKey(key) {
					return fmt.Errorf("%s is a folder", args[0])
				}

				dest, err := localfs.DownloadTarget(models.BaseName(key), outPath)
				if err != nil {
					return err
				}

				body, size, err := a.client.Download(GetContext(), key, "")
				if err != nil {
					return err
				}
				defer body.Close()
				if err := localfs.CheckSpace(dest, size); err != nil {
					return err
				}

				var reporter progress.Reporter = progress.NewCLIProgress()
				if quiet {
					reporter = progress.NoOpProgress{}
				}
				if err := writeDownload(dest, body, size, key, reporter); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s to %s\n", key, dest)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Local file or directory")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
	return cmd
}

// writeDownload copies body to dest through a temporary file, so a failed
// transfer never leaves a partial file under the final name.
func writeDownload(dest string, body io.Reader, size int64, key string, reporter progress.Reporter) error {
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	reporter.Start(size, models.BaseName(key))
	_, copyErr := io.Copy(f, progress.NewProgressReader(body, reporter))
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		reporter.Error(copyErr)
		os.Remove(tmp)
		return fmt.Errorf("download of %s failed: %w", key, copyErr)
	}
	reporter.Finish()

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save %s: %w", dest, err)
	}
	return nil
}

// newRmCmd creates the 'rm' command.
func newRmCmd() *cobra.Command {
	var (
		strict   bool
		yes      bool
		selected bool
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "rm [NAME...]",
		Short: "Delete files and folders",
		Long: `Delete files and folders, relative to the current folder, or the
selection with --selected. Folders are deleted with everything in them.

Folders are scanned before anything is deleted. If part of a folder
cannot be listed, whatever was found is still deleted and the skipped
folders are reported; --strict refuses to delete anything instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if err := a.requireAuth(); err != nil {
					return err
				}
				in, out := input(cmd), cmd.OutOrStdout()

				var keys []string
				if selected {
					keys = a.session.Selected()
				}
				for _, arg := range args {
					key, err := renderedKey(a, arg)
					if err != nil {
						// not listed yet: trust the user's spelling
						key = a.resolveKey(arg)
					}
					if key == "" {
						return fmt.Errorf("refusing to delete the root folder")
					}
					keys = append(keys, key)
				}
				if len(keys) == 0 {
					return fmt.Errorf("nothing to delete: name entries or use --selected")
				}

				p := a.planner()
				if strict {
					p.Policy = planner.Strict
				}
				plan, err := p.PlanDelete(GetContext(), keys)
				if err != nil {
					return err
				}
				for _, s := range plan.Skipped {
					fmt.Fprintf(out, "warning: could not scan %s: %s\n", s.Path, api.Message(s.Err))
				}
				if plan.Empty() {
					fmt.Fprintln(out, "Nothing to delete")
					return nil
				}

				if dryRun {
					for _, k := range plan.Keys {
						fmt.Fprintln(out, k)
					}
					fmt.Fprintf(out, "%d object(s) would be deleted\n", len(plan.Keys))
					return nil
				}
				if !yes {
					ok, err := confirm(in, out, fmt.Sprintf("Delete %d object(s)?", len(plan.Keys)))
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(out, "Aborted")
						return nil
					}
				}

				result, err := p.SubmitDelete(GetContext(), plan)
				if err != nil {
					return err
				}
				if selected {
					a.session.ClearSelection()
				}
				a.session.Deselect(keys...)
				fmt.Fprintf(out, "Deleted %d object(s)", result.Processed)
				if len(plan.Skipped) > 0 {
					fmt.Fprintf(out, ", %d folder(s) skipped", len(plan.Skipped))
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Delete nothing unless every folder could be scanned")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&selected, "selected", false, "Delete the selection")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the keys that would be deleted")
	return cmd
}

// newPreviewCmd creates the 'preview' command.
func newPreviewCmd() *cobra.Command {
	var (
		outPath string
		fit     string
	)

	cmd := &cobra.Command{
		Use:   "preview IMAGE",
		Short: "Decode an image and save a local copy",
		Long: `Download and decode IMAGE, print its format and size, and save it
to -o PATH (format from the extension), scaled down to --fit WxH.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if err := a.requireAuth(); err != nil {
					return err
				}
				w, h, err := parseFit(fit)
				if err != nil {
					return err
				}

				viewer := preview.NewViewer(a.client, a.logger.Named("preview"))
				defer viewer.Close()

				handle, err := viewer.Show(GetContext(), a.resolveKey(args[0]))
				if err != nil {
					return err
				}
				b := handle.Bounds()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s: %s %dx%d\n", handle.Key, handle.Format, b.Dx(), b.Dy())

				if outPath != "" {
					if err := handle.Save(outPath, w, h); err != nil {
						return fmt.Errorf("failed to save preview: %w", err)
					}
					fmt.Fprintf(out, "Saved %s\n", outPath)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Save the image to this path")
	cmd.Flags().StringVar(&fit, "fit", "", "Scale down to fit WxH, e.g. 800x600")
	return cmd
}

// parseFit parses "WxH"; "" means no scaling.
func parseFit(s string) (int, int, error) {
	if s == "" {
		return 0, 0, nil
	}
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if ok {
		w, werr := strconv.Atoi(ws)
		h, herr := strconv.Atoi(hs)
		if werr == nil && herr == nil && w > 0 && h > 0 {
			return w, h, nil
		}
	}
	return 0, 0, fmt.Errorf("invalid --fit %q, want WxH", s)
}
