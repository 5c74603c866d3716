package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jneless/bkp-drive/internal/localfs"
	"github.com/jneless/bkp-drive/internal/models"
	"github.com/jneless/bkp-drive/internal/session"
	"github.com/jneless/bkp-drive/internal/view"
)

// newLsCmd creates the 'ls' command.
func newLsCmd() *cobra.Command {
	var (
		grid      bool
		list      bool
		thumbsDir string
	)

	cmd := &cobra.Command{
		Use:   "ls [PATH]",
		Short: "List a folder",
		Long: `List the current folder, or PATH relative to it.

Listing the current folder refreshes the set of entries that 'select all'
works on; selected entries are marked [x]. --thumbs DIR also fetches
thumbnails for images and videos into DIR.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if err := a.requireAuth(); err != nil {
					return err
				}
				if grid && list {
					return fmt.Errorf("--grid and --list are mutually exclusive")
				}

				prefix := a.session.CurrentPath()
				if len(args) == 1 {
					prefix = a.session.Resolve(args[0])
				}
				entries, err := a.client.Entries(GetContext(), prefix)
				if err != nil {
					return err
				}

				current := prefix == a.session.CurrentPath()
				if current {
					a.session.SetEntries(entries)
				}

				mode := view.Mode(a.session.ViewMode())
				switch {
				case grid:
					mode = view.ModeGrid
				case list:
					mode = view.ModeList
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s\n", displayPath(prefix))
				model := view.Render(entries, mode, a.session.IsSelected)
				if err := view.Text(out, model, terminalWidth(out)); err != nil {
					return err
				}
				if current {
					if stale := a.session.StaleSelection(); len(stale) > 0 {
						fmt.Fprintf(out, "%d selected item(s) are not in this listing; 'select list' shows them.\n", len(stale))
					}
				}

				if thumbsDir != "" {
					return fetchThumbnails(GetContext(), a, model, thumbsDir, cmd)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&grid, "grid", false, "Show this listing as a grid")
	cmd.Flags().BoolVar(&list, "list", false, "Show this listing as a table")
	cmd.Flags().StringVar(&thumbsDir, "thumbs", "", "Save thumbnails of images and videos into this directory")
	return cmd
}

// fetchThumbnails saves one thumbnail per media item into dir. Items whose
// fetch fails keep their icon and are only counted.
func fetchThumbnails(ctx context.Context, a *app, model view.Model, dir string, cmd *cobra.Command) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	var keys, flat []string
	for _, it := range model.Items {
		if it.Thumb != view.MediaNone {
			keys = append(keys, it.Key)
			flat = append(flat, models.BaseName(it.Key)+".thumb.jpg")
		}
	}
	names := make(map[string]string, len(keys))
	for i, n := range localfs.UniqueNames(flat) {
		names[keys[i]] = n
	}

	loader := view.NewThumbnailLoader(a.client, a.cfg.ThumbnailWorkers, a.logger.Named("thumbs"), a.bus)

	var (
		mu       sync.Mutex
		saved    int
		fallback int
	)
	batch := loader.Start(ctx, model, func(res view.ThumbResult) {
		mu.Lock()
		defer mu.Unlock()
		if res.Fallback {
			fallback++
			return
		}
		name := names[res.Key]
		if err := os.WriteFile(filepath.Join(dir, name), res.Data, 0644); err != nil {
			a.logger.Warn().Str("key", res.Key).Err(err).Msg("failed to save thumbnail")
			fallback++
			return
		}
		saved++
	})
	batch.Wait()

	fmt.Fprintf(cmd.OutOrStdout(), "Thumbnails: %d saved, %d unavailable (of %d)\n", saved, fallback, batch.Len())
	return ctx.Err()
}

// newCdCmd creates the 'cd' command.
func newCdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cd [PATH]",
		Short: "Change the current folder",
		Long: `Change the current folder. PATH is relative to the current folder
unless it starts with '/'; '..' goes up one level. Without PATH, go to the
root. Changing folder clears the selection.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if err := a.requireAuth(); err != nil {
					return err
				}
				target := ""
				if len(args) == 1 {
					target = a.session.Resolve(args[0])
				}

				entries, err := a.client.Entries(GetContext(), target)
				if err != nil {
					return err
				}
				a.session.Navigate(target)
				a.session.SetEntries(entries)
				fmt.Fprintln(cmd.OutOrStdout(), displayPath(target))
				return nil
			})
		},
	}
}

// newPwdCmd creates the 'pwd' command.
func newPwdCmd() *cobra.Command {
	var crumbs bool

	cmd := &cobra.Command{
		Use:   "pwd",
		Short: "Print the current folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				out := cmd.OutOrStdout()
				if !crumbs {
					fmt.Fprintln(out, displayPath(a.session.CurrentPath()))
					return nil
				}
				names := make([]string, 0)
				for _, c := range a.session.Breadcrumbs() {
					names = append(names, c.Name)
				}
				fmt.Fprintln(out, strings.Join(names, " > "))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&crumbs, "breadcrumbs", false, "Show the path as breadcrumbs")
	return cmd
}

// newViewCmd creates the 'view' command.
func newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view [list|grid]",
		Short: "Show or change the listing layout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if len(args) == 1 {
					mode, err := session.ParseViewMode(args[0])
					if err != nil {
						return err
					}
					if err := a.session.SetViewMode(mode); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), a.session.ViewMode())
				return nil
			})
		},
	}
}

// displayPath shows a folder key as an absolute path.
func displayPath(folder string) string {
	return models.Separator + folder
}
