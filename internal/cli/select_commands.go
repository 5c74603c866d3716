package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jneless/bkp-drive/internal/models"
)

// newSelectCmd creates the 'select' command group.
func newSelectCmd() *cobra.Command {
	selectCmd := &cobra.Command{
		Use:   "select",
		Short: "Manage the selection",
		Long: `Manage the set of selected entries in the current folder.

The selection is what 'rm --selected' deletes. Names refer to the last
'ls' or 'cd' listing of the current folder.

Commands:
  add    - Select entries by name
  rm     - Deselect entries by name
  toggle - Flip the selection of one entry
  all    - Select every entry of the current listing
  clear  - Empty the selection
  list   - Show the selection`,
	}

	selectCmd.AddCommand(newSelectAddCmd())
	selectCmd.AddCommand(newSelectRmCmd())
	selectCmd.AddCommand(newSelectToggleCmd())
	selectCmd.AddCommand(newSelectAllCmd())
	selectCmd.AddCommand(newSelectClearCmd())
	selectCmd.AddCommand(newSelectListCmd())
	return selectCmd
}

// renderedKey maps a name from the current listing to its key. Folders
// match with or without the trailing separator.
func renderedKey(a *app, name string) (string, error) {
	rendered := make(map[string]bool)
	for _, k := range a.session.Rendered() {
		rendered[k] = true
	}
	key := a.resolveKey(name)
	if rendered[key] {
		return key, nil
	}
	if rendered[key+models.Separator] {
		return key + models.Separator, nil
	}
	return "", fmt.Errorf("%q is not in the current listing (run 'bkp-drive ls' first)", name)
}

func newSelectAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME...",
		Short: "Select entries by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				keys := make([]string, 0, len(args))
				for _, name := range args {
					key, err := renderedKey(a, name)
					if err != nil {
						return err
					}
					keys = append(keys, key)
				}
				added := a.session.Select(keys...)
				fmt.Fprintf(cmd.OutOrStdout(), "%d selected (%d total)\n", added, len(a.session.Selected()))
				return nil
			})
		},
	}
}

func newSelectRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm NAME...",
		Short: "Deselect entries by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				keys := make([]string, 0, len(args)*2)
				for _, name := range args {
					// a stale key may no longer be rendered
					key := a.resolveKey(name)
					keys = append(keys, key, key+models.Separator)
				}
				removed := a.session.Deselect(keys...)
				fmt.Fprintf(cmd.OutOrStdout(), "%d deselected (%d total)\n", removed, len(a.session.Selected()))
				return nil
			})
		},
	}
}

func newSelectToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle NAME",
		Short: "Flip the selection of one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				key, err := renderedKey(a, args[0])
				if err != nil {
					return err
				}
				state := "deselected"
				if a.session.Toggle(key) {
					state = "selected"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", key, state)
				return nil
			})
		},
	}
}

func newSelectAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Select every entry of the current listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				n := a.session.SelectAll()
				fmt.Fprintf(cmd.OutOrStdout(), "%d selected\n", n)
				return nil
			})
		},
	}
}

func newSelectClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				a.session.ClearSelection()
				fmt.Fprintln(cmd.OutOrStdout(), "selection cleared")
				return nil
			})
		},
	}
}

func newSelectListCmd() *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				out := cmd.OutOrStdout()
				if prune {
					for _, k := range a.session.PruneSelection() {
						fmt.Fprintf(out, "dropped %s\n", k)
					}
				}
				stale := make(map[string]bool)
				for _, k := range a.session.StaleSelection() {
					stale[k] = true
				}
				selected := a.session.Selected()
				for _, k := range selected {
					if stale[k] {
						fmt.Fprintf(out, "%s (not in current listing)\n", k)
						continue
					}
					fmt.Fprintln(out, k)
				}
				if len(selected) == 0 {
					fmt.Fprintln(out, "(nothing selected)")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "Drop selected keys missing from the current listing")
	return cmd
}
