// Package cli provides the command-line interface for bkp-drive.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jneless/bkp-drive/internal/logging"
	"github.com/jneless/bkp-drive/internal/planner"
	"github.com/jneless/bkp-drive/internal/version"
)

var (
	// Global flags
	cfgFile    string
	apiBaseURL string
	apiToken   string
	verbose    bool
	debug      bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc

	// activeBatch is the cancel flag of the upload batch in progress, if any.
	activeBatch atomic.Pointer[planner.CancelFlag]
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bkp-drive",
		Short: "bkp-drive - command-line client for the bkp-drive object storage service",
		Long: `bkp-drive ` + version.Version + ` - Built: ` + version.BuildTime + `
Browse, upload, download and delete files on a bkp-drive server.

The client keeps a session between invocations: the folder you are in,
your selection and the listing layout. Log in once with 'bkp-drive login'
('--remember' keeps the login across shells).`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "url", "", "API base URL (overrides config and BKP_DRIVE_URL)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "Bearer token (overrides the saved login and BKP_DRIVE_TOKEN)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	rootCmd.AddCommand(newCompletionCmd(rootCmd))
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

func newCompletionCmd(rootCmd *cobra.Command) *cobra.Command {
	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for bkp-drive.

  bash:       source <(bkp-drive completion bash)
  zsh:        bkp-drive completion zsh > "${fpath[1]}/_bkp-drive"
  fish:       bkp-drive completion fish | source
  powershell: bkp-drive completion powershell | Out-String | Invoke-Expression`,
	}

	completionCmd.AddCommand(&cobra.Command{
		Use:   "bash",
		Short: "Generate bash completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenBashCompletion(cmd.OutOrStdout())
		},
	})
	completionCmd.AddCommand(&cobra.Command{
		Use:   "zsh",
		Short: "Generate zsh completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenZshCompletion(cmd.OutOrStdout())
		},
	})
	completionCmd.AddCommand(&cobra.Command{
		Use:   "fish",
		Short: "Generate fish completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
		},
	})
	completionCmd.AddCommand(&cobra.Command{
		Use:   "powershell",
		Short: "Generate PowerShell completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenPowerShellCompletion(cmd.OutOrStdout())
		},
	})
	return completionCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// First Ctrl+C during an upload lets the current file finish; any
	// other signal cancels everything in flight.
	go func() {
		for sig := range sigChan {
			if sig == nil {
				continue
			}
			if flag := activeBatch.Load(); flag != nil && !flag.Cancelled() {
				flag.Cancel()
				fmt.Fprintf(os.Stderr, "\nStopping after the current file. Press Ctrl+C again to abort it.\n")
				continue
			}
			fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
			cancelFunc()
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newRegisterCmd())

	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newCdCmd())
	rootCmd.AddCommand(newPwdCmd())
	rootCmd.AddCommand(newViewCmd())
	rootCmd.AddCommand(newSelectCmd())

	rootCmd.AddCommand(newMkdirCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newUploadDirCmd())
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newRmCmd())
	rootCmd.AddCommand(newPreviewCmd())

	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// It is cancelled when the user presses Ctrl+C outside an upload batch,
// or twice during one.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
