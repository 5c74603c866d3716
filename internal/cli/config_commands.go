package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jneless/bkp-drive/internal/api"
	"github.com/jneless/bkp-drive/internal/config"
	"github.com/jneless/bkp-drive/internal/constants"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage bkp-drive configuration",
		Long: `Configuration management commands for bkp-drive.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  get   - Print one setting
  set   - Change one setting
  test  - Test the server connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigGetCmd())
	configCmd.AddCommand(newConfigSetCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns --config or the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for bkp-drive.

The configuration is saved to ~/.config/bkp-drive/config unless --config
is given. Use --force to overwrite an existing file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			in, out := input(cmd), cmd.OutOrStdout()

			path, err := configPath()
			if err != nil {
				return err
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Fprintln(out, "bkp-drive Configuration Setup")
			fmt.Fprintln(out, "=============================")
			fmt.Fprintln(out)

			cfg := config.NewConfig()
			ask := func(label, def string) (string, error) {
				v, err := promptLine(in, out, fmt.Sprintf("%s [%s]: ", label, def))
				if err != nil || v == "" {
					return def, err
				}
				return v, nil
			}

			if cfg.BaseURL, err = ask("API base URL", cfg.BaseURL); err != nil {
				return err
			}
			if cfg.DefaultView, err = ask("Default view (list/grid)", cfg.DefaultView); err != nil {
				return err
			}
			workers, err := ask("Thumbnail workers", strconv.Itoa(cfg.ThumbnailWorkers))
			if err != nil {
				return err
			}
			if v, err := strconv.Atoi(workers); err == nil && v > 0 {
				cfg.ThumbnailWorkers = v
			}

			useProxy, err := confirm(in, out, "Configure proxy?")
			if err != nil {
				return err
			}
			if useProxy {
				fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")
				if cfg.ProxyMode, err = ask("Proxy mode", "system"); err != nil {
					return err
				}
				if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
					if cfg.ProxyHost, err = promptLine(in, out, "Proxy host: "); err != nil {
						return err
					}
					port, err := ask("Proxy port", "8080")
					if err != nil {
						return err
					}
					if v, err := strconv.Atoi(port); err == nil && v > 0 {
						cfg.ProxyPort = v
					}
					if cfg.ProxyUser, err = promptLine(in, out, "Proxy user (empty for none): "); err != nil {
						return err
					}
				}
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			logger.Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			fmt.Fprintln(out, "Log in with: bkp-drive login")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// loadMergedConfig loads the file and applies environment and flags.
func loadMergedConfig() (*config.Config, string, error) {
	path, err := configPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, "", err
	}
	cfg.ApplyEnv()
	cfg.MergeWithFlags(apiBaseURL, apiToken)
	return cfg, path, nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

Priority: flags (--url, --token) > environment (BKP_DRIVE_URL,
BKP_DRIVE_TOKEN) > config file > defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadMergedConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			for _, key := range config.Keys {
				v, err := cfg.Get(key)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-20s %s\n", key, v)
			}
			if cfg.Token != "" {
				fmt.Fprintf(out, "%-20s <set (%d chars)>\n", "token", len(cfg.Token))
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			return nil
		},
	}
}

// newConfigGetCmd creates the 'config get' command.
func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadMergedConfig()
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

// newConfigSetCmd creates the 'config set' command.
func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting",
		Long: `Change one setting in the configuration file.

Keys: ` + strings.Join(config.Keys, ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			// file values only, so env and flags are not persisted
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
			return nil
		},
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the server connection",
		Long: `Test the connection with the current configuration. With a login
the token is checked too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "API URL: %s\n", a.client.BaseURL())

				ctx, cancel := context.WithTimeout(GetContext(), constants.ConnectionTestTimeout)
				defer cancel()

				start := time.Now()
				if !a.client.HasToken() {
					// any answer from the server proves it is reachable
					_, err := a.client.Entries(ctx, "")
					if err != nil && api.IsNetwork(err) {
						fmt.Fprintln(out, "✗ Connection FAILED")
						return err
					}
					fmt.Fprintf(out, "✓ Server reachable (%s), not logged in\n", time.Since(start).Round(time.Millisecond))
					return nil
				}

				user, err := a.client.Profile(ctx)
				if err != nil {
					fmt.Fprintln(out, "✗ Connection FAILED")
					return err
				}
				fmt.Fprintf(out, "✓ Connection SUCCESSFUL (%s), logged in as %s\n",
					time.Since(start).Round(time.Millisecond), user.Username)
				return nil
			})
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, path)
			if info, err := os.Stat(path); err == nil {
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "File does not exist. Create it with: bkp-drive config init")
			}
			return nil
		},
	}
}
