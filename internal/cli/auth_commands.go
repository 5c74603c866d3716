package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jneless/bkp-drive/internal/api"
	"github.com/jneless/bkp-drive/internal/session"
)

// newLoginCmd creates the 'login' command.
func newLoginCmd() *cobra.Command {
	var (
		username string
		remember bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the server",
		Long: `Log in and keep the token for later commands.

By default the login lasts for this shell session only. With --remember
it is kept across shells until it expires or you log out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				in, out := input(cmd), cmd.OutOrStdout()

				if username == "" {
					var err error
					if username, err = promptLine(in, out, "Username: "); err != nil {
						return err
					}
				}
				password, err := readPassword(in, out, "Password: ")
				if err != nil {
					return err
				}
				if username == "" || password == "" {
					return fmt.Errorf("username and password are required")
				}

				ctx := GetContext()
				resp, err := a.client.Login(ctx, username, password)
				if err != nil {
					return loginError(err)
				}

				now := time.Now()
				rec := session.NewAuthRecord(resp, remember, now)
				a.client.SetToken(rec.Token)
				if resp.User == nil {
					if user, err := a.client.Profile(ctx); err == nil {
						rec.User = *user
					} else {
						a.logger.Debug().Err(err).Msg("profile lookup after login failed")
					}
				}
				if rec.User.Username == "" {
					rec.User.Username = username
				}

				if err := session.SaveAuth(a.stores, rec); err != nil {
					return err
				}
				a.session.SetAuth(rec)

				scope := "this shell"
				if remember {
					scope = "all shells"
				}
				fmt.Fprintf(out, "Logged in as %s (%s, until %s)\n",
					rec.User.Username, scope, rec.ExpiresAt.Local().Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when omitted)")
	cmd.Flags().BoolVar(&remember, "remember", false, "Keep the login across shell sessions")
	return cmd
}

// newLogoutCmd creates the 'logout' command.
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if a.client.HasToken() {
					// tokens are stateless; the local login goes either way
					if err := a.client.Logout(GetContext()); err != nil {
						a.logger.Debug().Err(err).Msg("server logout failed")
					}
				}
				if err := session.ClearAuth(a.stores); err != nil {
					return err
				}
				a.session.ClearAuth("logout")
				a.session.Navigate("")
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

// newWhoamiCmd creates the 'whoami' command.
func newWhoamiCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Long: `Show the logged-in user. With --check the server is asked to
confirm the token; a rejected token is forgotten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				out := cmd.OutOrStdout()
				if err := a.requireAuth(); err != nil {
					return err
				}

				if check || a.session.Auth() == nil {
					user, err := a.client.Profile(GetContext())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s (%s)\n", user.Username, user.UserID)
					return nil
				}

				rec := a.session.Auth()
				if !a.session.Authenticated(time.Now()) {
					return fmt.Errorf("login expired, run 'bkp-drive login' again")
				}
				fmt.Fprintf(out, "%s (%s), login valid until %s\n",
					rec.User.Username, rec.User.UserID, rec.ExpiresAt.Local().Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Verify the token with the server")
	return cmd
}

// newRegisterCmd creates the 'register' command.
func newRegisterCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				in, out := input(cmd), cmd.OutOrStdout()
				if username == "" {
					var err error
					if username, err = promptLine(in, out, "Username: "); err != nil {
						return err
					}
				}
				password, err := readPassword(in, out, "Password: ")
				if err != nil {
					return err
				}
				if username == "" || password == "" {
					return fmt.Errorf("username and password are required")
				}

				if _, err := a.client.Register(GetContext(), username, password); err != nil {
					return err
				}
				fmt.Fprintf(out, "Account %s created, run 'bkp-drive login' to sign in\n", username)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when omitted)")
	return cmd
}

// loginError shows the server's reason for a rejected login instead of
// the generic expired-session hint.
func loginError(err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return &cliError{msg: "login failed: " + apiErr.Message, err: err}
	}
	return err
}
