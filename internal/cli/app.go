package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/jneless/bkp-drive/internal/api"
	"github.com/jneless/bkp-drive/internal/config"
	"github.com/jneless/bkp-drive/internal/constants"
	"github.com/jneless/bkp-drive/internal/events"
	drivehttp "github.com/jneless/bkp-drive/internal/http"
	"github.com/jneless/bkp-drive/internal/logging"
	"github.com/jneless/bkp-drive/internal/models"
	"github.com/jneless/bkp-drive/internal/planner"
	"github.com/jneless/bkp-drive/internal/session"
)

// app is everything one command invocation needs: the resolved config,
// the stores, the restored session and an API client.
type app struct {
	cfg     *config.Config
	stores  session.Stores
	bus     *events.EventBus
	watched <-chan struct{}
	session *session.Session
	client  *api.Client
	logger  *logging.Logger
}

// openApp resolves configuration (flags > env > file > defaults), opens
// the state stores and restores the session.
func openApp() (*app, error) {
	logger := GetLogger()

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	cfg.MergeWithFlags(apiBaseURL, apiToken)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := promptProxyPassword(cfg, os.Stdin, os.Stderr); err != nil {
		return nil, err
	}

	stores, err := session.OpenStores(cfg.StateDir, session.SessionID())
	if err != nil {
		return nil, fmt.Errorf("failed to open session state: %w", err)
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	watched := watchEvents(bus, logger.Named("events"))
	sess := session.New(bus)

	rec, err := session.LoadAuth(stores, time.Now())
	switch {
	case err == nil:
		sess.SetAuth(rec)
	case errors.Is(err, session.ErrLoggedOut):
	default:
		logger.Warn().Err(err).Msg("could not read saved login")
	}

	defaultMode, err := session.ParseViewMode(cfg.DefaultView)
	if err != nil {
		defaultMode = session.ViewList
	}
	if err := sess.LoadView(stores.Session, defaultMode); err != nil {
		logger.Warn().Err(err).Msg("could not restore view state")
	}

	// an explicit --token or BKP_DRIVE_TOKEN wins over the saved login
	token := cfg.Token
	if token == "" {
		token = sess.Token()
	}
	client, err := api.NewClient(cfg, api.WithToken(token), api.WithLogger(logger))
	if err != nil {
		stores.Close()
		bus.Close()
		<-watched
		return nil, err
	}

	return &app{
		cfg:     cfg,
		stores:  stores,
		bus:     bus,
		watched: watched,
		session: sess,
		client:  client,
		logger:  logger,
	}, nil
}

// Close saves the view state and releases the stores.
func (a *app) Close() error {
	saveErr := a.session.SaveView(a.stores.Session)
	closeErr := a.stores.Close()
	a.bus.Close()
	<-a.watched
	if saveErr != nil {
		return saveErr
	}
	return closeErr
}

// promptProxyPassword asks for the proxy password when the proxy needs one
// and none came from the environment. Without a terminal it only warns.
func promptProxyPassword(cfg *config.Config, in *os.File, out io.Writer) error {
	if !drivehttp.NeedsProxyPassword(cfg) {
		return nil
	}
	if !term.IsTerminal(int(in.Fd())) {
		GetLogger().Warn().Str("user", cfg.ProxyUser).Msgf("proxy password not set, export %s", config.EnvProxyPassword)
		return nil
	}
	pw, err := readPassword(in, out, fmt.Sprintf("Proxy password for %s: ", cfg.ProxyUser))
	if err != nil {
		return err
	}
	cfg.ProxyPassword = pw
	return nil
}

// requireAuth fails with a login hint when no token is available.
func (a *app) requireAuth() error {
	if !a.client.HasToken() {
		return api.ErrAuthMissing
	}
	return nil
}

// planner returns a planner over the app's client.
func (a *app) planner() *planner.Planner {
	return planner.New(a.client, a.logger.Named("planner"), a.bus)
}

// resolveKey interprets arg relative to the current folder. A trailing
// separator keeps it a folder key, otherwise it names a file.
func (a *app) resolveKey(arg string) string {
	folder := a.session.Resolve(arg)
	if strings.HasSuffix(arg, models.Separator) || arg == "." || arg == ".." || strings.HasSuffix(arg, "/..") {
		return folder
	}
	return strings.TrimSuffix(folder, models.Separator)
}

// withApp opens the app, runs fn and saves state afterwards. Errors are
// mapped to user-facing messages.
func withApp(fn func(a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	runErr := fn(a)
	if isUnauthorized(runErr) && a.session.Auth() != nil {
		// the server no longer accepts the saved login
		if err := session.ClearAuth(a.stores); err != nil {
			a.logger.Warn().Err(err).Msg("failed to clear saved login")
		}
		a.session.ClearAuth("rejected")
	}
	if err := a.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to save session state")
	}
	if runErr != nil {
		return userError(runErr)
	}
	return nil
}

func isUnauthorized(err error) bool {
	var apiErr *api.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// userError keeps the underlying error for errors.Is but prints the
// friendly message.
type cliError struct {
	msg string
	err error
}

func (e *cliError) Error() string { return e.msg }
func (e *cliError) Unwrap() error { return e.err }

func userError(err error) error {
	var ce *cliError
	if errors.As(err, &ce) {
		return err
	}
	return &cliError{msg: api.Message(err), err: err}
}
