package cli

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/jneless/bkp-drive/internal/config"
	"github.com/jneless/bkp-drive/internal/events"
	"github.com/jneless/bkp-drive/internal/logging"
	"github.com/jneless/bkp-drive/internal/models"
	"github.com/jneless/bkp-drive/internal/session"
)

func TestWatchEventsLogsRejectedLogin(t *testing.T) {
	var buf bytes.Buffer
	bus := events.NewEventBus(10)
	done := watchEvents(bus, logging.NewLogger(&buf))

	sess := session.New(bus)
	sess.SetAuth(&session.AuthRecord{Token: "t", User: models.User{Username: "alice"}})
	sess.ClearAuth("rejected")

	bus.Close()
	<-done

	if out := buf.String(); !strings.Contains(out, "saved login rejected") {
		t.Errorf("log = %q, want the rejected login warning", out)
	}
}

func TestWatchEventsStopsOnClose(t *testing.T) {
	bus := events.NewEventBus(10)
	done := watchEvents(bus, logging.Nop())
	bus.PublishViewMode("grid")
	bus.Close()
	<-done
}

func TestPromptProxyPasswordWithoutTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	cfg := config.NewConfig()
	cfg.ProxyMode = "ntlm"
	cfg.ProxyHost = "proxy.corp"
	cfg.ProxyUser = "alice"

	var out bytes.Buffer
	if err := promptProxyPassword(cfg, f, &out); err != nil {
		t.Fatalf("promptProxyPassword() error = %v", err)
	}
	if cfg.ProxyPassword != "" || out.Len() != 0 {
		t.Errorf("prompted without a terminal: password %q, output %q", cfg.ProxyPassword, out.String())
	}

	cfg.ProxyPassword = "from-env"
	if err := promptProxyPassword(cfg, f, &out); err != nil || cfg.ProxyPassword != "from-env" {
		t.Errorf("password from the environment was replaced: %q, %v", cfg.ProxyPassword, err)
	}
}
