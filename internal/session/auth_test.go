package session

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jneless/bkp-drive/internal/events"
	"github.com/jneless/bkp-drive/internal/models"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func TestTokenExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	server := now.Add(2 * time.Hour)
	claim := now.Add(5 * time.Hour).Truncate(time.Second)

	if got := TokenExpiry(signedToken(t, claim), &server, now); !got.Equal(server) {
		t.Errorf("server expiry: got %v, want %v", got, server)
	}
	if got := TokenExpiry(signedToken(t, claim), nil, now); !got.Equal(claim) {
		t.Errorf("claim expiry: got %v, want %v", got, claim)
	}
	if got := TokenExpiry("opaque-token", nil, now); !got.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("default expiry: got %v, want %v", got, now.Add(24*time.Hour))
	}
}

func TestSaveLoadAuth(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		remember bool
	}{
		{"session", false},
		{"remembered", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := MemoryStores()
			rec := &AuthRecord{
				Token:     "tok",
				User:      models.User{UserID: "u1", Username: "alice"},
				ExpiresAt: now.Add(time.Hour).Truncate(time.Millisecond),
				Remember:  tt.remember,
			}
			if err := SaveAuth(st, rec); err != nil {
				t.Fatalf("SaveAuth() error = %v", err)
			}

			target, other := st.Session, st.Persistent
			if tt.remember {
				target, other = st.Persistent, st.Session
			}
			if _, ok, _ := target.Get(keyToken); !ok {
				t.Error("token missing from target store")
			}
			if _, ok, _ := other.Get(keyToken); ok {
				t.Error("token written to the wrong store")
			}

			got, err := LoadAuth(st, now)
			if err != nil {
				t.Fatalf("LoadAuth() error = %v", err)
			}
			if got.Token != "tok" || got.User.Username != "alice" || got.Remember != tt.remember {
				t.Errorf("LoadAuth() = %+v", got)
			}
			if !got.ExpiresAt.Equal(rec.ExpiresAt) {
				t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, rec.ExpiresAt)
			}
		})
	}
}

func TestLoadAuthPrefersPersistent(t *testing.T) {
	now := time.Now()
	st := MemoryStores()
	_ = st.Session.Put(keyToken, "session-tok")
	_ = st.Persistent.Put(keyToken, "persistent-tok")
	_ = st.Persistent.Put(keyExpiry, "9999999999999")

	got, err := LoadAuth(st, now)
	if err != nil {
		t.Fatalf("LoadAuth() error = %v", err)
	}
	if got.Token != "persistent-tok" {
		t.Errorf("Token = %q, want persistent-tok", got.Token)
	}
}

func TestLoadAuthExpiredClearsBoth(t *testing.T) {
	now := time.Now()
	st := MemoryStores()
	rec := &AuthRecord{Token: "old", ExpiresAt: now.Add(-time.Minute), Remember: true}
	if err := SaveAuth(st, rec); err != nil {
		t.Fatalf("SaveAuth() error = %v", err)
	}
	_ = st.Session.Put(keyToken, "leftover")

	if _, err := LoadAuth(st, now); !errors.Is(err, ErrLoggedOut) {
		t.Fatalf("LoadAuth() error = %v, want ErrLoggedOut", err)
	}
	for name, s := range map[string]Store{"session": st.Session, "persistent": st.Persistent} {
		if _, ok, _ := s.Get(keyToken); ok {
			t.Errorf("%s store still holds a token", name)
		}
	}
}

func TestLoadAuthCorruptUserIsLoggedOut(t *testing.T) {
	now := time.Now()
	st := MemoryStores()
	rec := &AuthRecord{Token: "tok", ExpiresAt: now.Add(time.Hour), Remember: true}
	if err := SaveAuth(st, rec); err != nil {
		t.Fatalf("SaveAuth() error = %v", err)
	}
	_ = st.Persistent.Put(keyUser, "{not json")

	if _, err := LoadAuth(st, now); !errors.Is(err, ErrLoggedOut) {
		t.Fatalf("LoadAuth() error = %v, want ErrLoggedOut", err)
	}
	if _, ok, _ := st.Persistent.Get(keyToken); ok {
		t.Error("token kept after unreadable user info")
	}
}

func TestLoadAuthMissing(t *testing.T) {
	if _, err := LoadAuth(MemoryStores(), time.Now()); !errors.Is(err, ErrLoggedOut) {
		t.Errorf("LoadAuth() error = %v, want ErrLoggedOut", err)
	}
}

func TestSessionAuthEvents(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventAuthChanged)

	s := New(bus)
	now := time.Now()
	s.SetAuth(&AuthRecord{Token: "tok", User: models.User{Username: "alice"}, ExpiresAt: now.Add(time.Second)})

	if !s.Authenticated(now) {
		t.Error("Authenticated() = false right after login")
	}
	if got := s.Token(); got != "tok" {
		t.Errorf("Token() = %q, want tok", got)
	}
	if s.Authenticated(now.Add(time.Minute)) {
		t.Error("Authenticated() = true after expiry")
	}
	if got := s.Token(); got != "" {
		t.Errorf("Token() after expiry = %q, want empty", got)
	}

	login := (<-ch).(*events.AuthChangedEvent)
	if !login.Authenticated || login.Username != "alice" {
		t.Errorf("login event = %+v", login)
	}
	expired := (<-ch).(*events.AuthChangedEvent)
	if expired.Authenticated || expired.Reason != "expired" {
		t.Errorf("expiry event = %+v", expired)
	}
}

func TestBoltStores(t *testing.T) {
	dir := t.TempDir()

	st, err := OpenStores(dir, "shell-1")
	if err != nil {
		t.Fatalf("OpenStores() error = %v", err)
	}
	rec := &AuthRecord{Token: "tok", User: models.User{Username: "alice"}, ExpiresAt: time.Now().Add(time.Hour), Remember: true}
	if err := SaveAuth(st, rec); err != nil {
		t.Fatalf("SaveAuth() error = %v", err)
	}
	_ = st.Session.Put("scratch", "1")
	if err := st.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// A different shell sees the remembered login but not the other
	// session's values.
	other, err := OpenStores(dir, "shell-2")
	if err != nil {
		t.Fatalf("OpenStores() error = %v", err)
	}
	defer other.Close()

	got, err := LoadAuth(other, time.Now())
	if err != nil {
		t.Fatalf("LoadAuth() error = %v", err)
	}
	if got.User.Username != "alice" {
		t.Errorf("Username = %q, want alice", got.User.Username)
	}
	if _, ok, _ := other.Session.Get("scratch"); ok {
		t.Error("session value leaked across session ids")
	}

	if err := other.Session.Delete("missing"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
	nested, err := OpenBoltStore(filepath.Join(dir, "nested", "x.db"), "b")
	if err != nil {
		t.Fatalf("OpenBoltStore(nested) error = %v", err)
	}
	nested.Close()
}
