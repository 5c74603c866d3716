package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jneless/bkp-drive/internal/constants"
	"github.com/jneless/bkp-drive/internal/models"
)

// ErrLoggedOut means no valid login is stored. It is a state, not a failure.
var ErrLoggedOut = errors.New("logged out")

// Store keys of a saved login.
const (
	keyToken  = "auth_token"
	keyUser   = "user_info"
	keyExpiry = "auth_expiry"
)

// AuthRecord is a login held by a session.
type AuthRecord struct {
	Token     string
	User      models.User
	ExpiresAt time.Time
	Remember  bool
}

// Expired reports whether the record is past its expiry at now.
func (a *AuthRecord) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt)
}

// TokenExpiry picks the expiry of a fresh login: the server-reported time
// if present, else the token's exp claim, else the default lifetime.
// The token is not verified; the server remains the authority.
func TokenExpiry(token string, server *time.Time, now time.Time) time.Time {
	if server != nil && !server.IsZero() {
		return *server
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
	if err == nil {
		if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return now.Add(constants.DefaultTokenLifetime)
}

// NewAuthRecord builds a record from a login response.
func NewAuthRecord(resp *models.LoginResponse, remember bool, now time.Time) *AuthRecord {
	rec := &AuthRecord{
		Token:     resp.Token,
		ExpiresAt: TokenExpiry(resp.Token, resp.ExpiresAt, now),
		Remember:  remember,
	}
	if resp.User != nil {
		rec.User = *resp.User
	}
	return rec
}

// SaveAuth writes rec to the persistent store when Remember is set, or
// to the session store otherwise, and clears the other store.
func SaveAuth(st Stores, rec *AuthRecord) error {
	target, other := st.Session, st.Persistent
	if rec.Remember {
		target, other = st.Persistent, st.Session
	}

	user, err := json.Marshal(rec.User)
	if err != nil {
		return fmt.Errorf("failed to encode user info: %w", err)
	}
	if err := other.Delete(keyToken, keyUser, keyExpiry); err != nil {
		return fmt.Errorf("failed to clear stale login: %w", err)
	}
	if err := target.Put(keyToken, rec.Token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	if err := target.Put(keyUser, string(user)); err != nil {
		return fmt.Errorf("failed to save user info: %w", err)
	}
	if err := target.Put(keyExpiry, strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("failed to save token expiry: %w", err)
	}
	return nil
}

// LoadAuth reads the saved login, persistent store first. A missing or
// expired login clears both stores and returns ErrLoggedOut.
func LoadAuth(st Stores, now time.Time) (*AuthRecord, error) {
	for _, src := range []struct {
		store    Store
		remember bool
	}{{st.Persistent, true}, {st.Session, false}} {
		token, ok, err := src.store.Get(keyToken)
		if err != nil {
			return nil, fmt.Errorf("failed to read saved login: %w", err)
		}
		if !ok || token == "" {
			continue
		}

		rec := &AuthRecord{Token: token, Remember: src.remember}
		if raw, ok, _ := src.store.Get(keyUser); ok {
			if err := json.Unmarshal([]byte(raw), &rec.User); err != nil {
				// a login we cannot read back is treated as no login
				if err := ClearAuth(st); err != nil {
					return nil, err
				}
				return nil, ErrLoggedOut
			}
		}
		if raw, ok, _ := src.store.Get(keyExpiry); ok {
			if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
				rec.ExpiresAt = time.UnixMilli(ms)
			}
		}
		if rec.ExpiresAt.IsZero() {
			rec.ExpiresAt = TokenExpiry(token, nil, now)
		}

		if rec.Expired(now) {
			if err := ClearAuth(st); err != nil {
				return nil, err
			}
			return nil, ErrLoggedOut
		}
		return rec, nil
	}

	if err := ClearAuth(st); err != nil {
		return nil, err
	}
	return nil, ErrLoggedOut
}

// ClearAuth removes the saved login from both stores.
func ClearAuth(st Stores) error {
	for _, s := range []Store{st.Session, st.Persistent} {
		if err := s.Delete(keyToken, keyUser, keyExpiry); err != nil {
			return fmt.Errorf("failed to clear saved login: %w", err)
		}
	}
	return nil
}

// SetAuth attaches a login to the session.
func (s *Session) SetAuth(rec *AuthRecord) {
	s.mu.Lock()
	s.auth = rec
	s.mu.Unlock()
	s.bus.PublishAuth(true, rec.User.Username, "login")
}

// ClearAuth drops the login; reason is "logout" or "expired".
func (s *Session) ClearAuth(reason string) {
	s.mu.Lock()
	had := s.auth != nil
	s.auth = nil
	s.mu.Unlock()
	if had {
		s.bus.PublishAuth(false, "", reason)
	}
}

// Auth returns the current login, nil when logged out.
func (s *Session) Auth() *AuthRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth
}

// Token returns the bearer token, "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.auth == nil {
		return ""
	}
	return s.auth.Token
}

// Authenticated reports whether a non-expired login is attached at now.
// An expired login is dropped.
func (s *Session) Authenticated(now time.Time) bool {
	rec := s.Auth()
	if rec == nil {
		return false
	}
	if rec.Expired(now) {
		s.ClearAuth("expired")
		return false
	}
	return true
}
