// Package store persists the login session between runs.
package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const appDir = "tessera-tui"

type sessionRecord struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
}

// Session is the process-wide login state, persisted under the user config
// dir. Storage trouble is never fatal: an unreadable or missing file simply
// means logged out. Subscribers are notified synchronously on logout so
// views depending on session presence refresh without polling.
type Session struct {
	mu          sync.Mutex
	record      sessionRecord
	log         *slog.Logger
	subscribers []func()
}

// Open loads the persisted session, if any. An access token that is a JWT
// with an expiry in the past is discarded up front; the server's 401 still
// has the final say for everything else.
func Open(log *slog.Logger) *Session {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Session{log: log}

	path, err := sessionPath()
	if err != nil {
		log.Warn("session storage unavailable", "err", err)
		return s
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("cannot read session", "path", path, "err", err)
		}
		return s
	}

	var record sessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		log.Warn("invalid session file", "path", path, "err", err)
		return s
	}
	if tokenExpired(record.AccessToken) {
		log.Debug("stored token expired", "username", record.Username)
		return s
	}

	s.record = record
	return s
}

// Login persists the token and display name. A failed write still leaves
// the in-memory session usable for this run.
func (s *Session) Login(username string, accessToken string) error {
	s.mu.Lock()
	s.record = sessionRecord{AccessToken: accessToken, Username: username}
	record := s.record
	s.mu.Unlock()

	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Logout clears the session in memory and on disk, then notifies every
// subscriber.
func (s *Session) Logout() {
	s.mu.Lock()
	s.record = sessionRecord{}
	subscribers := make([]func(), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()

	if path, err := sessionPath(); err == nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.Warn("cannot remove session file", "path", path, "err", err)
		}
	}

	for _, notify := range subscribers {
		notify()
	}
}

// Subscribe registers a callback invoked on logout.
func (s *Session) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Session) Username() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Username, s.record.Username != ""
}

func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.AccessToken, s.record.AccessToken != ""
}

func (s *Session) LoggedIn() bool {
	_, ok := s.Token()
	return ok
}

// tokenExpired inspects the exp claim without verifying the signature;
// the client holds no key and only wants to skip a doomed request. Opaque
// (non-JWT) tokens are assumed live.
func tokenExpired(token string) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

func sessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDir, "session.json"), nil
}
