package session

import (
	"context"
	"errors"
	"time"
)

// ErrIncompleteSession is returned by Save when a session is missing one of its
// three credential fields.
var ErrIncompleteSession = errors.New("incomplete session")

// ErrSessionCorrupt is returned by Load when persisted data cannot be decoded.
var ErrSessionCorrupt = errors.New("session data corrupt")

// ErrStoreUnavailable wraps backend failures (I/O, Redis, SQLite).
var ErrStoreUnavailable = errors.New("credential store unavailable")

// Session is the authenticated identity plus its current token pair.
//
// A Session is either complete (all three credential fields non-empty) or
// treated as absent. SavedAt is informational and set by the stores.
type Session struct {
	Username     string
	AccessToken  string
	RefreshToken string

	SavedAt time.Time
}

// Complete reports whether all credential fields are present.
func (s *Session) Complete() bool {
	return s != nil && s.Username != "" && s.AccessToken != "" && s.RefreshToken != ""
}

// Clone returns a copy that shares no state with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// WithAccessToken returns a copy of s carrying a new access token. Username and
// refresh token are unchanged.
func (s *Session) WithAccessToken(token string) *Session {
	c := s.Clone()
	c.AccessToken = token
	return c
}

// Store is the credential persistence contract used by the Engine.
//
// Implementations must be safe for concurrent use, must return (nil, nil)
// from Load when nothing (or only a partial set) is persisted, and must make
// Save and Clear all-or-nothing.
type Store interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	Clear(ctx context.Context) error
}

func validateForSave(sess *Session) error {
	if !sess.Complete() {
		return ErrIncompleteSession
	}
	return nil
}
