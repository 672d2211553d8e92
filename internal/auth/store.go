package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/chatsql/internal/domain"
	"github.com/felixgeelhaar/chatsql/internal/storage/local"
)

const (
	sessionCollection = "session"
	sessionID         = "current"
)

// Session is what survives a restart: the identity plus the backend's
// session cookies, bound to the backend they were issued by
type Session struct {
	BaseURL string           `json:"base_url"`
	State   domain.AuthState `json:"state"`
	Cookies []SavedCookie    `json:"cookies"`
	SavedAt time.Time        `json:"saved_at"`
}

// SavedCookie is the persisted form of an http.Cookie
type SavedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// Repository persists the session
type Repository interface {
	SaveSession(s *Session) error
	LoadSession() (*Session, error) // nil, nil when nothing is stored
	DeleteSession() error
}

// Store implements Repository on the local JSON store
type Store struct {
	store *local.Store
}

// NewStore creates a session store under dir
func NewStore(dir string) (*Store, error) {
	s, err := local.NewStore(dir)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &Store{store: s}, nil
}

// SaveSession writes the session
func (s *Store) SaveSession(sess *Session) error {
	if err := s.store.Save(sessionCollection, sessionID, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession reads the session, returning nil when none is stored
func (s *Store) LoadSession() (*Session, error) {
	var sess Session
	if err := s.store.Load(sessionCollection, sessionID, &sess); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &sess, nil
}

// DeleteSession removes the stored session
func (s *Store) DeleteSession() error {
	if err := s.store.Delete(sessionCollection, sessionID); err != nil && !errors.Is(err, local.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func saveCookies(cookies []*http.Cookie) []SavedCookie {
	out := make([]SavedCookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, SavedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	return out
}

// restoreCookies drops expired cookies. Cookies read back from a jar carry
// no path, so they are restored at the root.
func restoreCookies(saved []SavedCookie, now time.Time) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	return out
}
