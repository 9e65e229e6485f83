package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Options configures a Manager.
type Options struct {
	CookieName string
	// Secure cookies are marked SameSite=None so cross-origin frontends can
	// send them; insecure cookies fall back to SameSite=Lax.
	Secure   bool
	Lifetime time.Duration
}

// Manager loads sessions from request cookies and persists them to a Store.
type Manager struct {
	store Store
	opts  Options
	now   func() time.Time
}

// NewManager creates a Manager backed by store.
func NewManager(store Store, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "newsdash_session"
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = 24 * time.Hour
	}
	return &Manager{store: store, opts: opts, now: time.Now}
}

// Store returns the backing store.
func (m *Manager) Store() Store { return m.store }

// Load returns the session named by the request cookie, or a new empty
// session when there is no cookie or the stored session is gone.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil || cookie.Value == "" {
		return newSession(), nil
	}

	rec, err := m.store.Load(r.Context(), hashToken(cookie.Value))
	if errors.Is(err, ErrNotFound) {
		s := newSession()
		// Stale cookie: tell the client to drop it unless a new one is issued.
		s.cookieReset = true
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return fromRecord(rec), nil
}

// Commit writes pending changes to the store. ErrConflict means another
// request changed the session first; the caller's changes were not applied.
func (m *Manager) Commit(ctx context.Context, s *Session) error {
	for _, id := range s.staleIDs {
		if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete replaced session: %w", err)
		}
	}
	s.staleIDs = nil

	if !s.dirty {
		return nil
	}

	if s.id == "" {
		if len(s.values) == 0 {
			s.dirty = false
			return nil
		}
		token, id, err := newToken()
		if err != nil {
			return err
		}
		s.token, s.id = token, id
		s.version = 0
		s.expiresAt = m.now().Add(m.opts.Lifetime)
	}

	rec := &Record{
		ID:        s.id,
		Values:    s.values,
		Version:   s.version,
		ExpiresAt: s.expiresAt,
	}
	if err := m.store.Save(ctx, rec); err != nil {
		if s.version == 0 {
			// Never stored: forget the token so no cookie is issued for it.
			s.id, s.token = "", ""
		}
		return fmt.Errorf("save session: %w", err)
	}
	s.version = rec.Version
	s.dirty = false
	s.cleared = false
	s.regenerate = false
	return nil
}

// WriteCookie sets the session cookie when a new token was issued and
// expires it when the session was cleared or its record no longer exists.
// It must run before the response body is written.
func (m *Manager) WriteCookie(w http.ResponseWriter, s *Session) {
	switch {
	case s.token != "":
		http.SetCookie(w, m.cookie(s.token, s.expiresAt))
		s.token = ""
		s.cookieReset = false
	case s.cookieReset && s.id == "":
		http.SetCookie(w, m.cookie("", time.Unix(0, 0)))
		s.cookieReset = false
	}
}

// Save commits s and writes its cookie.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if err := m.Commit(ctx, s); err != nil {
		return err
	}
	m.WriteCookie(w, s)
	return nil
}

func (m *Manager) cookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if m.opts.Secure {
		c.SameSite = http.SameSiteNoneMode
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}

// Sweep removes expired sessions from the store.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	return m.store.DeleteExpired(ctx, m.now())
}
