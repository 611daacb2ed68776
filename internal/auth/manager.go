package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Manager binds sessions to requests through a signed cookie.
type Manager struct {
	store      SessionStore
	tokens     TokenService
	ttl        time.Duration
	cookieName string
	secure     bool
}

type ManagerConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

func NewManager(store SessionStore, tokens TokenService, cfg ManagerConfig) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "pf_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	return &Manager{
		store:      store,
		tokens:     tokens,
		ttl:        cfg.TTL,
		cookieName: cfg.CookieName,
		secure:     cfg.Secure,
	}
}

// New returns an unsaved anonymous session.
func (m *Manager) New() *Session {
	return &Session{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
}

// Load resolves the request's session. A missing, forged or expired cookie
// yields a fresh anonymous session; only store failures are errors.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return m.New(), nil
	}

	claims, err := m.tokens.ValidateToken(cookie.Value)
	if err != nil {
		return m.New(), nil
	}

	sess, err := m.store.Get(r.Context(), claims.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return m.New(), nil
	}
	if err != nil {
		return m.New(), err
	}
	return sess, nil
}

// Save persists the session and (re)issues its cookie.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if err := m.store.Save(ctx, sess, m.ttl); err != nil {
		return err
	}
	cookie, err := m.Cookie(sess)
	if err != nil {
		return err
	}
	http.SetCookie(w, cookie)
	return nil
}

// Cookie builds the signed cookie for sess.
func (m *Manager) Cookie(sess *Session) (*http.Cookie, error) {
	token, err := m.tokens.GenerateToken(sess.ID)
	if err != nil {
		return nil, fmt.Errorf("signing session cookie: %w", err)
	}
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.ttl.Seconds()),
	}, nil
}

// Destroy deletes the session and expires its cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	return m.store.Delete(ctx, sess.ID)
}
