package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hugh/projectflow/internal/api/dto"
	"github.com/hugh/projectflow/internal/api/middleware"
	"github.com/hugh/projectflow/internal/auth"
	"github.com/hugh/projectflow/internal/storage"
)

type AuthHandler struct {
	auth     *auth.Service
	sessions *auth.Manager
	store    storage.Storage
	logger   *slog.Logger
}

func NewAuthHandler(authService *auth.Service, sessions *auth.Manager, store storage.Storage, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     authService,
		sessions: sessions,
		store:    store,
		logger:   logger,
	}
}

// save persists the session and refreshes the cookie. A failure here means
// the state change would be lost, so it is reported as a server error.
func (h *AuthHandler) save(w http.ResponseWriter, r *http.Request, sess *auth.Session) bool {
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		writeError(w, h.logger, err)
		return false
	}
	return true
}

// Status handles GET /api/auth/status
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	hadConfig := sess.HasGoogleConfig()

	status := h.auth.Status(r.Context(), sess)

	if !hadConfig && sess.HasGoogleConfig() && !h.save(w, r, sess) {
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// User handles GET /api/auth/user
func (h *AuthHandler) User(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GoogleConfig handles POST /api/auth/google-config. Depending on the sign-in
// backend the response carries a consent URL or the signed-in user.
func (h *AuthHandler) GoogleConfig(w http.ResponseWriter, r *http.Request) {
	var req dto.GoogleConfigRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	sess := middleware.GetSession(r.Context())
	if returnTo := r.URL.Query().Get("returnTo"); isLocalPath(returnTo) {
		sess.ReturnTo = returnTo
	}

	res, err := h.auth.Configure(r.Context(), sess, req.Config())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.save(w, r, sess) {
		return
	}

	resp := dto.GoogleConfigResponse{Success: true, AuthURL: res.AuthURL}
	if res.User != nil {
		resp.User = res.User
	}
	writeJSON(w, http.StatusOK, resp)
}

// SaveConfig handles POST /api/config/google
func (h *AuthHandler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	var req dto.GoogleConfigRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	sess := middleware.GetSession(r.Context())
	if err := h.auth.SaveConfig(r.Context(), sess, req.Config()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.save(w, r, sess) {
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true, Message: "Google configuration saved"})
}

// Callback handles GET /api/auth/callback, the consent-screen redirect.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Warn("oauth consent refused", "error", errParam)
		http.Redirect(w, r, "/?error="+url.QueryEscape(errParam), http.StatusFound)
		return
	}

	if err := h.auth.CompleteOAuth(r.Context(), sess, q.Get("code"), q.Get("state")); err != nil {
		h.logger.Warn("oauth callback failed", "error", err)
		http.Redirect(w, r, "/?error=auth_failed", http.StatusFound)
		return
	}

	target := "/"
	if sess.ReturnTo != "" {
		target = sess.ReturnTo
		sess.ReturnTo = ""
	}
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		h.logger.Error("failed to save session after sign-in", "error", err)
		http.Redirect(w, r, "/?error=auth_failed", http.StatusFound)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// ExchangeCode handles POST /api/auth/exchange-oauth-code
func (h *AuthHandler) ExchangeCode(w http.ResponseWriter, r *http.Request) {
	var req dto.ExchangeCodeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	sess := middleware.GetSession(r.Context())
	tokens, err := h.auth.ExchangeCode(r.Context(), sess, req.Code)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.save(w, r, sess) {
		return
	}
	writeJSON(w, http.StatusOK, tokenStatus(sess, tokens))
}

// CheckTokens handles GET /api/auth/check-google-tokens
func (h *AuthHandler) CheckTokens(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	writeJSON(w, http.StatusOK, tokenStatus(sess, sess.GoogleTokens))
}

// UpdateToken handles POST /api/auth/update-google-token
func (h *AuthHandler) UpdateToken(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateGoogleTokenRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	sess := middleware.GetSession(r.Context())
	tokens, err := h.auth.UpdateTokens(sess, auth.TokenUpdate{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		Scope:        req.Scope,
		ExpiresIn:    req.ExpiresIn,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.save(w, r, sess) {
		return
	}
	writeJSON(w, http.StatusOK, tokenStatus(sess, tokens))
}

// RefreshTokens handles POST /api/auth/refresh-google-tokens
func (h *AuthHandler) RefreshTokens(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	tokens, err := h.auth.RefreshTokens(r.Context(), sess)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.save(w, r, sess) {
		return
	}
	writeJSON(w, http.StatusOK, tokenStatus(sess, tokens))
}

// InheritProjectConfig handles POST /api/auth/inherit-project-config
func (h *AuthHandler) InheritProjectConfig(w http.ResponseWriter, r *http.Request) {
	var req dto.InheritProjectConfigRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	sess := middleware.GetSession(r.Context())
	if err := h.auth.InheritProjectConfig(r.Context(), sess, req.ProjectID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.save(w, r, sess) {
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true, Message: "Project Google configuration inherited"})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if err := h.sessions.Destroy(r.Context(), w, sess); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true, Message: "Logged out"})
}

func tokenStatus(sess *auth.Session, tokens *auth.GoogleTokens) dto.TokenStatus {
	st := dto.TokenStatus{
		HasValidTokens: tokens.Valid(time.Now()),
		HasGmailScope:  tokens.HasScope(auth.ScopeGmailSend),
	}
	if tokens != nil {
		st.Scope = tokens.Scope
		if !tokens.ExpiresAt.IsZero() {
			st.ExpiresAt = tokens.ExpiresAt.UTC().Format(time.RFC3339)
		}
	}
	return st
}

// isLocalPath accepts only same-site absolute paths as redirect targets.
func isLocalPath(p string) bool {
	return len(p) > 0 && p[0] == '/' && (len(p) == 1 || (p[1] != '/' && p[1] != '\\'))
}
