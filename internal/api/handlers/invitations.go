package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hugh/projectflow/internal/api/middleware"
	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/auth"
	"github.com/hugh/projectflow/internal/invitations"
)

type InvitationHandler struct {
	invitations *invitations.Service
	sessions    *auth.Manager
	logger      *slog.Logger
}

func NewInvitationHandler(inv *invitations.Service, sessions *auth.Manager, logger *slog.Logger) *InvitationHandler {
	return &InvitationHandler{invitations: inv, sessions: sessions, logger: logger}
}

// Get handles GET /api/invitations/{id}. It is public so the invitee can see
// what they are joining before signing in.
func (h *InvitationHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.invitations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Accept handles POST /api/invitations/{id}/accept
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.GetSession(ctx)

	res, err := h.invitations.Accept(ctx, sess, chi.URLParam(r, "id"), func(s *auth.Session) error {
		return h.sessions.Save(ctx, w, s)
	})
	if errors.Is(err, apperr.ErrConflict) {
		writeMessage(w, http.StatusConflict, "Invitation already accepted")
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
