package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hugh/projectflow/internal/api/dto"
	"github.com/hugh/projectflow/internal/api/middleware"
	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/auth"
	"github.com/hugh/projectflow/internal/billing"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/hugh/projectflow/internal/storage"
)

type SubscriptionHandler struct {
	store    storage.Storage
	billing  billing.Provider
	sessions *auth.Manager
	logger   *slog.Logger
	now      func() time.Time
}

func NewSubscriptionHandler(store storage.Storage, provider billing.Provider, sessions *auth.Manager, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		store:    store,
		billing:  provider,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// Plans handles GET /api/subscription/plans
func (h *SubscriptionHandler) Plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.GetSubscriptionPlans(r.Context()))
}

func lookupPlan(id string) (models.SubscriptionPlan, error) {
	plan, ok := models.FindPlan(id)
	if !ok {
		return plan, apperr.Invalid("planId", "unknown subscription plan")
	}
	return plan, nil
}

// CreatePaymentIntent handles POST /api/create-payment-intent
func (h *SubscriptionHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req dto.PaymentIntentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	plan, err := lookupPlan(req.PlanID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	intent, err := h.billing.CreatePaymentIntent(r.Context(), middleware.GetUserID(r.Context()), plan)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PaymentIntentResponse{
		ClientSecret: intent.ClientSecret,
		PaymentID:    intent.ID,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
	})
}

// Activate handles POST /api/subscription/activate. The session's cached
// tier is refreshed so later requests see the new plan.
func (h *SubscriptionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req dto.ActivateSubscriptionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	plan, err := lookupPlan(req.PlanID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx := r.Context()
	sess := middleware.GetSession(ctx)
	userID := sess.User.ID

	activation, err := h.billing.Activate(ctx, userID, plan, req.PaymentIntentID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.store.UpdateUserSubscription(ctx, userID, storage.SubscriptionUpdate{
		Tier:      activation.Tier,
		Status:    activation.Status,
		Expiry:    activation.Expiry,
		Reference: activation.Reference,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	sess.User = auth.NewSessionUser(user)
	if err := h.sessions.Save(ctx, w, sess); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("subscription activated", "user_id", userID, "plan", plan.ID, "provider", h.billing.Name())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Subscription activated",
		"user":    user,
	})
}

// Usage handles GET /api/usage
func (h *SubscriptionHandler) Usage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.store.GetUserUsage(r.Context(), middleware.GetUserID(r.Context()), storage.Month(h.now()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}
