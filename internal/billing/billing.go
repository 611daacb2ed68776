// Package billing decides how a subscription plan is paid for and
// activated. Deployments pick one provider; none of them talk to a card
// processor.
package billing

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/hugh/projectflow/pkg/crypto"
)

const (
	ProviderNone   = "none"
	ProviderManual = "manual"

	billingPeriod = 30 * 24 * time.Hour
)

// ErrBillingDisabled is returned for paid plans when no provider is set up.
var ErrBillingDisabled = fmt.Errorf("%w: billing is not enabled", apperr.ErrValidation)

type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	PlanID       string `json:"planId"`
}

// Activation is the subscription state a plan activation produces.
type Activation struct {
	Tier      models.SubscriptionTier
	Status    string
	Expiry    *time.Time
	Reference string
}

type Provider interface {
	Name() string
	CreatePaymentIntent(ctx context.Context, userID string, plan models.SubscriptionPlan) (*PaymentIntent, error)
	Activate(ctx context.Context, userID string, plan models.SubscriptionPlan, paymentID string) (*Activation, error)
}

func New(name string) (Provider, error) {
	switch name {
	case "", ProviderNone:
		return NoBilling{}, nil
	case ProviderManual:
		return NewManual(), nil
	default:
		return nil, fmt.Errorf("unknown billing provider %q", name)
	}
}

// NoBilling only lets users (re)activate the free plan.
type NoBilling struct{}

func (NoBilling) Name() string { return ProviderNone }

func (NoBilling) CreatePaymentIntent(context.Context, string, models.SubscriptionPlan) (*PaymentIntent, error) {
	return nil, ErrBillingDisabled
}

func (NoBilling) Activate(_ context.Context, _ string, plan models.SubscriptionPlan, _ string) (*Activation, error) {
	if plan.Tier != models.TierFree {
		return nil, ErrBillingDisabled
	}
	return freeActivation(), nil
}

// Manual issues payment intents that an operator settles out of band.
// Activation applies the tier at once for one billing period and consumes
// the intent. Intents live in memory, so they do not survive a restart.
type Manual struct {
	now func() time.Time

	mu      sync.Mutex
	intents map[string]issuedIntent
}

type issuedIntent struct {
	userID string
	planID string
}

func NewManual() *Manual {
	return &Manual{now: time.Now, intents: make(map[string]issuedIntent)}
}

func (m *Manual) Name() string { return ProviderManual }

func (m *Manual) CreatePaymentIntent(_ context.Context, userID string, plan models.SubscriptionPlan) (*PaymentIntent, error) {
	if plan.Price <= 0 {
		return nil, apperr.Invalid("planId", "the free plan does not need a payment")
	}
	secret, err := crypto.GenerateRandomString(24)
	if err != nil {
		return nil, fmt.Errorf("generating client secret: %w", err)
	}
	id := "pi_" + uuid.NewString()

	m.mu.Lock()
	m.intents[id] = issuedIntent{userID: userID, planID: plan.ID}
	m.mu.Unlock()

	return &PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_" + secret,
		Amount:       int64(math.Round(plan.Price * 100)),
		Currency:     "usd",
		PlanID:       plan.ID,
	}, nil
}

func (m *Manual) Activate(_ context.Context, userID string, plan models.SubscriptionPlan, paymentID string) (*Activation, error) {
	if plan.Tier == models.TierFree {
		return freeActivation(), nil
	}
	if paymentID == "" {
		return nil, apperr.Invalid("paymentIntentId", "is required for paid plans")
	}

	m.mu.Lock()
	issued, ok := m.intents[paymentID]
	if ok && issued.userID == userID && issued.planID == plan.ID {
		delete(m.intents, paymentID)
	}
	m.mu.Unlock()

	switch {
	case !ok || issued.userID != userID:
		return nil, apperr.Invalid("paymentIntentId", "was not issued to this user")
	case issued.planID != plan.ID:
		return nil, apperr.Invalid("paymentIntentId", "was issued for a different plan")
	}

	expiry := m.now().Add(billingPeriod)
	return &Activation{
		Tier:      plan.Tier,
		Status:    models.SubscriptionActive,
		Expiry:    &expiry,
		Reference: paymentID,
	}, nil
}

func freeActivation() *Activation {
	return &Activation{Tier: models.TierFree, Status: models.SubscriptionActive}
}
