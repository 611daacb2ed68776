package models

import "time"

type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierManagedAPI SubscriptionTier = "managed_api"
	TierPremium    SubscriptionTier = "premium"
)

func (t SubscriptionTier) Valid() bool {
	switch t {
	case TierFree, TierManagedAPI, TierPremium:
		return true
	}
	return false
}

const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

type User struct {
	Base
	Email              string           `gorm:"uniqueIndex;not null" json:"email"`
	FirstName          string           `json:"firstName,omitempty"`
	LastName           string           `json:"lastName,omitempty"`
	ProfileImageURL    string           `json:"profileImageUrl,omitempty"`
	SubscriptionTier   SubscriptionTier `gorm:"default:'free'" json:"subscriptionTier"`
	SubscriptionStatus string           `json:"subscriptionStatus,omitempty"`
	SubscriptionExpiry *time.Time       `json:"subscriptionExpiry,omitempty"`
	BillingReference   string           `json:"-"`

	// Sealed GoogleAPIConfig the user configured themselves, if any.
	GoogleConfigSealed string `gorm:"type:text" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName is what other members see: first name, else email.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Email
}

// GoogleAPIConfig is the credential bundle a user supplies to talk to Google
// on their own quota. Members of a project may inherit the owner's bundle.
type GoogleAPIConfig struct {
	APIKey       string `json:"apiKey" validate:"required"`
	ClientID     string `json:"clientId" validate:"required"`
	ClientSecret string `json:"clientSecret" validate:"required"`
	GeminiAPIKey string `json:"geminiApiKey,omitempty"`
}
