package dto

type PaymentIntentRequest struct {
	PlanID string `json:"planId" validate:"required"`
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
	PaymentID    string `json:"paymentIntentId"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type ActivateSubscriptionRequest struct {
	PlanID          string `json:"planId" validate:"required"`
	PaymentIntentID string `json:"paymentIntentId"`
}
