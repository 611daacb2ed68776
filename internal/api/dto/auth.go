package dto

import "github.com/hugh/projectflow/internal/database/models"

type GoogleConfigRequest struct {
	APIKey       string `json:"apiKey" validate:"required"`
	ClientID     string `json:"clientId" validate:"required"`
	ClientSecret string `json:"clientSecret" validate:"required"`
	GeminiAPIKey string `json:"geminiApiKey,omitempty"`
}

func (r GoogleConfigRequest) Config() *models.GoogleAPIConfig {
	return &models.GoogleAPIConfig{
		APIKey:       r.APIKey,
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		GeminiAPIKey: r.GeminiAPIKey,
	}
}

type GoogleConfigResponse struct {
	Success bool   `json:"success"`
	AuthURL string `json:"authUrl,omitempty"`
	User    any    `json:"user,omitempty"`
}

type ExchangeCodeRequest struct {
	Code string `json:"code" validate:"required"`
}

type UpdateGoogleTokenRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken,omitempty"`
	Scope        string `json:"scope" validate:"required"`
	ExpiresIn    int    `json:"expiresIn,omitempty" validate:"min=0"`
}

type InheritProjectConfigRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
}

// TokenStatus reports whether the session can call Google right now.
type TokenStatus struct {
	HasValidTokens bool   `json:"hasValidTokens"`
	HasGmailScope  bool   `json:"hasGmailScope"`
	ExpiresAt      string `json:"expiresAt,omitempty"`
	Scope          string `json:"scope,omitempty"`
}
