package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hugh/projectflow/internal/database/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

const (
	ScopeProfile   = "https://www.googleapis.com/auth/userinfo.profile"
	ScopeEmail     = "https://www.googleapis.com/auth/userinfo.email"
	ScopeDrive     = "https://www.googleapis.com/auth/drive"
	ScopeDriveFile = "https://www.googleapis.com/auth/drive.file"
	ScopeGmailSend = "https://www.googleapis.com/auth/gmail.send"
)

// PopupRedirect is the redirect URI used by the client-side popup flow.
const PopupRedirect = "postmessage"

var DefaultScopes = []string{ScopeProfile, ScopeEmail, ScopeDrive, ScopeDriveFile, ScopeGmailSend}

var ErrMissingIDToken = errors.New("token response carried no id_token")

// Identity is the verified subject of a Google ID token.
type Identity struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
	Picture   string
}

// IDTokenVerifier validates a raw ID token for the given audience.
type IDTokenVerifier func(ctx context.Context, rawToken, audience string) (*Identity, error)

// VerifyGoogleIDToken checks the token signature against Google's published
// keys.
func VerifyGoogleIDToken(ctx context.Context, rawToken, audience string) (*Identity, error) {
	payload, err := idtoken.Validate(ctx, rawToken, audience)
	if err != nil {
		return nil, fmt.Errorf("validating id token: %w", err)
	}
	claim := func(name string) string {
		v, _ := payload.Claims[name].(string)
		return v
	}
	id := &Identity{
		Subject:   payload.Subject,
		Email:     claim("email"),
		FirstName: claim("given_name"),
		LastName:  claim("family_name"),
		Picture:   claim("picture"),
	}
	if id.Email == "" {
		return nil, errors.New("id token carries no email claim")
	}
	return id, nil
}

// GoogleOAuth runs the consent and token flows against a user-supplied OAuth
// client.
type GoogleOAuth struct {
	Endpoint   oauth2.Endpoint
	Scopes     []string
	Verify     IDTokenVerifier
	HTTPClient *http.Client
}

func NewGoogleOAuth() *GoogleOAuth {
	return &GoogleOAuth{
		Endpoint: google.Endpoint,
		Scopes:   DefaultScopes,
		Verify:   VerifyGoogleIDToken,
	}
}

func (g *GoogleOAuth) Config(cfg *models.GoogleAPIConfig, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       g.Scopes,
		Endpoint:     g.Endpoint,
	}
}

func (g *GoogleOAuth) AuthCodeURL(cfg *models.GoogleAPIConfig, redirectURL, state string) string {
	return g.Config(cfg, redirectURL).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

func (g *GoogleOAuth) Exchange(ctx context.Context, cfg *models.GoogleAPIConfig, redirectURL, code string) (*oauth2.Token, error) {
	tok, err := g.Config(cfg, redirectURL).Exchange(g.context(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return tok, nil
}

// Identify verifies the id_token returned alongside tok.
func (g *GoogleOAuth) Identify(ctx context.Context, cfg *models.GoogleAPIConfig, tok *oauth2.Token) (*Identity, error) {
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return nil, ErrMissingIDToken
	}
	return g.Verify(ctx, raw, cfg.ClientID)
}

// Refresh trades the refresh token for a new access token, whether or not
// the current one has expired.
func (g *GoogleOAuth) Refresh(ctx context.Context, cfg *models.GoogleAPIConfig, tokens *GoogleTokens) (*oauth2.Token, error) {
	current := tokens.OAuth2()
	current.Expiry = time.Now().Add(-time.Minute)

	tok, err := g.Config(cfg, "").TokenSource(g.context(ctx), current).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	return tok, nil
}

func (g *GoogleOAuth) context(ctx context.Context) context.Context {
	if g.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, g.HTTPClient)
}
