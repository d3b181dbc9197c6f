package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Authenticator wraps the OIDC provider used for login. The identity
// provider owns credentials, verification emails and role assignment;
// this side only runs the code flow and reads the ID token claims.
type Authenticator struct {
	providerName string
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// OIDCConfig carries the provider settings from the environment.
type OIDCConfig struct {
	ProviderName string
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Configured reports whether enough settings are present to run OIDC.
func (c OIDCConfig) Configured() bool {
	return c.IssuerURL != "" && c.ClientID != "" && c.ClientSecret != ""
}

// NewAuthenticator discovers the OIDC provider and prepares the code
// flow configuration.
func NewAuthenticator(ctx context.Context, cfg OIDCConfig) (*Authenticator, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("auth: discover oidc provider: %w", err)
	}
	return &Authenticator{
		providerName: cfg.ProviderName,
		provider:     provider,
		verifier:     provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

// ProviderName returns the display name used on the login page.
func (a *Authenticator) ProviderName() string {
	if a == nil || a.providerName == "" {
		return "auth0"
	}
	return a.providerName
}

// AuthCodeURL builds the authorization redirect for the given state.
func (a *Authenticator) AuthCodeURL(state string) string {
	return a.oauth2Config.AuthCodeURL(state)
}

// Exchange trades the authorization code for a verified ID token and
// returns the identity payload to store in the session. Every claim is
// kept so the identity resolver can pick the namespaced roles claim.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*shared.StoredIdentity, error) {
	token, err := a.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchange code: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("auth: missing id_token in token response")
	}
	idToken, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("auth: verify id token: %w", err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("auth: parse claims: %w", err)
	}

	stored := &shared.StoredIdentity{
		Subject: idToken.Subject,
		Claims:  claims,
	}
	if email, ok := claims["email"].(string); ok {
		stored.Email = email
	}
	if verified, ok := claims["email_verified"].(bool); ok {
		stored.EmailVerified = verified
	}
	return stored, nil
}
