// Package oauthlogin runs the browser based OAuth flow for a public client:
// PKCE authorization code exchange with the provider, ID token verification,
// and a loopback callback listener. The verified ID token is what the LegID
// backend accepts for an OAuth sign in.
package oauthlogin

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-legid-client/internal/config"
	"github.com/jrsteele09/go-legid-client/sessions"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	googleIssuer   = "https://accounts.google.com"
	googleJWKSURL  = "https://www.googleapis.com/oauth2/v3/certs"
	microsoftLogin = "https://login.microsoftonline.com"
)

var defaultScopes = []string{oidc.ScopeOpenID, "email", "profile"}

// Provider is an identity provider the client can sign in with.
type Provider struct {
	Name     sessions.Provider
	config   oauth2.Config
	verifier *oidc.IDTokenVerifier
}

type ProviderOption func(*Provider)

// WithVerifier replaces the JWKS backed ID token verifier.
func WithVerifier(v *oidc.IDTokenVerifier) ProviderOption {
	return func(p *Provider) {
		p.verifier = v
	}
}

// WithEndpoint overrides the provider's authorization and token URLs.
func WithEndpoint(e oauth2.Endpoint) ProviderOption {
	return func(p *Provider) {
		p.config.Endpoint = e
	}
}

func WithScopes(scopes ...string) ProviderOption {
	return func(p *Provider) {
		p.config.Scopes = scopes
	}
}

// NewGoogle configures Google sign in. Keys are fetched lazily from
// Google's JWKS endpoint on first verification.
func NewGoogle(ctx context.Context, clientID string, options ...ProviderOption) (*Provider, error) {
	if clientID == "" {
		return nil, fmt.Errorf("[NewGoogle] %w", MissingClientIDErr)
	}
	p := &Provider{
		Name: sessions.ProviderGoogle,
		config: oauth2.Config{
			ClientID: clientID,
			Endpoint: endpoints.Google,
			Scopes:   defaultScopes,
		},
		verifier: oidc.NewVerifier(googleIssuer, oidc.NewRemoteKeySet(ctx, googleJWKSURL), &oidc.Config{ClientID: clientID}),
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

// NewMicrosoft configures Microsoft identity platform sign in for tenant.
// The multi tenant aliases (common, organizations, consumers) issue tokens
// whose issuer names the user's home tenant, so the issuer is not pinned
// for them.
func NewMicrosoft(ctx context.Context, clientID, tenant string, options ...ProviderOption) (*Provider, error) {
	if clientID == "" {
		return nil, fmt.Errorf("[NewMicrosoft] %w", MissingClientIDErr)
	}
	if tenant == "" {
		tenant = "common"
	}
	keys := oidc.NewRemoteKeySet(ctx, fmt.Sprintf("%s/%s/discovery/v2.0/keys", microsoftLogin, tenant))
	issuer := fmt.Sprintf("%s/%s/v2.0", microsoftLogin, tenant)
	multiTenant := false
	switch strings.ToLower(tenant) {
	case "common", "organizations", "consumers":
		multiTenant = true
	}

	p := &Provider{
		Name: sessions.ProviderMicrosoft,
		config: oauth2.Config{
			ClientID: clientID,
			Endpoint: endpoints.AzureAD(tenant),
			Scopes:   defaultScopes,
		},
		verifier: oidc.NewVerifier(issuer, keys, &oidc.Config{ClientID: clientID, SkipIssuerCheck: multiTenant}),
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

// FromConfig builds the named provider from the OAuth section of cfg.
func FromConfig(ctx context.Context, cfg config.OAuthConfig, name sessions.Provider, options ...ProviderOption) (*Provider, error) {
	switch name {
	case sessions.ProviderGoogle:
		return NewGoogle(ctx, cfg.GetGoogleClientID(), options...)
	case sessions.ProviderMicrosoft:
		return NewMicrosoft(ctx, cfg.GetMicrosoftClientID(), cfg.GetMicrosoftTenant(), options...)
	default:
		return nil, fmt.Errorf("[oauthlogin.FromConfig] unsupported provider %q", name)
	}
}
