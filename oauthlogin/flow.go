package oauthlogin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Callback is what the provider sent back to the redirect URL.
type Callback struct {
	State            string
	Code             string
	Error            string
	ErrorDescription string
}

// Claims are the identity claims read from a verified ID token.
type Claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Nonce         string `json:"nonce"`
}

// Result is a completed provider sign in.
type Result struct {
	IDToken     string // raw, verified; handed to the backend
	AccessToken string
	Expiry      time.Time
	Claims      Claims
}

// Flow is one authorization attempt. It carries the PKCE verifier, state and
// nonce and must not be reused.
type Flow struct {
	provider *Provider
	config   oauth2.Config
	state    string
	nonce    string
	verifier string
}

// Begin starts an attempt that will redirect to redirectURL.
func (p *Provider) Begin(redirectURL string) *Flow {
	cfg := p.config
	cfg.RedirectURL = redirectURL
	return &Flow{
		provider: p,
		config:   cfg,
		state:    uuid.NewString(),
		nonce:    uuid.NewString(),
		verifier: oauth2.GenerateVerifier(),
	}
}

func (f *Flow) State() string {
	return f.state
}

// AuthCodeURL is the provider URL to open in a browser.
func (f *Flow) AuthCodeURL() string {
	return f.config.AuthCodeURL(f.state,
		oauth2.S256ChallengeOption(f.verifier),
		oauth2.SetAuthURLParam("nonce", f.nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Complete checks the callback, exchanges the code and verifies the ID
// token, including its nonce.
func (f *Flow) Complete(ctx context.Context, cb Callback) (*Result, error) {
	if cb.Error != "" {
		return nil, fmt.Errorf("[Flow.Complete] %w: %s %s", ProviderDeniedErr, cb.Error, cb.ErrorDescription)
	}
	if cb.State != f.state {
		return nil, fmt.Errorf("[Flow.Complete] %w", InvalidStateErr)
	}
	if cb.Code == "" {
		return nil, fmt.Errorf("[Flow.Complete] %w: missing code", ProviderDeniedErr)
	}

	token, err := f.config.Exchange(ctx, cb.Code, oauth2.VerifierOption(f.verifier))
	if err != nil {
		return nil, fmt.Errorf("[Flow.Complete] exchange: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("[Flow.Complete] %w", MissingIDTokenErr)
	}

	idToken, err := f.provider.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("[Flow.Complete] verify id token: %w", err)
	}
	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("[Flow.Complete] claims: %w", err)
	}
	if claims.Nonce != f.nonce {
		return nil, fmt.Errorf("[Flow.Complete] %w", InvalidNonceErr)
	}

	return &Result{
		IDToken:     rawIDToken,
		AccessToken: token.AccessToken,
		Expiry:      token.Expiry,
		Claims:      claims,
	}, nil
}
