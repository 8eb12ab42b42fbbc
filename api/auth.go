package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-legid-client/internal/errors"
	"github.com/jrsteele09/go-legid-client/profiles"
	"github.com/jrsteele09/go-legid-client/sessions"
	"github.com/jrsteele09/go-legid-client/users"
)

// authResponse is the token response of every session creating endpoint.
// The identity may arrive under "user" or flattened at the top level.
type authResponse struct {
	AccessToken  string          `json:"access_token"`
	Token        string          `json:"token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int             `json:"expires_in"`
	User         map[string]any  `json:"user"`
	Profile      json.RawMessage `json:"profile"`
	Consent      json.RawMessage `json:"consent"`
}

func (c *Client) decodeAuthResult(op string, data []byte) (*sessions.AuthResult, error) {
	var resp authResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, unexpected(op, err)
	}
	token := resp.AccessToken
	if token == "" {
		token = resp.Token
	}
	if token == "" {
		return nil, unexpected(op, errors.New("response carries no access token"))
	}

	user := resp.User
	if user == nil {
		var flat map[string]any
		if err := json.Unmarshal(data, &flat); err != nil {
			return nil, unexpected(op, err)
		}
		user = flat
	}
	identity := users.NormalizeIdentity(user)
	if identity == nil || identity.ID == "" {
		return nil, unexpected(op, errors.New("response carries no user"))
	}

	result := &sessions.AuthResult{
		Session:  sessions.New(token, resp.RefreshToken, resp.TokenType, resp.ExpiresIn, c.nowTime()),
		Identity: identity,
	}
	if present(resp.Profile) {
		p, err := profiles.DecodeProfile(resp.Profile)
		if err != nil {
			return nil, unexpected(op, err)
		}
		result.Profile = p
	}
	if present(resp.Consent) {
		var consent profiles.Consent
		if err := json.Unmarshal(resp.Consent, &consent); err != nil {
			return nil, unexpected(op, err)
		}
		consent = consent.Normalize()
		result.Consent = &consent
	}
	return result, nil
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// asValidation turns a 401 on an unauthenticated endpoint into a validation
// error: bad credentials are user correctable, not an expired session.
func asValidation(err error) error {
	if e, ok := AsError(err); ok && e.Class == apperrors.ErrUnauthorized {
		e.Class = apperrors.ErrValidation
	}
	return err
}

// Login creates a session from an email and password.
func (c *Client) Login(ctx context.Context, creds sessions.Credentials) (*sessions.AuthResult, error) {
	const op = "Client.Login"
	data, err := c.do(ctx, request{op: op, method: http.MethodPost, path: "/api/auth/v2/login", body: creds.Normalized()})
	if err != nil {
		return nil, asValidation(err)
	}
	return c.decodeAuthResult(op, data)
}

// Signup registers a password account and returns its first session.
func (c *Client) Signup(ctx context.Context, req sessions.SignupRequest) (*sessions.AuthResult, error) {
	const op = "Client.Signup"
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	data, err := c.do(ctx, request{op: op, method: http.MethodPost, path: "/api/auth/v2/register", body: req})
	if err != nil {
		return nil, asValidation(err)
	}
	return c.decodeAuthResult(op, data)
}

// LoginWithOAuth exchanges a provider token for a backend session.
func (c *Client) LoginWithOAuth(ctx context.Context, token sessions.OAuthToken) (*sessions.AuthResult, error) {
	const op = "Client.LoginWithOAuth"
	data, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/api/auth/" + string(token.Provider) + "/token",
		body:   map[string]string{"token": token.Token},
	})
	if err != nil {
		return nil, asValidation(err)
	}
	return c.decodeAuthResult(op, data)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.do(ctx, request{
		op:     "Client.ForgotPassword",
		method: http.MethodPost,
		path:   "/api/auth/v2/forgot-password",
		body:   map[string]string{"email": strings.ToLower(strings.TrimSpace(email))},
	})
	return asValidation(err)
}

func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	_, err := c.do(ctx, request{
		op:     "Client.ResetPassword",
		method: http.MethodPost,
		path:   "/api/auth/v2/reset-password",
		body:   map[string]string{"token": token, "new_password": newPassword},
	})
	return asValidation(err)
}

// CurrentIdentity re-validates s and returns the identity it belongs to.
func (c *Client) CurrentIdentity(ctx context.Context, s *sessions.Session) (*users.Identity, error) {
	const op = "Client.CurrentIdentity"
	data, err := c.get(ctx, request{op: op, path: "/api/auth/me", session: s})
	if err != nil {
		return nil, err
	}
	var envelope struct {
		User map[string]any `json:"user"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, unexpected(op, err)
	}
	raw := envelope.User
	if raw == nil {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, unexpected(op, err)
		}
	}
	identity := users.NormalizeIdentity(raw)
	if identity == nil || identity.ID == "" {
		return nil, unexpected(op, errors.New("response carries no user"))
	}
	return identity, nil
}

// RefreshSession trades the refresh token of s for a new session. When the
// response omits a refresh token the old one stays in use.
func (c *Client) RefreshSession(ctx context.Context, s *sessions.Session) (*sessions.AuthResult, error) {
	const op = "Client.RefreshSession"
	data, err := c.do(ctx, request{
		op:      op,
		method:  http.MethodPost,
		path:    "/api/auth/refresh",
		body:    map[string]string{"refresh_token": s.RefreshToken},
		session: s,
	})
	if err != nil {
		return nil, err
	}
	result, err := c.decodeAuthResult(op, data)
	if err != nil {
		return nil, err
	}
	if result.Session.RefreshToken == "" {
		result.Session.RefreshToken = s.RefreshToken
	}
	return result, nil
}

// Logout invalidates s server side.
func (c *Client) Logout(ctx context.Context, s *sessions.Session) error {
	_, err := c.do(ctx, request{
		op:      "Client.Logout",
		method:  http.MethodPost,
		path:    "/api/auth/logout",
		body:    map[string]string{"refresh_token": s.RefreshToken},
		session: s,
	})
	return err
}

// LogoutAll revokes every session of the signed in account.
func (c *Client) LogoutAll(ctx context.Context, s *sessions.Session) error {
	_, err := c.do(ctx, request{
		op:      "Client.LogoutAll",
		method:  http.MethodPost,
		path:    "/api/auth/logout-all",
		session: s,
	})
	return err
}
