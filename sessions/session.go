package sessions

import (
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-legid-client/internal/errors"
	"github.com/jrsteele09/go-legid-client/profiles"
	"github.com/jrsteele09/go-legid-client/users"
	"golang.org/x/oauth2"
)

// Session is the opaque bearer credential issued by the backend.
type Session struct {
	Token        string    `json:"token"`                   // Access token sent as "Authorization: Bearer <token>"
	RefreshToken string    `json:"refresh_token,omitempty"` // Present when the backend issues one
	TokenType    string    `json:"token_type,omitempty"`    // Usually "bearer"
	ExpiresAt    time.Time `json:"expires_at,omitempty"`    // Zero when unknown
}

// Expired reports whether the session is past its expiry at now. A session
// without a known expiry never expires locally; the backend decides.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.Token == "" {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// OAuth2Token adapts the session for golang.org/x/oauth2 helpers.
func (s *Session) OAuth2Token() *oauth2.Token {
	tokenType := s.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  s.Token,
		TokenType:    tokenType,
		RefreshToken: s.RefreshToken,
		Expiry:       s.ExpiresAt,
	}
}

// New builds a Session from a token response. expiresIn is in seconds; when
// it is not positive the expiry is read from the token's exp claim.
func New(token, refreshToken, tokenType string, expiresIn int, now time.Time) *Session {
	s := &Session{
		Token:        token,
		RefreshToken: refreshToken,
		TokenType:    tokenType,
	}
	if expiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(expiresIn) * time.Second).UTC()
	} else {
		s.ExpiresAt = ExpiryFromToken(token)
	}
	return s
}

// ExpiryFromToken returns the exp claim of a JWT without verifying its
// signature. The client is not the audience for verification; it only needs a
// hint for local expiry. Non JWT tokens yield the zero time.
func ExpiryFromToken(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time.UTC()
}

// Credentials are the email/password pair for a password login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate performs the cheap local checks before any network round trip.
func (c Credentials) Validate() error {
	if _, err := mail.ParseAddress(strings.TrimSpace(c.Email)); err != nil {
		return apperrors.Validationf("a valid email is required")
	}
	if c.Password == "" {
		return apperrors.Validationf("password is required")
	}
	return nil
}

// Normalized lower cases and trims the email, as the backend does.
func (c Credentials) Normalized() Credentials {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return c
}

// SignupRequest registers a new password account.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

func (r SignupRequest) Validate() error {
	if err := (Credentials{Email: r.Email, Password: r.Password}).Validate(); err != nil {
		return err
	}
	if len(r.Password) < 8 {
		return apperrors.Validationf("password must be at least 8 characters long")
	}
	return nil
}

// Provider names an external identity provider.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
)

// OAuthToken is a provider issued token handed to the backend for exchange.
type OAuthToken struct {
	Provider Provider
	Token    string
}

func (t OAuthToken) Validate() error {
	switch t.Provider {
	case ProviderGoogle, ProviderMicrosoft:
	default:
		return apperrors.Validationf("unsupported provider %q", t.Provider)
	}
	if strings.TrimSpace(t.Token) == "" {
		return apperrors.Validationf("provider token is required")
	}
	return nil
}

// AuthResult is everything the backend returns when a session is created,
// refreshed or re-validated. Profile and Consent are nil when the response
// did not include them.
type AuthResult struct {
	Session  *Session
	Identity *users.Identity
	Profile  *profiles.Profile
	Consent  *profiles.Consent
}
