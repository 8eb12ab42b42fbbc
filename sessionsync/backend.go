package sessionsync

import (
	"context"
	"io"

	"github.com/jrsteele09/go-legid-client/api"
	"github.com/jrsteele09/go-legid-client/profiles"
	"github.com/jrsteele09/go-legid-client/sessions"
	"github.com/jrsteele09/go-legid-client/users"
)

// Backend is the remote side of the synchronizer. Errors must unwrap to one
// of the classes in internal/errors.
type Backend interface {
	Login(ctx context.Context, creds sessions.Credentials) (*sessions.AuthResult, error)
	LoginWithOAuth(ctx context.Context, token sessions.OAuthToken) (*sessions.AuthResult, error)
	Signup(ctx context.Context, req sessions.SignupRequest) (*sessions.AuthResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error

	CurrentIdentity(ctx context.Context, s *sessions.Session) (*users.Identity, error)
	RefreshSession(ctx context.Context, s *sessions.Session) (*sessions.AuthResult, error)
	Logout(ctx context.Context, s *sessions.Session) error
	LogoutAll(ctx context.Context, s *sessions.Session) error

	GetProfile(ctx context.Context, s *sessions.Session) (*profiles.Profile, error)
	UpdateProfile(ctx context.Context, s *sessions.Session, u profiles.ProfileUpdate) (*profiles.Profile, error)
	UpdatePreferences(ctx context.Context, s *sessions.Session, u profiles.PreferencesUpdate) (*profiles.Preferences, error)
	CheckUsername(ctx context.Context, s *sessions.Session, username string) (bool, error)
	GetConsent(ctx context.Context, s *sessions.Session) (*api.ConsentResult, error)
	UpdateConsent(ctx context.Context, s *sessions.Session, u profiles.ConsentUpdate) (*api.ConsentResult, error)
	AvatarUploadURL(ctx context.Context, s *sessions.Session, filename, contentType string) (*profiles.UploadTarget, error)
	PutAvatar(ctx context.Context, target *profiles.UploadTarget, contentType string, body io.Reader) error
	RequestAccess(ctx context.Context, s *sessions.Session, req profiles.AccessRequest) (*profiles.AccessRequestStatus, error)
}

var _ Backend = (*api.Client)(nil)
