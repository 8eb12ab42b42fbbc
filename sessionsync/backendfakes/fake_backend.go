package fakebackend

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jrsteele09/go-legid-client/api"
	apperrors "github.com/jrsteele09/go-legid-client/internal/errors"
	"github.com/jrsteele09/go-legid-client/profiles"
	"github.com/jrsteele09/go-legid-client/sessions"
	"github.com/jrsteele09/go-legid-client/sessionsync"
	"github.com/jrsteele09/go-legid-client/users"
)

var _ sessionsync.Backend = (*FakeBackend)(nil)

// Method names accepted by FailWith, Block and Calls.
const (
	Login             = "Login"
	LoginWithOAuth    = "LoginWithOAuth"
	Signup            = "Signup"
	ForgotPassword    = "ForgotPassword"
	ResetPassword     = "ResetPassword"
	CurrentIdentity   = "CurrentIdentity"
	RefreshSession    = "RefreshSession"
	Logout            = "Logout"
	LogoutAll         = "LogoutAll"
	GetProfile        = "GetProfile"
	UpdateProfile     = "UpdateProfile"
	UpdatePreferences = "UpdatePreferences"
	CheckUsername     = "CheckUsername"
	GetConsent        = "GetConsent"
	UpdateConsent     = "UpdateConsent"
	AvatarUploadURL   = "AvatarUploadURL"
	PutAvatar         = "PutAvatar"
	RequestAccess     = "RequestAccess"
)

// FakeBackend is an in-memory stand in for the LegID backend holding a
// single account.
type FakeBackend struct {
	lock sync.Mutex

	identity       users.Identity
	password       string
	profile        *profiles.Profile
	consent        profiles.Consent
	takenUsernames map[string]bool
	issueRefresh   bool
	includeProfile bool
	tokenSeq       int
	uploads        map[string][]byte
	requests       []profiles.AccessRequest

	calls map[string]int
	errs  map[string]error
	gates map[string]chan struct{}
	now   func() time.Time
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		identity: users.Identity{
			ID:            "u-1",
			Email:         "a@b.com",
			DisplayName:   "a@b.com",
			Role:          users.RoleClient,
			LawyerStatus:  users.LawyerNotApplicable,
			IsProvisioned: true,
		},
		consent:        profiles.DefaultConsent(),
		takenUsernames: map[string]bool{},
		issueRefresh:   true,
		uploads:        map[string][]byte{},
		calls:          map[string]int{},
		errs:           map[string]error{},
		gates:          map[string]chan struct{}{},
		now:            time.Now,
	}
}

// SetIdentity replaces the account identity returned by every call.
func (b *FakeBackend) SetIdentity(identity users.Identity) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.identity = identity
}

// SetPassword makes Login reject any other password. Empty accepts all.
func (b *FakeBackend) SetPassword(password string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.password = password
}

func (b *FakeBackend) SetProfile(p *profiles.Profile) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.profile = p.Clone()
}

func (b *FakeBackend) SetConsent(c profiles.Consent) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.consent = c.Normalize()
}

// IncludeProfileInAuth makes session creating calls return profile and
// consent along with the identity.
func (b *FakeBackend) IncludeProfileInAuth(include bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.includeProfile = include
}

// IssueRefreshTokens controls whether sessions carry a refresh token.
func (b *FakeBackend) IssueRefreshTokens(issue bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.issueRefresh = issue
}

func (b *FakeBackend) TakeUsername(name string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.takenUsernames[name] = true
}

// FailWith makes method return err until cleared with a nil err.
func (b *FakeBackend) FailWith(method string, err error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err == nil {
		delete(b.errs, method)
		return
	}
	b.errs[method] = err
}

// Block holds every call to method until release is called.
func (b *FakeBackend) Block(method string) (release func()) {
	b.lock.Lock()
	defer b.lock.Unlock()
	gate := make(chan struct{})
	b.gates[method] = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			b.lock.Lock()
			delete(b.gates, method)
			b.lock.Unlock()
			close(gate)
		})
	}
}

// Calls is the number of times method was entered.
func (b *FakeBackend) Calls(method string) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.calls[method]
}

// Uploaded returns the bytes written to a signed URL.
func (b *FakeBackend) Uploaded(signedURL string) []byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.uploads[signedURL]
}

func (b *FakeBackend) AccessRequests() []profiles.AccessRequest {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]profiles.AccessRequest(nil), b.requests...)
}

func (b *FakeBackend) enter(ctx context.Context, method string) error {
	b.lock.Lock()
	b.calls[method]++
	gate := b.gates[method]
	b.lock.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return &api.Error{Op: method, Class: apperrors.ErrUnavailable, Cause: ctx.Err()}
		}
	}

	b.lock.Lock()
	defer b.lock.Unlock()
	return b.errs[method]
}

func (b *FakeBackend) authorize(s *sessions.Session) error {
	if s == nil || s.Token == "" {
		return &api.Error{Op: "authorize", Status: 401, Detail: "Not authenticated", Class: apperrors.ErrUnauthorized}
	}
	return nil
}

// authResultLocked issues a new session for the account.
func (b *FakeBackend) authResultLocked() *sessions.AuthResult {
	b.tokenSeq++
	refresh := ""
	if b.issueRefresh {
		refresh = fmt.Sprintf("refresh-%d", b.tokenSeq)
	}
	identity := b.identity
	result := &sessions.AuthResult{
		Session:  sessions.New(fmt.Sprintf("token-%d", b.tokenSeq), refresh, "bearer", 3600, b.now()),
		Identity: &identity,
	}
	if b.includeProfile {
		result.Profile = b.profileLocked()
		consent := b.consent
		result.Consent = &consent
	}
	return result
}

func (b *FakeBackend) profileLocked() *profiles.Profile {
	if b.profile == nil {
		return &profiles.Profile{UserID: b.identity.ID, DisplayName: b.identity.DisplayName}
	}
	return b.profile.Clone()
}

func (b *FakeBackend) Login(ctx context.Context, creds sessions.Credentials) (*sessions.AuthResult, error) {
	if err := b.enter(ctx, Login); err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.password != "" && creds.Password != b.password {
		return nil, &api.Error{Op: Login, Status: 401, Detail: "Invalid email or password", Class: apperrors.ErrValidation}
	}
	b.identity.Email = creds.Email
	return b.authResultLocked(), nil
}

func (b *FakeBackend) LoginWithOAuth(ctx context.Context, token sessions.OAuthToken) (*sessions.AuthResult, error) {
	if err := b.enter(ctx, LoginWithOAuth); err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.authResultLocked(), nil
}

func (b *FakeBackend) Signup(ctx context.Context, req sessions.SignupRequest) (*sessions.AuthResult, error) {
	if err := b.enter(ctx, Signup); err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	b.identity.Email = req.Email
	if req.Name != "" {
		b.identity.DisplayName = req.Name
	}
	b.password = req.Password
	return b.authResultLocked(), nil
}

func (b *FakeBackend) ForgotPassword(ctx context.Context, email string) error {
	return b.enter(ctx, ForgotPassword)
}

func (b *FakeBackend) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := b.enter(ctx, ResetPassword); err != nil {
		return err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	b.password = newPassword
	return nil
}

func (b *FakeBackend) CurrentIdentity(ctx context.Context, s *sessions.Session) (*users.Identity, error) {
	if err := b.enter(ctx, CurrentIdentity); err != nil {
		return nil, err
	}
	if err := b.authorize(s); err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	identity := b.identity
	return &identity, nil
}

func (b *FakeBackend) RefreshSession(ctx context.Context, s *sessions.Session) (*sessions.AuthResult, error) {
	if err := b.enter(ctx, RefreshSession); err != nil {
		return nil, err
	}
	if err := b.authorize(s); err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	result := b.authResultLocked()
	result.Profile, result.Consent = nil, nil
	return result, nil
}

func (b *FakeBackend) Logout(ctx context.Context, s *sessions.Session) error {
	return b.enter(ctx, Logout)
}

func (b *FakeBackend) LogoutAll(ctx context.Context, s *sessions.Session) error {
	return b.enter(ctx, LogoutAll)
}

func (b *FakeBackend) GetProfile(ctx context.Context, s *sessions.Session) (*profiles.Profile, error) {
	if err := b.enter(ctx, GetProfile); err != nil {
		return nil, err
	}
	if err := b.authorize(s); err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.profileLocked(), nil
}

// UpdateProfile echoes only the fields it was sent, like the real backend.
func (b *FakeBackend) UpdateProfile(ctx context.Context, s *sessions.Session, u profiles.ProfileUpdate) (*profiles.Profile, error) {
	if err := b.enter(ctx, UpdateProfile); err != nil {
		return nil, err
	}
	if err := b.authorize(s); err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if u.Username != nil && b.takenUsernames[*u.Username] {
		return nil, &api.Error{Op: UpdateProfile, Status: 400, Detail: "Username already taken", Class: apperrors.ErrValidation}
	}
	stored := u.Apply(*b.profileLocked())
	b.profile = &stored
	echo := u.Apply(profiles.Profile{})
	return &echo, nil
}

func (b *FakeBackend) UpdatePreferences(ctx context.Context, s *sessions.Session, u profiles.PreferencesUpdate) (*profiles.Preferences, error) {
	if err := b.enter(ctx, UpdatePreferences); err != nil {
		return nil, err
	}
	if err := b.authorize(s); err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	p := b.profileLocked()
	prefs := u.Apply(p.EffectivePreferences())
	p.Preferences = &prefs
	b.profile = p
	out := prefs
	return &out, nil
}

func (b *FakeBackend) CheckUsername(ctx context.Context, s *sessions.Session, username string) (bool, error) {
	if err := b.enter(ctx, CheckUsername); err != nil {
		return false, err
	}
	if err := b.authorize(s); err != nil {
		return false, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	return !b.takenUsernames[username], nil
}

func (b *FakeBackend) GetConsent(ctx context.Context, s *sessions.Session) (*api.ConsentResult, error) {
	if err := b.enter(ctx, GetConsent); err != nil {
		return nil, err
	}
	if err := b.authorize(s); err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	c := b.consent
	return &api.ConsentResult{
		Fields:  profiles.ConsentUpdate{Functional: &c.Functional, Analytics: &c.Analytics, Marketing: &c.Marketing},
		Consent: c,
	}, nil
}

func (b *FakeBackend) UpdateConsent(ctx context.Context, s *sessions.Session, u profiles.ConsentUpdate) (*api.ConsentResult, error) {
	if err := b.enter(ctx, UpdateConsent); err != nil {
		return nil, err
	}
	if err := b.authorize(s); err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	b.consent = u.Apply(b.consent)
	updatedAt := b.now().UTC()
	b.consent.UpdatedAt = &updatedAt
	return &api.ConsentResult{Fields: u, Consent: b.consent}, nil
}

func (b *FakeBackend) AvatarUploadURL(ctx context.Context, s *sessions.Session, filename, contentType string) (*profiles.UploadTarget, error) {
	if err := b.enter(ctx, AvatarUploadURL); err != nil {
		return nil, err
	}
	if err := b.authorize(s); err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	path := fmt.Sprintf("avatars/%s/%s", b.identity.ID, filename)
	return &profiles.UploadTarget{
		SignedURL: "https://storage.test/" + path + "?sig=fake",
		FilePath:  path,
		PublicURL: "https://storage.test/" + path,
	}, nil
}

func (b *FakeBackend) PutAvatar(ctx context.Context, target *profiles.UploadTarget, contentType string, body io.Reader) error {
	if err := b.enter(ctx, PutAvatar); err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return &api.Error{Op: PutAvatar, Class: apperrors.ErrUnavailable, Cause: err}
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	b.uploads[target.SignedURL] = data
	return nil
}

func (b *FakeBackend) RequestAccess(ctx context.Context, s *sessions.Session, req profiles.AccessRequest) (*profiles.AccessRequestStatus, error) {
	if err := b.enter(ctx, RequestAccess); err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	b.requests = append(b.requests, req)
	created := b.now().UTC()
	return &profiles.AccessRequestStatus{
		ID:            fmt.Sprintf("req-%d", len(b.requests)),
		Email:         req.Email,
		RequestedRole: req.RequestedRole,
		Status:        "pending",
		CreatedAt:     &created,
	}, nil
}
