package sessionsync

import (
	"context"
	"net/mail"
	"strconv"
	"strings"

	apperrors "github.com/jrsteele09/go-legid-client/internal/errors"
	"github.com/jrsteele09/go-legid-client/sessions"
	"github.com/pkg/errors"
)

// Login signs in with an email and password. On failure the state is left
// exactly as it was; nothing is retried.
func (s *Synchronizer) Login(ctx context.Context, creds sessions.Credentials) (*sessions.AuthResult, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return s.establish(ctx, "Synchronizer.Login", func(ctx context.Context) (*sessions.AuthResult, error) {
		return s.backend.Login(ctx, creds.Normalized())
	})
}

// LoginWithOAuth hands a provider token to the backend. Same contract as
// Login.
func (s *Synchronizer) LoginWithOAuth(ctx context.Context, provider sessions.Provider, token string) (*sessions.AuthResult, error) {
	oauthToken := sessions.OAuthToken{Provider: provider, Token: token}
	if err := oauthToken.Validate(); err != nil {
		return nil, err
	}
	return s.establish(ctx, "Synchronizer.LoginWithOAuth", func(ctx context.Context) (*sessions.AuthResult, error) {
		return s.backend.LoginWithOAuth(ctx, oauthToken)
	})
}

// Signup registers an account and signs it in.
func (s *Synchronizer) Signup(ctx context.Context, req sessions.SignupRequest) (*sessions.AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.establish(ctx, "Synchronizer.Signup", func(ctx context.Context) (*sessions.AuthResult, error) {
		return s.backend.Signup(ctx, req)
	})
}

// establish runs a session creating call and publishes its result. A logout
// that lands while the call is in flight wins.
func (s *Synchronizer) establish(ctx context.Context, op string, call func(context.Context) (*sessions.AuthResult, error)) (*sessions.AuthResult, error) {
	_, gen := s.current()

	result, err := call(ctx)
	if err != nil {
		s.logger.Info().Str("op", op).Err(err).Msg("sign in failed")
		return nil, errors.Wrap(err, "["+op+"]")
	}
	if result == nil || result.Session == nil || result.Identity == nil {
		return nil, errors.Wrap(apperrors.ErrUnavailable, "["+op+"] incomplete auth result")
	}

	err = s.commit(gen, func() {
		s.applyAuthLocked(result)
		s.generation++
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("op", op).Str("user_id", result.Identity.ID).Msg("signed in")
	return result, nil
}

func (s *Synchronizer) RequestPasswordReset(ctx context.Context, email string) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return apperrors.Validationf("a valid email is required")
	}
	if err := s.backend.ForgotPassword(ctx, email); err != nil {
		return errors.Wrap(err, "[Synchronizer.RequestPasswordReset]")
	}
	return nil
}

func (s *Synchronizer) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return apperrors.Validationf("reset token is required")
	}
	if len(newPassword) < 8 {
		return apperrors.Validationf("password must be at least 8 characters long")
	}
	if err := s.backend.ResetPassword(ctx, token, newPassword); err != nil {
		return errors.Wrap(err, "[Synchronizer.ResetPassword]")
	}
	return nil
}

// Refresh re-validates the stored session with the backend. Concurrent
// calls share one backend round trip. The round trip runs detached from
// ctx, bounded by the refresh timeout; ctx only bounds how long this caller
// waits for it.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	_, gen := s.current()

	ch := s.refreshes.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
		defer cancel()
		return nil, s.refresh(rctx, gen)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "[Synchronizer.Refresh] stopped waiting")
	}
}

func (s *Synchronizer) refresh(ctx context.Context, gen uint64) error {
	const op = "Synchronizer.Refresh"

	session, current := s.current()
	if current != gen {
		return apperrors.ErrSuperseded
	}
	if session == nil {
		return apperrors.ErrNotAuthenticated
	}

	var (
		result *sessions.AuthResult
		err    error
	)
	if session.RefreshToken != "" {
		result, err = s.backend.RefreshSession(ctx, session)
	} else {
		result = &sessions.AuthResult{}
		result.Identity, err = s.backend.CurrentIdentity(ctx, session)
	}
	if err != nil {
		return s.fail(op, gen, err)
	}
	if result == nil || result.Identity == nil {
		return errors.Wrap(apperrors.ErrUnavailable, "["+op+"] incomplete refresh result")
	}

	return s.commit(gen, func() {
		s.applyAuthLocked(result)
		s.logger.Debug().Str("user_id", result.Identity.ID).Bool("provisioned", result.Identity.IsProvisioned).Msg("session refreshed")
	})
}

// Logout asks the backend to drop the session and then signs out locally
// whatever the backend said.
func (s *Synchronizer) Logout(ctx context.Context) {
	session := s.beginLogout()
	if session != nil {
		if err := s.backend.Logout(ctx, session); err != nil {
			s.logger.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
		}
	}
	s.finishLogout()
}

// LogoutAllDevices revokes every session of the account. The local state is
// cleared even when the backend call fails; that failure is returned.
func (s *Synchronizer) LogoutAllDevices(ctx context.Context) error {
	session := s.beginLogout()
	var err error
	if session == nil {
		err = apperrors.ErrNotAuthenticated
	} else if err = s.backend.LogoutAll(ctx, session); err != nil {
		s.logger.Warn().Err(err).Msg("revoking all sessions failed, clearing local session anyway")
		err = errors.Wrap(err, "[Synchronizer.LogoutAllDevices]")
	}
	s.finishLogout()
	return err
}

// beginLogout invalidates every in-flight operation before the server call
// so nothing they return can resurrect the session.
func (s *Synchronizer) beginLogout() *sessions.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.state.Session.Get()
}

func (s *Synchronizer) finishLogout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	s.generation++
	s.logger.Info().Msg("signed out")
}
