package sessionsync

import (
	"context"
	"io"

	apperrors "github.com/jrsteele09/go-legid-client/internal/errors"
	"github.com/jrsteele09/go-legid-client/internal/utils"
	"github.com/jrsteele09/go-legid-client/profiles"
	"github.com/jrsteele09/go-legid-client/sessions"
	"github.com/jrsteele09/go-legid-client/snapshot"
	"github.com/pkg/errors"
)

// LoadProfile fetches the profile and publishes it.
func (s *Synchronizer) LoadProfile(ctx context.Context) (*profiles.Profile, error) {
	const op = "Synchronizer.LoadProfile"
	session, gen, err := s.gated()
	if err != nil {
		return nil, err
	}
	profile, err := s.backend.GetProfile(ctx, session)
	if err != nil {
		return nil, s.fail(op, gen, err)
	}
	err = s.commit(gen, func() {
		s.state.Profile.Set(profile)
		s.save(snapshot.KeyProfile, profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfile sends a partial update and publishes the prior profile with
// the update and the server's echo layered over it.
func (s *Synchronizer) UpdateProfile(ctx context.Context, update profiles.ProfileUpdate) (*profiles.Profile, error) {
	const op = "Synchronizer.UpdateProfile"
	if update.IsEmpty() {
		return nil, apperrors.Validationf("nothing to update")
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}
	session, gen, err := s.gated()
	if err != nil {
		return nil, err
	}
	return s.updateProfile(ctx, op, session, gen, update)
}

func (s *Synchronizer) updateProfile(ctx context.Context, op string, session *sessions.Session, gen uint64, update profiles.ProfileUpdate) (*profiles.Profile, error) {
	resp, err := s.backend.UpdateProfile(ctx, session, update)
	if err != nil {
		return nil, s.fail(op, gen, err)
	}
	var merged *profiles.Profile
	err = s.commit(gen, func() {
		merged = profiles.Merge(s.state.Profile.Get(), update, resp)
		s.state.Profile.Set(merged)
		s.save(snapshot.KeyProfile, merged)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// UpdatePreferences changes personalization settings.
func (s *Synchronizer) UpdatePreferences(ctx context.Context, update profiles.PreferencesUpdate) (*profiles.Profile, error) {
	const op = "Synchronizer.UpdatePreferences"
	if update == (profiles.PreferencesUpdate{}) {
		return nil, apperrors.Validationf("nothing to update")
	}
	session, gen, err := s.gated()
	if err != nil {
		return nil, err
	}
	resp, err := s.backend.UpdatePreferences(ctx, session, update)
	if err != nil {
		return nil, s.fail(op, gen, err)
	}
	var merged *profiles.Profile
	err = s.commit(gen, func() {
		merged = profiles.MergePreferences(s.state.Profile.Get(), update, resp)
		s.state.Profile.Set(merged)
		s.save(snapshot.KeyProfile, merged)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// CheckUsername reports whether username is free. Malformed names are
// rejected locally.
func (s *Synchronizer) CheckUsername(ctx context.Context, username string) (bool, error) {
	const op = "Synchronizer.CheckUsername"
	if err := profiles.ValidateUsername(username); err != nil {
		return false, err
	}
	session, gen, err := s.gated()
	if err != nil {
		return false, err
	}
	available, err := s.backend.CheckUsername(ctx, session, username)
	if err != nil {
		return false, s.fail(op, gen, err)
	}
	return available, nil
}

// UploadAvatar asks for a signed upload URL, writes the image there and
// then points the profile at the public URL.
func (s *Synchronizer) UploadAvatar(ctx context.Context, filename, contentType string, image io.Reader) (*profiles.Profile, error) {
	const op = "Synchronizer.UploadAvatar"
	if err := profiles.ValidateAvatar(filename, contentType); err != nil {
		return nil, err
	}
	session, gen, err := s.gated()
	if err != nil {
		return nil, err
	}
	target, err := s.backend.AvatarUploadURL(ctx, session, filename, contentType)
	if err != nil {
		return nil, s.fail(op, gen, err)
	}
	if err := s.backend.PutAvatar(ctx, target, contentType, image); err != nil {
		s.logger.Warn().Err(err).Str("file_path", target.FilePath).Msg("avatar upload failed")
		return nil, errors.Wrap(err, "["+op+"] upload")
	}
	return s.updateProfile(ctx, op, session, gen, profiles.ProfileUpdate{AvatarURL: utils.Ptr(target.PublicURL)})
}

// RemoveAvatar clears the avatar URL.
func (s *Synchronizer) RemoveAvatar(ctx context.Context) (*profiles.Profile, error) {
	session, gen, err := s.gated()
	if err != nil {
		return nil, err
	}
	return s.updateProfile(ctx, "Synchronizer.RemoveAvatar", session, gen, profiles.ProfileUpdate{AvatarURL: utils.Ptr("")})
}

// LoadConsent fetches the consent record and publishes it.
func (s *Synchronizer) LoadConsent(ctx context.Context) (profiles.Consent, error) {
	const op = "Synchronizer.LoadConsent"
	session, gen, err := s.gated()
	if err != nil {
		return profiles.Consent{}, err
	}
	result, err := s.backend.GetConsent(ctx, session)
	if err != nil {
		return profiles.Consent{}, s.fail(op, gen, err)
	}
	consent := result.Consent.Normalize()
	err = s.commit(gen, func() {
		s.state.Consent.Set(&consent)
		s.save(snapshot.KeyConsent, &consent)
	})
	if err != nil {
		return profiles.Consent{}, err
	}
	return consent, nil
}

// UpdateConsent merges update into the current consent. Necessary stays
// true whatever the caller or the server says.
func (s *Synchronizer) UpdateConsent(ctx context.Context, update profiles.ConsentUpdate) (profiles.Consent, error) {
	const op = "Synchronizer.UpdateConsent"
	if update.IsEmpty() {
		return profiles.Consent{}, apperrors.Validationf("nothing to update")
	}
	session, gen, err := s.gated()
	if err != nil {
		return profiles.Consent{}, err
	}
	result, err := s.backend.UpdateConsent(ctx, session, update)
	if err != nil {
		return profiles.Consent{}, s.fail(op, gen, err)
	}
	var merged profiles.Consent
	err = s.commit(gen, func() {
		merged = profiles.MergeConsent(s.state.Consent.Get(), update, &result.Fields, result.Consent.UpdatedAt)
		s.state.Consent.Set(&merged)
		s.save(snapshot.KeyConsent, &merged)
	})
	if err != nil {
		return profiles.Consent{}, err
	}
	return merged, nil
}

// RequestAccess files an access request for the signed in account. It is
// only meaningful while the account is not provisioned. Missing email and
// name are taken from the pending identity.
func (s *Synchronizer) RequestAccess(ctx context.Context, req profiles.AccessRequest) (*profiles.AccessRequestStatus, error) {
	const op = "Synchronizer.RequestAccess"
	session, gen := s.current()
	if session == nil {
		return nil, apperrors.ErrNotAuthenticated
	}
	identity := s.state.Identity.Get()
	if identity != nil && identity.IsProvisioned {
		return nil, apperrors.Validationf("account already has access")
	}
	if pending := s.state.PendingIdentity.Get(); pending != nil {
		req.Email = utils.FirstNonEmpty(req.Email, pending.Email)
		req.Name = utils.FirstNonEmpty(req.Name, pending.DisplayName)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	status, err := s.backend.RequestAccess(ctx, session, req)
	if err != nil {
		return nil, s.fail(op, gen, err)
	}
	s.logger.Info().Str("request_id", status.ID).Msg("access requested")
	return status, nil
}
