package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/jrsteele09/go-legid-client/internal/errors"
	"github.com/jrsteele09/go-legid-client/profiles"
	"github.com/jrsteele09/go-legid-client/sessions"
)

// ConsentResult is a consent read or write echo: the fields the server
// actually returned plus the normalized full value.
type ConsentResult struct {
	Fields  profiles.ConsentUpdate
	Consent profiles.Consent
}

func (c *Client) GetProfile(ctx context.Context, s *sessions.Session) (*profiles.Profile, error) {
	const op = "Client.GetProfile"
	data, err := c.get(ctx, request{op: op, path: "/api/profile", session: s})
	if err != nil {
		return nil, err
	}
	p, err := profiles.DecodeProfile(data)
	if err != nil {
		return nil, unexpected(op, err)
	}
	return p, nil
}

// UpdateProfile sends a partial update and returns the server's echo, which
// may be partial too.
func (c *Client) UpdateProfile(ctx context.Context, s *sessions.Session, u profiles.ProfileUpdate) (*profiles.Profile, error) {
	const op = "Client.UpdateProfile"
	data, err := c.do(ctx, request{op: op, method: http.MethodPut, path: "/api/profile", body: u, session: s})
	if err != nil {
		return nil, err
	}
	p, err := profiles.DecodeProfile(data)
	if err != nil {
		return nil, unexpected(op, err)
	}
	return p, nil
}

// UpdatePreferences returns the stored preferences, or nil when the server
// did not echo them.
func (c *Client) UpdatePreferences(ctx context.Context, s *sessions.Session, u profiles.PreferencesUpdate) (*profiles.Preferences, error) {
	const op = "Client.UpdatePreferences"
	data, err := c.do(ctx, request{op: op, method: http.MethodPut, path: "/api/profile/preferences", body: u, session: s})
	if err != nil {
		return nil, err
	}
	resp, err := decode[struct {
		Preferences *profiles.Preferences `json:"preferences"`
	}](op, data)
	if err != nil {
		return nil, err
	}
	return resp.Preferences, nil
}

func (c *Client) CheckUsername(ctx context.Context, s *sessions.Session, username string) (bool, error) {
	const op = "Client.CheckUsername"
	data, err := c.get(ctx, request{op: op, path: "/api/profile/check-username/" + url.PathEscape(username), session: s})
	if err != nil {
		return false, err
	}
	resp, err := decode[struct {
		Available bool `json:"available"`
	}](op, data)
	if err != nil {
		return false, err
	}
	return resp.Available, nil
}

func (c *Client) GetConsent(ctx context.Context, s *sessions.Session) (*ConsentResult, error) {
	const op = "Client.GetConsent"
	data, err := c.get(ctx, request{op: op, path: "/api/profile/consent", session: s})
	if err != nil {
		return nil, err
	}
	fields, consent, err := profiles.DecodeConsent(data)
	if err != nil {
		return nil, unexpected(op, err)
	}
	return &ConsentResult{Fields: fields, Consent: consent}, nil
}

func (c *Client) UpdateConsent(ctx context.Context, s *sessions.Session, u profiles.ConsentUpdate) (*ConsentResult, error) {
	const op = "Client.UpdateConsent"
	data, err := c.do(ctx, request{op: op, method: http.MethodPut, path: "/api/profile/consent", body: u, session: s})
	if err != nil {
		return nil, err
	}
	fields, consent, err := profiles.DecodeConsent(data)
	if err != nil {
		return nil, unexpected(op, err)
	}
	return &ConsentResult{Fields: fields, Consent: consent}, nil
}

// AvatarUploadURL asks for a signed write location for a new avatar.
func (c *Client) AvatarUploadURL(ctx context.Context, s *sessions.Session, filename, contentType string) (*profiles.UploadTarget, error) {
	const op = "Client.AvatarUploadURL"
	data, err := c.do(ctx, request{
		op:      op,
		method:  http.MethodPost,
		path:    "/api/profile/avatar/upload-url",
		query:   url.Values{"filename": {filename}, "content_type": {contentType}},
		session: s,
	})
	if err != nil {
		return nil, err
	}
	target, err := decode[profiles.UploadTarget](op, data)
	if err != nil {
		return nil, err
	}
	if target.SignedURL == "" || target.PublicURL == "" {
		return nil, unexpected(op, errors.New("upload target is incomplete"))
	}
	return target, nil
}

// PutAvatar writes the image bytes straight to the signed URL. The backend
// is not involved, so no bearer token is sent.
func (c *Client) PutAvatar(ctx context.Context, target *profiles.UploadTarget, contentType string, body io.Reader) error {
	const op = "Client.PutAvatar"
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return transportError(op, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.SignedURL, body)
	if err != nil {
		return fmt.Errorf("[%s] new request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("op", op).Msg("avatar upload failed")
		return transportError(op, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := statusError(op, resp.StatusCode, data)
		// the storage signature is not the user's session
		if apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden {
			apiErr.Class = apperrors.ErrUnavailable
		}
		return apiErr
	}
	return nil
}

// RequestAccess files an access request for a signed in but unprovisioned
// account.
func (c *Client) RequestAccess(ctx context.Context, s *sessions.Session, req profiles.AccessRequest) (*profiles.AccessRequestStatus, error) {
	const op = "Client.RequestAccess"
	data, err := c.do(ctx, request{op: op, method: http.MethodPost, path: "/api/profile/request-access", body: req, session: s})
	if err != nil {
		return nil, err
	}
	resp, err := decode[struct {
		ID        string     `json:"id"`
		RequestID any        `json:"request_id"`
		Status    string     `json:"status"`
		CreatedAt *time.Time `json:"created_at"`
	}](op, data)
	if err != nil {
		return nil, err
	}
	status := &profiles.AccessRequestStatus{
		ID:            resp.ID,
		Email:         req.Email,
		RequestedRole: req.RequestedRole,
		Status:        resp.Status,
		CreatedAt:     resp.CreatedAt,
	}
	if status.ID == "" && resp.RequestID != nil {
		status.ID = fmt.Sprint(resp.RequestID)
	}
	if status.Status == "" {
		status.Status = "pending"
	}
	return status, nil
}
