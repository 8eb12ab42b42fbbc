package profiles

import (
	"net/mail"
	"time"

	apperrors "github.com/jrsteele09/go-legid-client/internal/errors"
	"github.com/jrsteele09/go-legid-client/users"
)

// AccessRequest asks an administrator to provision the signed in account.
type AccessRequest struct {
	Email         string         `json:"email"`
	Name          string         `json:"name,omitempty"`
	RequestedRole users.RoleType `json:"requested_role,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Organization  string         `json:"organization,omitempty"`
}

// AccessRequestStatus is the backend's record of a request.
type AccessRequestStatus struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	RequestedRole users.RoleType `json:"requested_role"`
	Status        string         `json:"status"`
	CreatedAt     *time.Time     `json:"created_at,omitempty"`
}

func (r AccessRequest) Validate() error {
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return apperrors.Validationf("a valid email is required")
	}
	switch r.RequestedRole {
	case "", users.RoleClient, users.RoleLawyer, users.RoleEmployee:
		return nil
	default:
		return apperrors.Validationf("role %s cannot be requested", r.RequestedRole)
	}
}
