package users

import (
	"strings"
	"time"
	"unicode"
)

// RoleType is the product role assigned by the backend.
type RoleType string

const (
	RoleClient        RoleType = "client"
	RoleLawyer        RoleType = "lawyer"
	RoleEmployee      RoleType = "employee"
	RoleEmployeeAdmin RoleType = "employee_admin"
)

// LawyerStatus tracks the verification state of a lawyer account.
type LawyerStatus string

const (
	LawyerNotApplicable LawyerStatus = "not_applicable"
	LawyerPending       LawyerStatus = "pending"
	LawyerApproved      LawyerStatus = "approved"
	LawyerRejected      LawyerStatus = "rejected"
)

// Identity is the canonical shape of the signed in user. Values are only ever
// produced by NormalizeIdentity from a backend response.
type Identity struct {
	ID            string       `json:"id"`
	Email         string       `json:"email"`
	DisplayName   string       `json:"display_name"`
	Role          RoleType     `json:"role"`
	LawyerStatus  LawyerStatus `json:"lawyer_status"`
	IsProvisioned bool         `json:"is_provisioned"`
	CreatedAt     time.Time    `json:"created_at,omitempty"`
	LastLoginAt   time.Time    `json:"last_login_at,omitempty"`
}

// HasRole reports whether the identity's role is one of roles.
func (u *Identity) HasRole(roles ...RoleType) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// IsApprovedLawyer is true only for lawyers whose verification was approved.
func (u *Identity) IsApprovedLawyer() bool {
	return u != nil && u.Role == RoleLawyer && u.LawyerStatus == LawyerApproved
}

// IsEmployee covers both employee roles.
func (u *Identity) IsEmployee() bool {
	return u.HasRole(RoleEmployee, RoleEmployeeAdmin)
}

// RoleLabel is the short role text shown next to the user's name.
func (u *Identity) RoleLabel() string {
	if u == nil {
		return "User"
	}
	switch u.Role {
	case RoleLawyer:
		if u.LawyerStatus == LawyerApproved {
			return "Lawyer"
		}
		return "Lawyer (Pending)"
	case RoleEmployee, RoleEmployeeAdmin:
		return "Employee"
	default:
		return "Client"
	}
}

// Initials returns up to two upper case initials from the first non-empty
// name, or "U" when nothing usable is given.
func Initials(names ...string) string {
	for _, name := range names {
		var out []rune
		for _, part := range strings.Fields(name) {
			r := []rune(part)[0]
			out = append(out, unicode.ToUpper(r))
			if len(out) == 2 {
				break
			}
		}
		if len(out) > 0 {
			return string(out)
		}
	}
	return "U"
}
