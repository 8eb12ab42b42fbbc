package users

import (
	"strconv"
	"strings"
	"time"
)

// identityFields maps each canonical Identity field to the backend field
// names it may arrive under, in priority order. The two historical auth
// services disagreed on id/user_id and name/display_name.
var identityFields = map[string][]string{
	"id":             {"id", "user_id", "sub"},
	"email":          {"email"},
	"display_name":   {"name", "display_name"},
	"role":           {"role"},
	"lawyer_status":  {"lawyer_status"},
	"is_provisioned": {"is_provisioned"},
	"created_at":     {"created_at"},
	"last_login_at":  {"last_login_at"},
}

// roleAliases folds legacy role names into the current role set.
var roleAliases = map[string]RoleType{
	"client":         RoleClient,
	"user":           RoleClient,
	"lawyer":         RoleLawyer,
	"employee":       RoleEmployee,
	"employee_admin": RoleEmployeeAdmin,
	"admin":          RoleEmployeeAdmin,
}

const defaultDisplayName = "User"

// NormalizeIdentity converts a decoded backend user object into an Identity.
// Missing role defaults to client, missing lawyer status to not_applicable and
// a missing provisioning flag to true. A nil map yields nil.
func NormalizeIdentity(raw map[string]any) *Identity {
	if raw == nil {
		return nil
	}
	u := &Identity{
		ID:            lookupString(raw, "id"),
		Email:         lookupString(raw, "email"),
		DisplayName:   lookupString(raw, "display_name"),
		Role:          normalizeRole(lookupString(raw, "role")),
		LawyerStatus:  normalizeLawyerStatus(lookupString(raw, "lawyer_status")),
		IsProvisioned: true,
		CreatedAt:     lookupTime(raw, "created_at"),
		LastLoginAt:   lookupTime(raw, "last_login_at"),
	}
	if v, ok := lookup(raw, "is_provisioned"); ok {
		if b, isBool := v.(bool); isBool {
			u.IsProvisioned = b
		}
	}
	if u.DisplayName == "" {
		u.DisplayName = u.Email
	}
	if u.DisplayName == "" {
		u.DisplayName = defaultDisplayName
	}
	return u
}

func lookup(raw map[string]any, field string) (any, bool) {
	for _, name := range identityFields[field] {
		if v, ok := raw[name]; ok && v != nil {
			if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func lookupString(raw map[string]any, field string) string {
	v, ok := lookup(raw, field)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		// numeric ids decode as float64
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func lookupTime(raw map[string]any, field string) time.Time {
	s := lookupString(raw, field)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func normalizeRole(role string) RoleType {
	if r, ok := roleAliases[strings.ToLower(role)]; ok {
		return r
	}
	return RoleClient
}

func normalizeLawyerStatus(status string) LawyerStatus {
	switch s := LawyerStatus(strings.ToLower(status)); s {
	case LawyerPending, LawyerApproved, LawyerRejected, LawyerNotApplicable:
		return s
	default:
		return LawyerNotApplicable
	}
}
