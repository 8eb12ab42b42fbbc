package users_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-legid-client/users"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want *users.Identity
	}{
		{
			name: "nil input",
			raw:  nil,
			want: nil,
		},
		{
			name: "v2 login shape with defaults applied",
			raw:  map[string]any{"id": "u-1", "email": "a@b.com", "name": "Ada Lovelace"},
			want: &users.Identity{
				ID: "u-1", Email: "a@b.com", DisplayName: "Ada Lovelace",
				Role: users.RoleClient, LawyerStatus: users.LawyerNotApplicable, IsProvisioned: true,
			},
		},
		{
			name: "legacy user_id and display_name",
			raw: map[string]any{
				"user_id": "u-2", "email": "l@b.com", "display_name": "Lee",
				"role": "lawyer", "lawyer_status": "approved", "is_provisioned": false,
			},
			want: &users.Identity{
				ID: "u-2", Email: "l@b.com", DisplayName: "Lee",
				Role: users.RoleLawyer, LawyerStatus: users.LawyerApproved, IsProvisioned: false,
			},
		},
		{
			name: "id wins over user_id, empty name falls back to email",
			raw:  map[string]any{"id": "a", "user_id": "b", "name": " ", "email": "e@x.io"},
			want: &users.Identity{
				ID: "a", Email: "e@x.io", DisplayName: "e@x.io",
				Role: users.RoleClient, LawyerStatus: users.LawyerNotApplicable, IsProvisioned: true,
			},
		},
		{
			name: "legacy admin role and unknown status",
			raw:  map[string]any{"id": 42.0, "role": "ADMIN", "lawyer_status": "maybe"},
			want: &users.Identity{
				ID: "42", DisplayName: "User",
				Role: users.RoleEmployeeAdmin, LawyerStatus: users.LawyerNotApplicable, IsProvisioned: true,
			},
		},
		{
			name: "unknown role defaults to client",
			raw:  map[string]any{"id": "x", "role": "wizard"},
			want: &users.Identity{
				ID: "x", DisplayName: "User",
				Role: users.RoleClient, LawyerStatus: users.LawyerNotApplicable, IsProvisioned: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, users.NormalizeIdentity(tt.raw))
		})
	}
}

func TestNormalizeIdentity_Timestamps(t *testing.T) {
	u := users.NormalizeIdentity(map[string]any{
		"id":            "u",
		"created_at":    "2025-03-01T10:00:00Z",
		"last_login_at": "2025-03-02T11:30:00.123456",
	})
	require.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), u.CreatedAt)
	require.Equal(t, time.Date(2025, 3, 2, 11, 30, 0, 123456000, time.UTC), u.LastLoginAt)
}

func TestIdentity_Roles(t *testing.T) {
	var nilIdentity *users.Identity
	require.False(t, nilIdentity.HasRole(users.RoleLawyer))
	require.False(t, nilIdentity.IsApprovedLawyer())
	require.Equal(t, "User", nilIdentity.RoleLabel())

	lawyer := &users.Identity{Role: users.RoleLawyer, LawyerStatus: users.LawyerPending}
	require.True(t, lawyer.HasRole(users.RoleLawyer))
	require.True(t, lawyer.HasRole(users.RoleClient, users.RoleLawyer))
	require.False(t, lawyer.HasRole(users.RoleClient))
	require.False(t, lawyer.IsApprovedLawyer())
	require.Equal(t, "Lawyer (Pending)", lawyer.RoleLabel())

	lawyer.LawyerStatus = users.LawyerApproved
	require.True(t, lawyer.IsApprovedLawyer())
	require.Equal(t, "Lawyer", lawyer.RoleLabel())

	admin := &users.Identity{Role: users.RoleEmployeeAdmin}
	require.True(t, admin.IsEmployee())
	require.Equal(t, "Employee", admin.RoleLabel())
	require.Equal(t, "Client", (&users.Identity{Role: users.RoleClient}).RoleLabel())
}

func TestInitials(t *testing.T) {
	require.Equal(t, "AL", users.Initials("ada lovelace"))
	require.Equal(t, "JR", users.Initials("John Ronald Reuel Tolkien"))
	require.Equal(t, "E", users.Initials("", "e@x.io"))
	require.Equal(t, "U", users.Initials("", "  "))
	require.Equal(t, "U", users.Initials())
}
