package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jrsteele09/go-legid-client/internal/config"
	"github.com/jrsteele09/go-legid-client/profiles"
	"github.com/jrsteele09/go-legid-client/sessionsync"
	fakebackend "github.com/jrsteele09/go-legid-client/sessionsync/backendfakes"
	"github.com/jrsteele09/go-legid-client/snapshot"
	"github.com/jrsteele09/go-legid-client/users"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "a@b.com"
	testPassword = "secret1"
)

// testFixture shares one backend and snapshot store across invocations, the
// way the file store does between real runs.
type testFixture struct {
	backend *fakebackend.FakeBackend
	store   *snapshot.InMemoryStore
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	backend := fakebackend.NewFakeBackend()
	backend.SetPassword(testPassword)
	return &testFixture{backend: backend, store: snapshot.NewInMemoryStore()}
}

func (f *testFixture) load(cmd *cobra.Command) (*app, error) {
	s, err := sessionsync.New(sessionsync.NewState(), f.backend, f.store, sessionsync.WithLogger(zerolog.Nop()))
	if err != nil {
		return nil, err
	}
	s.Hydrate()
	return &app{cfg: config.New(), logger: zerolog.Nop(), sync: s, out: cmd.OutOrStdout()}, nil
}

func (f *testFixture) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(f.load)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	out, err := f.run(t, "", "login", "--email", testEmail, "--password", testPassword)
	require.NoError(t, err)
	require.Contains(t, out, "signed in as a@b.com (Client)")
}

func TestCommandTree(t *testing.T) {
	root := newRootCommand(setupTestFixture(t).load)

	want := []string{
		"login", "oauth-login", "signup", "whoami", "refresh", "logout",
		"password forgot", "password reset",
		"profile show", "profile update",
		"preferences", "preferences set",
		"check-username", "avatar upload", "avatar remove",
		"consent", "consent set",
		"request-access", "can", "banner",
	}
	for _, path := range want {
		cmd, rest, err := root.Find(strings.Fields(path))
		require.NoError(t, err, path)
		require.Empty(t, rest, path)
		require.Equal(t, path[strings.LastIndex(path, " ")+1:], cmd.Name())
	}
}

func TestLogin(t *testing.T) {
	t.Run("password from stdin", func(t *testing.T) {
		f := setupTestFixture(t)
		out, err := f.run(t, testPassword+"\n", "login", "--email", testEmail)
		require.NoError(t, err)
		require.Contains(t, out, "signed in as a@b.com")

		_, err = f.store.Get(snapshot.KeySession)
		require.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.run(t, "", "login", "--email", testEmail, "--password", "nope-nope")
		require.Error(t, err)
		require.Equal(t, 0, f.store.Len())
	})

	t.Run("email is required", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.run(t, "", "login", "--password", testPassword)
		require.Error(t, err)
		require.Equal(t, 0, f.backend.Calls(fakebackend.Login))
	})

	t.Run("unprovisioned account is reported as waiting", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.SetIdentity(users.Identity{ID: "u-2", Email: testEmail, Role: users.RoleLawyer, IsProvisioned: false})
		out, err := f.run(t, "", "login", "--email", testEmail, "--password", testPassword)
		require.NoError(t, err)
		require.Contains(t, out, "waiting for access")

		out, err = f.run(t, "", "can")
		require.NoError(t, err)
		require.Equal(t, "redirect_not_provisioned\n", out)
	})
}

func TestWhoami(t *testing.T) {
	f := setupTestFixture(t)
	out, err := f.run(t, "", "whoami")
	require.NoError(t, err)
	require.Equal(t, "not signed in\n", out)

	f.login(t)
	out, err = f.run(t, "", "whoami")
	require.NoError(t, err)

	var got struct {
		Provisioned bool           `json:"provisioned"`
		Identity    users.Identity `json:"identity"`
		RoleLabel   string         `json:"role_label"`
		Initials    string         `json:"initials"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.True(t, got.Provisioned)
	require.Equal(t, "u-1", got.Identity.ID)
	require.Equal(t, "Client", got.RoleLabel)
	require.Equal(t, "A", got.Initials)
}

func TestLogout(t *testing.T) {
	t.Run("clears local state", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		out, err := f.run(t, "", "logout")
		require.NoError(t, err)
		require.Equal(t, "signed out\n", out)
		require.Equal(t, 0, f.store.Len())
		require.Equal(t, 1, f.backend.Calls(fakebackend.Logout))
	})

	t.Run("all devices", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		out, err := f.run(t, "", "logout", "--all")
		require.NoError(t, err)
		require.Equal(t, "signed out on all devices\n", out)
		require.Equal(t, 1, f.backend.Calls(fakebackend.LogoutAll))
		require.Equal(t, 0, f.store.Len())
	})
}

func TestRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	out, err := f.run(t, "", "refresh")
	require.NoError(t, err)
	require.Equal(t, "session refreshed\n", out)
}

func TestProfileCommands(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	out, err := f.run(t, "", "profile", "update", "--display-name", "Ada Lovelace", "--city", "London")
	require.NoError(t, err)
	var p profiles.Profile
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	require.Equal(t, "Ada Lovelace", p.DisplayName)
	require.Equal(t, "London", p.City)

	out, err = f.run(t, "", "profile", "show", "--cached")
	require.NoError(t, err)
	require.Contains(t, out, "Ada Lovelace")

	out, err = f.run(t, "", "preferences", "set", "--theme", "light", "--auto-read")
	require.NoError(t, err)
	var prefs profiles.Preferences
	require.NoError(t, json.Unmarshal([]byte(out), &prefs))
	require.Equal(t, profiles.ThemeLight, prefs.Theme)
	require.True(t, prefs.AutoReadResponses)

	f.backend.TakeUsername("taken")
	out, err = f.run(t, "", "check-username", "taken")
	require.NoError(t, err)
	require.Equal(t, "taken is taken\n", out)
}

func TestAvatarUpload(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	path := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake"), 0o600))

	out, err := f.run(t, "", "avatar", "upload", path)
	require.NoError(t, err)
	require.Contains(t, out, "avatar set to https://storage.test/avatars/u-1/me.png")

	_, err = f.run(t, "", "avatar", "upload", path, "--content-type", "image/gif")
	require.Error(t, err)
}

func TestConsentSet(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	out, err := f.run(t, "", "consent", "set", "--marketing")
	require.NoError(t, err)
	var c profiles.Consent
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	require.True(t, c.Necessary)
	require.True(t, c.Marketing)
	require.False(t, c.Analytics)
}

func TestCan(t *testing.T) {
	f := setupTestFixture(t)
	out, err := f.run(t, "", "can")
	require.NoError(t, err)
	require.Equal(t, "redirect_login\n", out)

	f.login(t)
	out, err = f.run(t, "", "can", "--role", "lawyer")
	require.NoError(t, err)
	require.Equal(t, "access_denied\n", out)

	out, err = f.run(t, "", "can", "--rule", `email endsWith "@b.com"`)
	require.NoError(t, err)
	require.Equal(t, "allow\n", out)

	_, err = f.run(t, "", "can", "--rule", "role +")
	require.Error(t, err)
}

func TestBanner(t *testing.T) {
	out, err := setupTestFixture(t).run(t, "", "banner")
	require.NoError(t, err)
	require.NotEmpty(t, strings.TrimSpace(out))
}
