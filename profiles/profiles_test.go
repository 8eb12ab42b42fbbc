package profiles_test

import (
	"encoding/json"
	"testing"

	apperrors "github.com/jrsteele09/go-legid-client/internal/errors"
	"github.com/jrsteele09/go-legid-client/internal/utils"
	"github.com/jrsteele09/go-legid-client/profiles"
	"github.com/jrsteele09/go-legid-client/users"
	"github.com/stretchr/testify/require"
)

func TestDecodeProfile(t *testing.T) {
	t.Run("envelope", func(t *testing.T) {
		body := `{"user":{"id":"u"},"profile":{"user_id":"u","display_name":"Ada","city":"Toronto",
			"preferences_json":{"theme":"light","auto_read":true}},"consent":{"necessary":true}}`
		p, err := profiles.DecodeProfile([]byte(body))
		require.NoError(t, err)
		require.Equal(t, "u", p.UserID)
		require.Equal(t, "Ada", p.DisplayName)
		require.Equal(t, "Toronto", p.City)
		require.Equal(t, profiles.ThemeLight, p.Preferences.Theme)
		require.True(t, p.Preferences.AutoReadResponses, "legacy auto_read is honoured")
	})

	t.Run("bare", func(t *testing.T) {
		p, err := profiles.DecodeProfile([]byte(`{"user_id":"u","username":"ada","address_line_1":"1 Main"}`))
		require.NoError(t, err)
		require.Equal(t, "ada", p.Username)
		require.Equal(t, "1 Main", p.Line1)
		require.Nil(t, p.Preferences)
	})

	t.Run("update echo with nested address", func(t *testing.T) {
		body := `{"success":true,"profile":{"display_name":"Ada","address":{"line_1":"1 Main","city":"Ottawa"}}}`
		p, err := profiles.DecodeProfile([]byte(body))
		require.NoError(t, err)
		require.Equal(t, "1 Main", p.Line1)
		require.Equal(t, "Ottawa", p.City)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := profiles.DecodeProfile([]byte(`<html>`))
		require.Error(t, err)
	})
}

func TestProfile_AddressFlattenedOnWire(t *testing.T) {
	p := profiles.Profile{UserID: "u", Address: profiles.Address{City: "Ottawa", PostalZip: "K1A"}}
	b, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Equal(t, "Ottawa", raw["city"])
	require.Equal(t, "K1A", raw["postal_zip"])
	require.NotContains(t, raw, "Address")
}

func TestMerge(t *testing.T) {
	prior := &profiles.Profile{
		UserID:      "u",
		DisplayName: "Ada",
		Username:    "ada",
		AvatarURL:   "https://cdn/a.png",
		Preferences: &profiles.Preferences{Theme: profiles.ThemeDark},
	}

	t.Run("response fields override, missing keep prior", func(t *testing.T) {
		sent := profiles.ProfileUpdate{City: utils.Ptr("Toronto")}
		resp := &profiles.Profile{UserID: "u", DisplayName: "Ada L."}
		merged := profiles.Merge(prior, sent, resp)

		require.Equal(t, "Ada L.", merged.DisplayName)
		require.Equal(t, "ada", merged.Username)
		require.Equal(t, "Toronto", merged.City)
		require.Equal(t, profiles.ThemeDark, merged.Preferences.Theme)
		require.Equal(t, "Ada", prior.DisplayName, "prior is not mutated")
	})

	t.Run("clearing avatar survives an echo without it", func(t *testing.T) {
		merged := profiles.Merge(prior, profiles.ProfileUpdate{AvatarURL: utils.Ptr("")}, &profiles.Profile{UserID: "u"})
		require.Empty(t, merged.AvatarURL)
	})

	t.Run("nil prior", func(t *testing.T) {
		merged := profiles.Merge(nil, profiles.ProfileUpdate{Username: utils.Ptr("neo")}, nil)
		require.Equal(t, "neo", merged.Username)
	})
}

func TestProfileUpdate_Validate(t *testing.T) {
	require.NoError(t, profiles.ProfileUpdate{}.Validate())
	require.NoError(t, profiles.ProfileUpdate{Username: utils.Ptr("ada.l_1")}.Validate())
	require.NoError(t, profiles.ProfileUpdate{Username: utils.Ptr("")}.Validate())

	err := profiles.ProfileUpdate{Username: utils.Ptr("No Spaces")}.Validate()
	require.ErrorIs(t, err, apperrors.ErrValidation)

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	err = profiles.ProfileUpdate{DisplayName: utils.Ptr(string(long))}.Validate()
	require.ErrorIs(t, err, apperrors.ErrValidation)

	require.True(t, profiles.ProfileUpdate{}.IsEmpty())
	require.False(t, profiles.ProfileUpdate{Phone: utils.Ptr("")}.IsEmpty())
}

func TestPreferences(t *testing.T) {
	var nilProfile *profiles.Profile
	require.Equal(t, profiles.DefaultPreferences(), nilProfile.EffectivePreferences())

	p := &profiles.Profile{Preferences: &profiles.Preferences{FontSize: profiles.FontLarge}}
	eff := p.EffectivePreferences()
	require.Equal(t, profiles.FontLarge, eff.FontSize)
	require.Equal(t, profiles.ThemeDark, eff.Theme)

	theme := profiles.ThemeLight
	merged := profiles.MergePreferences(p, profiles.PreferencesUpdate{Theme: &theme, AutoReadResponses: utils.Ptr(true)},
		&profiles.Preferences{Theme: profiles.ThemeLight, LegalTone: profiles.ToneFirm})
	require.Equal(t, profiles.ThemeLight, merged.Preferences.Theme)
	require.Equal(t, profiles.FontLarge, merged.Preferences.FontSize)
	require.Equal(t, profiles.ToneFirm, merged.Preferences.LegalTone)
	require.True(t, merged.Preferences.AutoReadResponses)
	require.Equal(t, profiles.FontLarge, p.Preferences.FontSize)
	require.Empty(t, p.Preferences.Theme, "input profile untouched")
}

func TestConsent(t *testing.T) {
	t.Run("merge keeps necessary and other fields", func(t *testing.T) {
		prior := &profiles.Consent{Necessary: true, Analytics: true}
		merged := profiles.MergeConsent(prior, profiles.ConsentUpdate{Marketing: utils.Ptr(true)}, nil, nil)
		require.Equal(t, profiles.Consent{Necessary: true, Analytics: true, Marketing: true}, merged)
	})

	t.Run("necessary cannot be withdrawn", func(t *testing.T) {
		update := profiles.ConsentFromMap(map[string]bool{"necessary": false, "marketing": true})
		require.Nil(t, update.Analytics)
		merged := profiles.MergeConsent(nil, update, nil, nil)
		require.True(t, merged.Necessary)
		require.True(t, merged.Marketing)

		require.True(t, profiles.Consent{}.Normalize().Necessary)
	})

	t.Run("update body never carries necessary", func(t *testing.T) {
		b, err := json.Marshal(profiles.ConsentUpdate{Marketing: utils.Ptr(false)})
		require.NoError(t, err)
		require.JSONEq(t, `{"marketing":false}`, string(b))
	})

	t.Run("decode envelope", func(t *testing.T) {
		present, full, err := profiles.DecodeConsent([]byte(`{"success":true,"consent":{"necessary":false,"analytics":true}}`))
		require.NoError(t, err)
		require.NotNil(t, present.Analytics)
		require.Nil(t, present.Marketing)
		require.True(t, full.Necessary)
		require.True(t, full.Analytics)
	})
}

func TestValidateAvatar(t *testing.T) {
	require.NoError(t, profiles.ValidateAvatar("me.png", "image/png"))
	require.NoError(t, profiles.ValidateAvatar("C:\\pics\\me.JPG", "IMAGE/JPEG"))
	require.ErrorIs(t, profiles.ValidateAvatar("me.gif", "image/gif"), apperrors.ErrValidation)
	require.ErrorIs(t, profiles.ValidateAvatar("", "image/png"), apperrors.ErrValidation)
}

func TestAccessRequest_Validate(t *testing.T) {
	require.NoError(t, profiles.AccessRequest{Email: "a@b.com", RequestedRole: users.RoleLawyer}.Validate())
	require.ErrorIs(t, profiles.AccessRequest{Email: "nope"}.Validate(), apperrors.ErrValidation)
	require.ErrorIs(t, profiles.AccessRequest{Email: "a@b.com", RequestedRole: users.RoleEmployeeAdmin}.Validate(), apperrors.ErrValidation)
}
