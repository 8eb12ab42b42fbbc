package profiles

import (
	"encoding/json"
	"regexp"
	"time"

	apperrors "github.com/jrsteele09/go-legid-client/internal/errors"
	"github.com/jrsteele09/go-legid-client/internal/utils"
)

// Address is the postal block of a profile. It is flattened on the wire.
type Address struct {
	Line1         string `json:"address_line_1,omitempty"`
	Line2         string `json:"address_line_2,omitempty"`
	City          string `json:"city,omitempty"`
	ProvinceState string `json:"province_state,omitempty"`
	PostalZip     string `json:"postal_zip,omitempty"`
	Country       string `json:"country,omitempty"`
}

// Profile is the user editable part of an account.
type Profile struct {
	UserID      string       `json:"user_id"`
	DisplayName string       `json:"display_name,omitempty"`
	Username    string       `json:"username,omitempty"`
	AvatarURL   string       `json:"avatar_url,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	Address                  // flattened
	Preferences *Preferences `json:"preferences_json,omitempty"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty"`
}

// ProfileUpdate is a partial update. Nil fields are not sent; an empty
// string clears the field server side.
type ProfileUpdate struct {
	DisplayName   *string `json:"display_name,omitempty"`
	Username      *string `json:"username,omitempty"`
	AvatarURL     *string `json:"avatar_url,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Line1         *string `json:"address_line_1,omitempty"`
	Line2         *string `json:"address_line_2,omitempty"`
	City          *string `json:"city,omitempty"`
	ProvinceState *string `json:"province_state,omitempty"`
	PostalZip     *string `json:"postal_zip,omitempty"`
	Country       *string `json:"country,omitempty"`
}

// IsEmpty reports whether the update carries no field at all.
func (u ProfileUpdate) IsEmpty() bool {
	return u == ProfileUpdate{}
}

// Validate checks the fields that have local rules.
func (u ProfileUpdate) Validate() error {
	if u.Username != nil && *u.Username != "" {
		if err := ValidateUsername(*u.Username); err != nil {
			return err
		}
	}
	if u.DisplayName != nil && len(*u.DisplayName) > 100 {
		return apperrors.Validationf("display name must be at most 100 characters")
	}
	return nil
}

// Apply returns a copy of p with the update fields written over it.
func (u ProfileUpdate) Apply(p Profile) Profile {
	utils.Assign(&p.DisplayName, u.DisplayName)
	utils.Assign(&p.Username, u.Username)
	utils.Assign(&p.AvatarURL, u.AvatarURL)
	utils.Assign(&p.Phone, u.Phone)
	utils.Assign(&p.Line1, u.Line1)
	utils.Assign(&p.Line2, u.Line2)
	utils.Assign(&p.City, u.City)
	utils.Assign(&p.ProvinceState, u.ProvinceState)
	utils.Assign(&p.PostalZip, u.PostalZip)
	utils.Assign(&p.Country, u.Country)
	return p
}

// Merge layers a server response over the prior local value: prior, then
// the update that was sent, then every non-empty field of the response.
// prior may be nil.
func Merge(prior *Profile, sent ProfileUpdate, resp *Profile) *Profile {
	var merged Profile
	if prior != nil {
		merged = *prior
		merged.Preferences = utils.Clone(prior.Preferences)
	}
	merged = sent.Apply(merged)
	if resp == nil {
		return &merged
	}
	overlay(&merged.UserID, resp.UserID)
	overlay(&merged.DisplayName, resp.DisplayName)
	overlay(&merged.Username, resp.Username)
	overlay(&merged.AvatarURL, resp.AvatarURL)
	overlay(&merged.Phone, resp.Phone)
	overlay(&merged.Line1, resp.Line1)
	overlay(&merged.Line2, resp.Line2)
	overlay(&merged.City, resp.City)
	overlay(&merged.ProvinceState, resp.ProvinceState)
	overlay(&merged.PostalZip, resp.PostalZip)
	overlay(&merged.Country, resp.Country)
	if resp.Preferences != nil {
		merged.Preferences = utils.Clone(resp.Preferences)
	}
	if resp.UpdatedAt != nil {
		merged.UpdatedAt = utils.Clone(resp.UpdatedAt)
	}
	return &merged
}

// EffectivePreferences returns the stored preferences or the defaults.
func (p *Profile) EffectivePreferences() Preferences {
	if p == nil || p.Preferences == nil {
		return DefaultPreferences()
	}
	return p.Preferences.withDefaults()
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Preferences = utils.Clone(p.Preferences)
	c.UpdatedAt = utils.Clone(p.UpdatedAt)
	return &c
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.-]{3,30}$`)

// ValidateUsername enforces 3-30 lowercase letters, digits, '_', '.' or '-'.
func ValidateUsername(name string) error {
	if !usernamePattern.MatchString(name) {
		return apperrors.Validationf("username must be 3-30 characters of a-z, 0-9, '_', '.' or '-'")
	}
	return nil
}

// DecodeProfile accepts either a bare profile or an envelope carrying one
// under "profile" (the full /api/profile response also has user and consent).
func DecodeProfile(data []byte) (*Profile, error) {
	var envelope struct {
		Profile json.RawMessage `json:"profile"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Profile) > 0 && string(envelope.Profile) != "null" {
		data = envelope.Profile
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	// the update endpoint echoes the address as a nested object
	var nested struct {
		Address *struct {
			Line1         string `json:"line_1"`
			Line2         string `json:"line_2"`
			City          string `json:"city"`
			ProvinceState string `json:"province_state"`
			PostalZip     string `json:"postal_zip"`
			Country       string `json:"country"`
		} `json:"address"`
	}
	if err := json.Unmarshal(data, &nested); err == nil && nested.Address != nil {
		overlay(&p.Line1, nested.Address.Line1)
		overlay(&p.Line2, nested.Address.Line2)
		overlay(&p.City, nested.Address.City)
		overlay(&p.ProvinceState, nested.Address.ProvinceState)
		overlay(&p.PostalZip, nested.Address.PostalZip)
		overlay(&p.Country, nested.Address.Country)
	}
	return &p, nil
}
