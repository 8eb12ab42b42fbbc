package profiles

import (
	"encoding/json"

	"github.com/jrsteele09/go-legid-client/internal/utils"
)

type Theme string

const (
	ThemeDark   Theme = "dark"
	ThemeLight  Theme = "light"
	ThemeSystem Theme = "system"
)

type FontSize string

const (
	FontSmall  FontSize = "small"
	FontMedium FontSize = "medium"
	FontLarge  FontSize = "large"
)

type ResponseStyle string

const (
	ResponseConcise  ResponseStyle = "concise"
	ResponseBalanced ResponseStyle = "balanced"
	ResponseDetailed ResponseStyle = "detailed"
)

type LegalTone string

const (
	ToneNeutral    LegalTone = "neutral"
	ToneFirm       LegalTone = "firm"
	ToneVeryFormal LegalTone = "very_formal"
)

// Preferences is the nested personalization record of a profile.
type Preferences struct {
	Theme             Theme         `json:"theme,omitempty"`
	FontSize          FontSize      `json:"font_size,omitempty"`
	ResponseStyle     ResponseStyle `json:"response_style,omitempty"`
	LegalTone         LegalTone     `json:"legal_tone,omitempty"`
	AutoReadResponses bool          `json:"auto_read_responses"`
	Language          string        `json:"language,omitempty"`
}

// UnmarshalJSON also accepts the older "auto_read" flag.
func (p *Preferences) UnmarshalJSON(data []byte) error {
	type plain Preferences
	var aux struct {
		plain
		AutoRead *bool `json:"auto_read"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Preferences(aux.plain)
	if aux.AutoRead != nil && !p.AutoReadResponses {
		p.AutoReadResponses = *aux.AutoRead
	}
	return nil
}

// DefaultPreferences are used until the server returns stored ones.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:         ThemeDark,
		FontSize:      FontMedium,
		ResponseStyle: ResponseBalanced,
		LegalTone:     ToneNeutral,
	}
}

func (p Preferences) withDefaults() Preferences {
	d := DefaultPreferences()
	overlay((*string)(&d.Theme), string(p.Theme))
	overlay((*string)(&d.FontSize), string(p.FontSize))
	overlay((*string)(&d.ResponseStyle), string(p.ResponseStyle))
	overlay((*string)(&d.LegalTone), string(p.LegalTone))
	overlay(&d.Language, p.Language)
	d.AutoReadResponses = p.AutoReadResponses
	return d
}

// PreferencesUpdate is a partial preferences update.
type PreferencesUpdate struct {
	Theme             *Theme         `json:"theme,omitempty"`
	FontSize          *FontSize      `json:"font_size,omitempty"`
	ResponseStyle     *ResponseStyle `json:"response_style,omitempty"`
	LegalTone         *LegalTone     `json:"legal_tone,omitempty"`
	AutoReadResponses *bool          `json:"auto_read_responses,omitempty"`
	Language          *string        `json:"language,omitempty"`
}

// Apply writes the set fields over p.
func (u PreferencesUpdate) Apply(p Preferences) Preferences {
	utils.Assign(&p.Theme, u.Theme)
	utils.Assign(&p.FontSize, u.FontSize)
	utils.Assign(&p.ResponseStyle, u.ResponseStyle)
	utils.Assign(&p.LegalTone, u.LegalTone)
	utils.Assign(&p.AutoReadResponses, u.AutoReadResponses)
	utils.Assign(&p.Language, u.Language)
	return p
}

// MergePreferences returns a copy of profile whose preferences are the prior
// ones with sent applied and then the server's echo layered on top.
func MergePreferences(profile *Profile, sent PreferencesUpdate, resp *Preferences) *Profile {
	out := profile.Clone()
	if out == nil {
		out = &Profile{}
	}
	prefs := out.EffectivePreferences()
	prefs = sent.Apply(prefs)
	if resp != nil {
		prefs = PreferencesUpdate{
			Theme:         nonEmpty(resp.Theme),
			FontSize:      nonEmpty(resp.FontSize),
			ResponseStyle: nonEmpty(resp.ResponseStyle),
			LegalTone:     nonEmpty(resp.LegalTone),
			Language:      nonEmpty(resp.Language),
		}.Apply(prefs)
		if sent.AutoReadResponses == nil {
			prefs.AutoReadResponses = resp.AutoReadResponses
		}
	}
	out.Preferences = &prefs
	return out
}

func nonEmpty[T ~string](v T) *T {
	if v == "" {
		return nil
	}
	return &v
}
