package profiles

import (
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-legid-client/internal/utils"
)

// Consent is the cookie/data processing consent record. Necessary is always
// true: it cannot be withdrawn.
type Consent struct {
	Necessary  bool       `json:"necessary"`
	Functional bool       `json:"functional"`
	Analytics  bool       `json:"analytics"`
	Marketing  bool       `json:"marketing"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// DefaultConsent is the state before the user made any choice.
func DefaultConsent() Consent {
	return Consent{Necessary: true}
}

// Normalize enforces the necessary invariant.
func (c Consent) Normalize() Consent {
	c.Necessary = true
	return c
}

// ConsentUpdate is a partial consent update. There is deliberately no
// Necessary field.
type ConsentUpdate struct {
	Functional *bool `json:"functional,omitempty"`
	Analytics  *bool `json:"analytics,omitempty"`
	Marketing  *bool `json:"marketing,omitempty"`
}

// IsEmpty reports whether no field is set.
func (u ConsentUpdate) IsEmpty() bool {
	return u.Functional == nil && u.Analytics == nil && u.Marketing == nil
}

// Apply writes the set fields over c; necessary stays true.
func (u ConsentUpdate) Apply(c Consent) Consent {
	utils.Assign(&c.Functional, u.Functional)
	utils.Assign(&c.Analytics, u.Analytics)
	utils.Assign(&c.Marketing, u.Marketing)
	return c.Normalize()
}

// ConsentFromMap builds an update from a loosely typed map, as produced by a
// banner form. "necessary" and unknown keys are ignored.
func ConsentFromMap(m map[string]bool) ConsentUpdate {
	var u ConsentUpdate
	for k, v := range m {
		switch k {
		case "functional":
			u.Functional = utils.Ptr(v)
		case "analytics":
			u.Analytics = utils.Ptr(v)
		case "marketing":
			u.Marketing = utils.Ptr(v)
		}
	}
	return u
}

// MergeConsent layers the sent update and then the server's answer over the
// prior consent. A nil prior starts from DefaultConsent. The server's answer
// only overrides the fields it actually returned.
func MergeConsent(prior *Consent, sent ConsentUpdate, resp *ConsentUpdate, updatedAt *time.Time) Consent {
	base := DefaultConsent()
	if prior != nil {
		base = *prior
	}
	merged := sent.Apply(base)
	if resp != nil {
		merged = resp.Apply(merged)
	}
	if updatedAt != nil {
		merged.UpdatedAt = updatedAt
	}
	return merged.Normalize()
}

// DecodeConsent accepts a bare consent object or {"consent": {...}}. It returns
// the fields that were present as an update plus the full normalized value.
func DecodeConsent(data []byte) (ConsentUpdate, Consent, error) {
	var envelope struct {
		Consent json.RawMessage `json:"consent"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ConsentUpdate{}, Consent{}, err
	}
	if len(envelope.Consent) > 0 && string(envelope.Consent) != "null" {
		data = envelope.Consent
	}
	var present ConsentUpdate
	if err := json.Unmarshal(data, &present); err != nil {
		return ConsentUpdate{}, Consent{}, err
	}
	var full Consent
	if err := json.Unmarshal(data, &full); err != nil {
		return ConsentUpdate{}, Consent{}, err
	}
	return present, full.Normalize(), nil
}
