// Package guard answers access questions from the current session state.
// Nothing here performs network I/O.
package guard

import (
	"time"

	"github.com/jrsteele09/go-legid-client/sessions"
	"github.com/jrsteele09/go-legid-client/users"
)

// Source supplies the current session and identity.
type Source interface {
	CurrentSession() *sessions.Session
	CurrentIdentity() *users.Identity
}

// Guard evaluates access predicates against a Source.
type Guard struct {
	source  Source
	nowTime func() time.Time
}

type GuardOption func(*Guard)

// WithNowTime sets the clock used for session expiry (primarily for testing)
func WithNowTime(nowTime func() time.Time) GuardOption {
	return func(g *Guard) {
		g.nowTime = nowTime
	}
}

func New(source Source, options ...GuardOption) *Guard {
	g := &Guard{source: source, nowTime: time.Now}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// IsAuthenticated is true while an unexpired session is held. A session
// without a known expiry counts until the backend rejects it.
func (g *Guard) IsAuthenticated() bool {
	s := g.source.CurrentSession()
	return s != nil && !s.Expired(g.nowTime())
}

// IsProvisioned is true when the signed in identity has been granted access.
func (g *Guard) IsProvisioned() bool {
	identity := g.source.CurrentIdentity()
	return g.IsAuthenticated() && identity != nil && identity.IsProvisioned
}

// HasRole is false without an identity, otherwise true when the role is
// exactly one of roles.
func (g *Guard) HasRole(roles ...users.RoleType) bool {
	return g.source.CurrentIdentity().HasRole(roles...)
}

func (g *Guard) IsApprovedLawyer() bool {
	return g.source.CurrentIdentity().IsApprovedLawyer()
}

// Decision is the outcome of checking a Requirement.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectNotProvisioned
	AccessDenied
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectNotProvisioned:
		return "redirect_not_provisioned"
	case AccessDenied:
		return "access_denied"
	default:
		return "unknown"
	}
}

// Requirement describes what a screen or command needs. The zero value only
// requires a session.
type Requirement struct {
	Roles                 []users.RoleType // any of these; empty means any role
	RequireApprovedLawyer bool
	RequireProvisioned    bool
	Rule                  *Rule // optional extra condition
}

// Decide checks req in the order a router would: session, provisioning,
// role, lawyer approval, then the custom rule.
func (g *Guard) Decide(req Requirement) Decision {
	if !g.IsAuthenticated() {
		return RedirectLogin
	}
	if req.RequireProvisioned && !g.IsProvisioned() {
		return RedirectNotProvisioned
	}
	if len(req.Roles) > 0 && !g.HasRole(req.Roles...) {
		return AccessDenied
	}
	if req.RequireApprovedLawyer && !g.IsApprovedLawyer() {
		return AccessDenied
	}
	if req.Rule != nil {
		ok, err := req.Rule.Eval(g.Env())
		if err != nil || !ok {
			return AccessDenied
		}
	}
	return Allow
}

// Env is the variable set rule expressions are evaluated against.
func (g *Guard) Env() RuleEnv {
	env := RuleEnv{
		Authenticated: g.IsAuthenticated(),
		Provisioned:   g.IsProvisioned(),
	}
	if identity := g.source.CurrentIdentity(); identity != nil {
		env.Role = string(identity.Role)
		env.LawyerStatus = string(identity.LawyerStatus)
		env.Email = identity.Email
	}
	return env
}
