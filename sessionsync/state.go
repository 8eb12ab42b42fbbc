// Package sessionsync keeps the local session, identity, profile and consent
// state in step with the backend and the snapshot store.
package sessionsync

import (
	"github.com/jrsteele09/go-legid-client/holder"
	"github.com/jrsteele09/go-legid-client/profiles"
	"github.com/jrsteele09/go-legid-client/sessions"
	"github.com/jrsteele09/go-legid-client/users"
)

// State is the set of observable values the rest of the app reads. It is
// written only by a Synchronizer; everything else subscribes or calls Get.
type State struct {
	Session  *holder.Holder[*sessions.Session]
	Identity *holder.Holder[*users.Identity]
	Profile  *holder.Holder[*profiles.Profile]
	Consent  *holder.Holder[*profiles.Consent]
	// PendingIdentity is the identity of a signed in account that has not
	// been provisioned yet, kept for the access request screen.
	PendingIdentity *holder.Holder[*users.Identity]
}

// NewState returns an empty, signed out state.
func NewState() *State {
	return &State{
		Session:         holder.New[*sessions.Session](nil),
		Identity:        holder.New[*users.Identity](nil),
		Profile:         holder.New[*profiles.Profile](nil),
		Consent:         holder.New[*profiles.Consent](nil),
		PendingIdentity: holder.New[*users.Identity](nil),
	}
}

func (s *State) CurrentSession() *sessions.Session {
	return s.Session.Get()
}

func (s *State) CurrentIdentity() *users.Identity {
	return s.Identity.Get()
}

// Dispose drops every observer of every holder.
func (s *State) Dispose() {
	s.Session.Dispose()
	s.Identity.Dispose()
	s.Profile.Dispose()
	s.Consent.Dispose()
	s.PendingIdentity.Dispose()
}
