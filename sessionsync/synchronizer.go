package sessionsync

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-legid-client/api"
	"github.com/jrsteele09/go-legid-client/guard"
	apperrors "github.com/jrsteele09/go-legid-client/internal/errors"
	"github.com/jrsteele09/go-legid-client/profiles"
	"github.com/jrsteele09/go-legid-client/sessions"
	"github.com/jrsteele09/go-legid-client/snapshot"
	"github.com/jrsteele09/go-legid-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const defaultRefreshTimeout = 15 * time.Second

// Synchronizer is the only writer of a State. Every operation that talks to
// the backend follows the same error policy:
//   - unauthorized: full local logout, snapshots cleared
//   - not provisioned: identity kept but gated, session kept
//   - anything else: state untouched, error returned
//
// Responses that arrive after a logout or a new login are discarded with
// ErrSuperseded.
//
// Holder observers run while the synchronizer holds its write lock, so they
// must not call back into the synchronizer.
type Synchronizer struct {
	state          *State
	backend        Backend
	store          snapshot.Store
	logger         zerolog.Logger
	nowTime        func() time.Time
	refreshTimeout time.Duration

	mu         sync.Mutex
	generation uint64
	refreshes  singleflight.Group
}

type SynchronizerOption func(*Synchronizer)

func WithLogger(l zerolog.Logger) SynchronizerOption {
	return func(s *Synchronizer) {
		s.logger = l
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowTime func() time.Time) SynchronizerOption {
	return func(s *Synchronizer) {
		s.nowTime = nowTime
	}
}

// WithRefreshTimeout bounds a coalesced refresh, which runs detached from
// the cancellation of whichever caller started it.
func WithRefreshTimeout(d time.Duration) SynchronizerOption {
	return func(s *Synchronizer) {
		if d > 0 {
			s.refreshTimeout = d
		}
	}
}

func New(state *State, backend Backend, store snapshot.Store, options ...SynchronizerOption) (*Synchronizer, error) {
	if state == nil {
		return nil, errors.New("[sessionsync.New] state is required")
	}
	if backend == nil {
		return nil, errors.New("[sessionsync.New] backend is required")
	}
	if store == nil {
		return nil, errors.New("[sessionsync.New] snapshot store is required")
	}
	s := &Synchronizer{
		state:          state,
		backend:        backend,
		store:          store,
		logger:         zerolog.Nop(),
		nowTime:        time.Now,
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Synchronizer) State() *State {
	return s.state
}

// Guard returns access predicates over the current state.
func (s *Synchronizer) Guard() *guard.Guard {
	return guard.New(s.state, guard.WithNowTime(s.nowTime))
}

// Dispose tears down every observer of the state.
func (s *Synchronizer) Dispose() {
	s.state.Dispose()
}

// Hydrate restores the last persisted state for a warm start. It reports
// whether a session was restored. The restored values are a display cache
// until Refresh confirms them.
func (s *Synchronizer) Hydrate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := snapshot.Load[*sessions.Session](s.store, snapshot.KeySession, s.logger)
	if !ok || session == nil || session.Token == "" {
		s.clearLocked()
		return false
	}
	if session.Expired(s.nowTime()) && session.RefreshToken == "" {
		s.logger.Info().Msg("persisted session expired, discarding snapshots")
		s.clearLocked()
		return false
	}

	identity, _ := snapshot.Load[*users.Identity](s.store, snapshot.KeyIdentity, s.logger)
	profile, _ := snapshot.Load[*profiles.Profile](s.store, snapshot.KeyProfile, s.logger)
	consent, _ := snapshot.Load[*profiles.Consent](s.store, snapshot.KeyConsent, s.logger)
	pending, _ := snapshot.Load[*users.Identity](s.store, snapshot.KeyPendingIdentity, s.logger)
	if consent != nil {
		normalized := consent.Normalize()
		consent = &normalized
	}

	s.state.Identity.Set(identity)
	s.state.Profile.Set(profile)
	s.state.Consent.Set(consent)
	s.state.PendingIdentity.Set(pending)
	s.state.Session.Set(session)
	s.generation++
	return true
}

// current returns the session and generation an operation starts from.
func (s *Synchronizer) current() (*sessions.Session, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Session.Get(), s.generation
}

// gated returns the session for an operation that needs a provisioned
// account. It never touches the network.
func (s *Synchronizer) gated() (*sessions.Session, uint64, error) {
	session, gen := s.current()
	if session == nil {
		return nil, 0, apperrors.ErrNotAuthenticated
	}
	identity := s.state.Identity.Get()
	if identity == nil || !identity.IsProvisioned {
		return nil, 0, apperrors.ErrNotProvisioned
	}
	return session, gen, nil
}

// commit runs apply under the write lock unless the generation moved on.
func (s *Synchronizer) commit(gen uint64, apply func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return apperrors.ErrSuperseded
	}
	apply()
	return nil
}

// fail applies the error policy to a backend error from generation gen and
// returns the error to hand to the caller.
func (s *Synchronizer) fail(op string, gen uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return apperrors.ErrSuperseded
	}

	switch {
	case errors.Is(err, apperrors.ErrNotProvisioned):
		var pending *users.Identity
		if apiErr, ok := api.AsError(err); ok {
			pending = apiErr.PendingUser
		}
		s.gateLocked(pending)
		s.logger.Info().Str("op", op).Msg("account not provisioned")
	case errors.Is(err, apperrors.ErrUnauthorized):
		s.logger.Info().Str("op", op).Err(err).Msg("session rejected, signing out locally")
		s.clearLocked()
		s.generation++
	default:
		s.logger.Warn().Str("op", op).Err(err).Msg("backend call failed")
	}
	return errors.Wrap(err, "["+op+"]")
}

// gateLocked marks the signed in identity as not provisioned. pending is the
// identity the server sent along, if any.
func (s *Synchronizer) gateLocked(pending *users.Identity) {
	identity := pending
	if identity == nil {
		identity = s.state.Identity.Get()
	}
	if identity == nil {
		identity = s.state.PendingIdentity.Get()
	}
	if identity == nil {
		return
	}
	gatedIdentity := *identity
	gatedIdentity.IsProvisioned = false

	s.state.Identity.Set(&gatedIdentity)
	s.state.PendingIdentity.Set(&gatedIdentity)
	s.save(snapshot.KeyIdentity, &gatedIdentity)
	s.save(snapshot.KeyPendingIdentity, &gatedIdentity)
}

// applyAuthLocked publishes a fresh auth result. Identity, profile and
// consent go first so observers of the session see a complete state.
func (s *Synchronizer) applyAuthLocked(result *sessions.AuthResult) {
	identity := result.Identity
	s.state.Identity.Set(identity)
	s.save(snapshot.KeyIdentity, identity)

	if result.Profile != nil {
		s.state.Profile.Set(result.Profile)
		s.save(snapshot.KeyProfile, result.Profile)
	}
	if result.Consent != nil {
		consent := result.Consent.Normalize()
		s.state.Consent.Set(&consent)
		s.save(snapshot.KeyConsent, &consent)
	}

	if identity != nil && !identity.IsProvisioned {
		s.state.PendingIdentity.Set(identity)
		s.save(snapshot.KeyPendingIdentity, identity)
	} else {
		s.state.PendingIdentity.Set(nil)
		s.remove(snapshot.KeyPendingIdentity)
	}

	if result.Session != nil {
		s.state.Session.Set(result.Session)
		s.save(snapshot.KeySession, result.Session)
	}
}

// clearLocked signs out locally. The session goes first so guards flip
// before any other observer runs.
func (s *Synchronizer) clearLocked() {
	s.state.Session.Set(nil)
	s.state.Identity.Set(nil)
	s.state.Profile.Set(nil)
	s.state.Consent.Set(nil)
	s.state.PendingIdentity.Set(nil)
	if err := snapshot.Clear(s.store, snapshot.AllKeys...); err != nil {
		s.logger.Error().Err(err).Msg("failed to clear snapshots")
	}
}

// save mirrors v into the snapshot store. The store is a cache, so a failed
// write is logged and otherwise ignored.
func (s *Synchronizer) save(key snapshot.Key, v any) {
	if err := snapshot.Save(s.store, key, v); err != nil {
		s.logger.Error().Err(err).Str("key", string(key)).Msg("failed to write snapshot")
	}
}

func (s *Synchronizer) remove(key snapshot.Key) {
	if err := s.store.Delete(key); err != nil {
		s.logger.Error().Err(err).Str("key", string(key)).Msg("failed to delete snapshot")
	}
}
