// Package snapshot persists the last known session state for warm starts.
// Snapshots are a display cache only: the backend is always authoritative.
package snapshot

import (
	"encoding/json"

	apperrors "github.com/jrsteele09/go-legid-client/internal/errors"
	"github.com/rs/zerolog"
)

// Key names one snapshot.
type Key string

const (
	KeySession         Key = "session-snapshot"
	KeyIdentity        Key = "identity-snapshot"
	KeyProfile         Key = "profile-snapshot"
	KeyConsent         Key = "consent-snapshot"
	KeyPendingIdentity Key = "pending-identity-snapshot"
)

// AllKeys is every key the synchronizer writes.
var AllKeys = []Key{KeySession, KeyIdentity, KeyProfile, KeyConsent, KeyPendingIdentity}

var (
	ErrNotFound = apperrors.ErrNotFound
	ErrCorrupt  = apperrors.ErrCorrupt
)

// Store is a durable byte-level key value mirror. Writes are last-write-wins
// per key and a reader never observes a partially written value.
type Store interface {
	Put(key Key, value []byte) error
	// Get returns ErrNotFound when the key was never written and ErrCorrupt
	// when the stored bytes cannot be opened.
	Get(key Key) ([]byte, error)
	// Delete is a no-op for missing keys.
	Delete(key Key) error
}

// Save serializes v as JSON under key.
func Save(s Store, key Key, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperrors.Wrapf(err, "[snapshot.Save] marshal %s", key)
	}
	if err := s.Put(key, data); err != nil {
		return apperrors.Wrapf(err, "[snapshot.Save] put %s", key)
	}
	return nil
}

// Load returns the value stored under key. Missing, unreadable and corrupt
// entries all come back as (zero, false); corrupt entries are deleted so the
// store heals itself.
func Load[T any](s Store, key Key, logger zerolog.Logger) (T, bool) {
	var zero T
	data, err := s.Get(key)
	switch {
	case err == nil:
	case apperrors.Is(err, ErrNotFound):
		return zero, false
	case apperrors.Is(err, ErrCorrupt):
		heal(s, key, err, logger)
		return zero, false
	default:
		logger.Warn().Err(err).Str("key", string(key)).Msg("snapshot unreadable, ignoring")
		return zero, false
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		heal(s, key, err, logger)
		return zero, false
	}
	return v, true
}

// Clear removes every given key, continuing past failures. The first error
// is returned.
func Clear(s Store, keys ...Key) error {
	var first error
	for _, k := range keys {
		if err := s.Delete(k); err != nil && first == nil {
			first = apperrors.Wrapf(err, "[snapshot.Clear] delete %s", k)
		}
	}
	return first
}

func heal(s Store, key Key, cause error, logger zerolog.Logger) {
	logger.Warn().Err(cause).Str("key", string(key)).Msg("corrupt snapshot discarded")
	if err := s.Delete(key); err != nil {
		logger.Error().Err(err).Str("key", string(key)).Msg("failed to delete corrupt snapshot")
	}
}
