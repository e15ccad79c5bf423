package broker

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Credential is the identity-layer handle bound to at most one AuthRecord.
// SilentAcquire never shows UI and returns (nil, nil) when no resumable
// session exists. InteractiveAuthenticate may prompt the user and waits on
// them indefinitely; pacing is theirs.
type Credential interface {
	SilentAcquire(ctx context.Context, scopes []string) (*TokenResult, error)
	InteractiveAuthenticate(ctx context.Context, scopes []string) (*LoginOutcome, error)
}

// CredentialFactory builds a credential from a persisted record, or from
// nothing when no record exists.
type CredentialFactory func(record *AuthRecord) (Credential, error)

// CredentialHolder owns the single live credential of the process. It is
// only ever touched from inside a serialized broker operation, so it carries
// no locking of its own.
type CredentialHolder struct {
	store   *RecordStore
	factory CredentialFactory
	log     *zap.Logger

	cred      Credential
	hadRecord bool
}

func NewCredentialHolder(store *RecordStore, factory CredentialFactory, log *zap.Logger) *CredentialHolder {
	if log == nil {
		log = zap.NewNop()
	}
	return &CredentialHolder{store: store, factory: factory, log: log}
}

// GetOrCreate returns the live credential, lazily constructing it from
// whatever record is on disk. A record that exists but cannot be parsed is
// treated as absent: a corrupt cache must never block login.
func (h *CredentialHolder) GetOrCreate() (Credential, error) {
	if h.cred != nil {
		return h.cred, nil
	}
	record, err := h.store.Load()
	if err != nil {
		h.log.Warn("discarding unreadable auth record", zap.Error(err))
		record = nil
	}
	cred, err := h.factory(record)
	if err != nil {
		return nil, fmt.Errorf("failed to build credential: %w", err)
	}
	h.cred = cred
	h.hadRecord = record != nil
	return h.cred, nil
}

// HadRecord reports whether the current credential was built from a
// persisted record. A record means this principal authenticated before and
// silent refresh is worth attempting first.
func (h *CredentialHolder) HadRecord() bool { return h.hadRecord }

// Invalidate discards the current credential so the next GetOrCreate
// rebuilds it from disk. Required after every successful interactive login
// (the record may have changed) and after logout.
func (h *CredentialHolder) Invalidate() {
	h.cred = nil
	h.hadRecord = false
}
