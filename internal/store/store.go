// Package store defines the abstract read/write surface the
// authenticator and multisig wallet depend on, and the ledger-record
// shapes that travel across it. Production wires this to the
// permissioned ledger's key-value store; that implementation is an
// external collaborator and out of scope here, so only the interfaces
// and an in-memory stand-in are provided.
package store

import (
	"context"

	"github.com/kashguard/msig-auth/internal/profile"
)

// PendingTx is one not-yet-executed multisig submission: the target
// call and the distinct owner confirmations gathered so far.
type PendingTx struct {
	To            string
	Data          string
	Confirmations []string
}

// WalletState is the MSIG|<walletId> ledger record: an M-of-N multisig
// wallet's owner set, threshold, next submission nonce, and the
// pending transactions awaiting confirmation.
type WalletState struct {
	WalletID   string
	Owners     []string
	Threshold  int
	Nonce      int64
	PendingTxs map[int64]*PendingTx
}

// Clone returns a deep copy, so callers can mutate a working copy and
// only persist it on success.
func (w *WalletState) Clone() *WalletState {
	clone := &WalletState{
		WalletID:   w.WalletID,
		Owners:     append([]string(nil), w.Owners...),
		Threshold:  w.Threshold,
		Nonce:      w.Nonce,
		PendingTxs: make(map[int64]*PendingTx, len(w.PendingTxs)),
	}
	for nonce, tx := range w.PendingTxs {
		clone.PendingTxs[nonce] = &PendingTx{
			To:            tx.To,
			Data:          tx.Data,
			Confirmations: append([]string(nil), tx.Confirmations...),
		}
	}
	return clone
}

// PublicKeyStore is the GCPK|<alias> namespace.
type PublicKeyStore interface {
	GetPublicKey(ctx context.Context, alias string) (*profile.PublicKeyRecord, bool, error)
	PutPublicKey(ctx context.Context, rec *profile.PublicKeyRecord) error
}

// ProfileStore is the GCUP|<address> namespace, plus the batch read
// the authenticator uses to avoid N sequential round-trips.
type ProfileStore interface {
	GetUserProfile(ctx context.Context, address string) (*profile.UserProfile, bool, error)
	GetUserProfiles(ctx context.Context, addresses []string) ([]*profile.UserProfile, error)
	PutUserProfile(ctx context.Context, p *profile.UserProfile) error
	InvalidateUserProfile(ctx context.Context, address string) error
}

// EventSink is the stub's SetEvent hook: events are part of the
// enclosing transaction's write set and only observed on commit, so
// this interface makes no delivery guarantee of its own.
type EventSink interface {
	SetEvent(name string, payload []byte) error
}

// MultisigStore is the MSIG|<walletId> namespace.
type MultisigStore interface {
	GetWallet(ctx context.Context, walletID string) (*WalletState, bool, error)
	PutWallet(ctx context.Context, w *WalletState) error
}

// Store composes every capability the authenticator and wallet need.
type Store interface {
	PublicKeyStore
	ProfileStore
	MultisigStore
	EventSink
}

// ReplayStore is the ambient "store-backed set outside this spec's hot
// path" §5 calls for: SUBMIT-class operations must reject an envelope
// whose uniqueKey has already been consumed.
type ReplayStore interface {
	// Consume marks key as used, returning false if it was already
	// present (i.e. the caller must reject the request as a replay).
	Consume(ctx context.Context, key string) (fresh bool, err error)
}
