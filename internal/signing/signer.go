// Package signing implements the signature primitives of the two
// supported schemes behind a single tagged-variant interface, per the
// "polymorphism over signing schemes" design note: each Signer exposes
// Sign/Verify/Recover, and a scheme for which recovery makes no sense
// (TON) simply returns ErrNotRecoverable instead of panicking.
package signing

import (
	"errors"

	"github.com/kashguard/msig-auth/internal/scheme"
)

// ErrNotRecoverable is returned by Recover on schemes without public
// key recovery (TON ed25519).
var ErrNotRecoverable = errors.New("signing: scheme does not support public key recovery")

// ErrSignatureNotParseable is returned by ETH.Recover when sig is not a
// 65-byte signature or no public key can be recovered from it. It is
// distinct from ErrNotRecoverable (a scheme without recovery), so call
// sites can tell the two apart.
var ErrSignatureNotParseable = errors.New("signing: signature does not parse")

// Signer is the per-scheme contract. payload is always the canonical
// bytes produced by internal/canonical.
type Signer interface {
	Scheme() scheme.Scheme

	// Sign produces a signature over payload using priv (raw scheme-native
	// private key bytes).
	Sign(priv, payload []byte) ([]byte, error)

	// Verify reports whether sig is a valid signature over payload by pub
	// (scheme-native public key bytes).
	Verify(sig, payload, pub []byte) (bool, error)

	// Recover returns the scheme-native public key recoverable from sig
	// and payload alone. TON returns ErrNotRecoverable.
	Recover(sig, payload []byte) (pub []byte, err error)

	// AddressFromPublicKey derives the canonical on-chain address string
	// from a scheme-native public key.
	AddressFromPublicKey(pub []byte) (string, error)
}

// Registry dispatches to the Signer for a given scheme.
type Registry struct {
	signers map[scheme.Scheme]Signer
}

// NewRegistry builds the registry with the two enumerated schemes.
func NewRegistry() *Registry {
	return &Registry{
		signers: map[scheme.Scheme]Signer{
			scheme.ETH: NewETH(),
			scheme.TON: NewTON(),
		},
	}
}

// For returns the Signer for s, or false if s is not one of the
// enumerated schemes.
func (r *Registry) For(s scheme.Scheme) (Signer, bool) {
	signer, ok := r.signers[s]
	return signer, ok
}
