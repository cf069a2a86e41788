// Package envelope models the signed request envelope: an ordered
// sequence of signature entries, a scheme tag, an optional
// domain-separation prefix, the anti-replay uniqueKey, and the
// remaining operation-specific payload fields.
package envelope

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/kashguard/msig-auth/internal/scheme"
)

// SignatureEntry is one signer's contribution to an envelope. At most
// one of SignerPublicKey/SignerAddress may be set when the scheme is
// recoverable; for TON at least one of the two must be set.
type SignatureEntry struct {
	Signature       string `json:"signature"`
	SignerPublicKey string `json:"signerPublicKey,omitempty"`
	SignerAddress   string `json:"signerAddress,omitempty"`
}

// Envelope is the signed request structure. Raw holds the full
// original JSON (used to derive the canonical payload); the typed
// fields below are parsed out of it for convenience.
type Envelope struct {
	Raw []byte

	Signing    scheme.Scheme
	Prefix     string
	UniqueKey  string
	Signatures []SignatureEntry
}

type wireEnvelope struct {
	Signing    string           `json:"signing,omitempty"`
	Prefix     string           `json:"prefix,omitempty"`
	UniqueKey  string           `json:"uniqueKey,omitempty"`
	Signature  *string          `json:"signature,omitempty"`
	Signatures []SignatureEntry `json:"signatures,omitempty"`
}

// Parse decodes raw into an Envelope, applying the legacy single-
// signature sugar rule and rejecting an envelope that declares both a
// top-level "signature" and a conflicting non-empty "signatures" list.
func Parse(raw []byte) (*Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, errors.Wrap(err, "envelope: invalid JSON")
	}

	sigs := w.Signatures
	if w.Signature != nil {
		legacy := SignatureEntry{Signature: *w.Signature}
		if len(sigs) == 0 {
			sigs = []SignatureEntry{legacy}
		} else if !sameSignatureList(sigs, []SignatureEntry{legacy}) {
			return nil, errors.New("envelope: top-level signature conflicts with non-empty signatures list")
		}
	}

	return &Envelope{
		Raw:        raw,
		Signing:    scheme.Normalize(w.Signing),
		Prefix:     w.Prefix,
		UniqueKey:  w.UniqueKey,
		Signatures: sigs,
	}, nil
}

func sameSignatureList(a, b []SignatureEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SignerAddressField reads a bare "signerAddress" field off an
// envelope that carries no signatures at all, for the empty-signature
// / origin-chaincode branch.
func SignerAddressField(raw []byte) (string, error) {
	var w struct {
		SignerAddress string `json:"signerAddress,omitempty"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return "", errors.Wrap(err, "envelope: invalid JSON")
	}
	return w.SignerAddress, nil
}
