package main

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/kashguard/msig-auth/internal/canonical"
	"github.com/kashguard/msig-auth/internal/signing"
)

// demoSigner is a throwaway ETH keypair used to build signed envelopes
// for the demo walk.
type demoSigner struct {
	label   string
	priv    *ecdsa.PrivateKey
	address string
}

func newDemoSigner(label string) (*demoSigner, error) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	pub := ethcrypto.FromECDSAPub(&priv.PublicKey)
	address, err := (signing.ETH{}).AddressFromPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &demoSigner{label: label, priv: priv, address: address}, nil
}

// envelope builds a single-signature envelope over fields, with the
// signature recoverable (no signerPublicKey/signerAddress attached),
// exercising the authenticator's "only signature" resolution path.
func (s *demoSigner) envelope(fields map[string]any) ([]byte, error) {
	withSig := map[string]any{}
	for k, v := range fields {
		withSig[k] = v
	}
	if _, ok := withSig["uniqueKey"]; !ok {
		withSig["uniqueKey"] = uuid.NewString()
	}
	raw, err := json.Marshal(withSig)
	if err != nil {
		return nil, err
	}

	payload, err := canonical.Payload(raw, "")
	if err != nil {
		return nil, err
	}
	sig, err := (signing.ETH{}).Sign(ethcrypto.FromECDSA(s.priv), payload)
	if err != nil {
		return nil, err
	}

	withSig["signatures"] = []map[string]string{{"signature": hex.EncodeToString(sig)}}
	return json.Marshal(withSig)
}
