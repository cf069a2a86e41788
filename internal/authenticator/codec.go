package authenticator

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"

	"github.com/kashguard/msig-auth/internal/scheme"
)

// decodeSignature and decodePublicKey dispatch on scheme: ETH uses hex
// (optionally 0x-prefixed), TON uses standard base64, matching the
// wire encodings declared in the envelope's data model.
func decodeSignature(sch scheme.Scheme, s string) ([]byte, error) {
	if sch == scheme.TON {
		return base64.StdEncoding.DecodeString(s)
	}
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

func decodePublicKey(sch scheme.Scheme, s string) ([]byte, error) {
	if sch == scheme.TON {
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, errors.Wrap(err, "authenticator: invalid base64 TON public key")
		}
		return raw, nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "authenticator: invalid hex ETH public key")
	}
	return raw, nil
}

// publicKeyKey renders raw public key bytes as hex (the ETH wire
// encoding), for error-field display.
func publicKeyKey(pub []byte) string {
	return hex.EncodeToString(pub)
}
