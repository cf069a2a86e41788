package signing

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/kashguard/msig-auth/internal/scheme"
)

// ETH implements Signer for secp256k1 ECDSA with public-key recovery.
// payload is always prefix||canonical_payload; the keccak256 hashing
// step lives here so callers never touch raw hash bytes directly.
type ETH struct{}

func NewETH() *ETH { return &ETH{} }

func (ETH) Scheme() scheme.Scheme { return scheme.ETH }

func (ETH) Sign(priv, payload []byte) ([]byte, error) {
	key, err := ethcrypto.ToECDSA(priv)
	if err != nil {
		return nil, errors.Wrap(err, "eth: invalid private key")
	}
	hash := ethcrypto.Keccak256(payload)
	sig, err := ethcrypto.Sign(hash, key)
	if err != nil {
		return nil, errors.Wrap(err, "eth: sign failed")
	}
	return sig, nil
}

func (ETH) Recover(sig, payload []byte) ([]byte, error) {
	if len(sig) != 65 {
		return nil, ErrSignatureNotParseable
	}
	hash := ethcrypto.Keccak256(payload)
	pub, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return nil, ErrSignatureNotParseable
	}
	return ethcrypto.FromECDSAPub(pub), nil
}

// Verify accepts pub as raw scheme-native bytes (compressed or
// uncompressed secp256k1 point), consistent with Recover and
// AddressFromPublicKey.
func (e ETH) Verify(sig, payload, pub []byte) (bool, error) {
	recovered, err := e.Recover(sig, payload)
	if err != nil {
		return false, err
	}
	uncompressed, err := toUncompressed(pub)
	if err != nil {
		return false, err
	}
	return hex.EncodeToString(recovered) == hex.EncodeToString(uncompressed), nil
}

func (ETH) AddressFromPublicKey(pub []byte) (string, error) {
	uncompressed, err := toUncompressed(pub)
	if err != nil {
		return "", err
	}
	hash := ethcrypto.Keccak256(uncompressed[1:])
	return "0x" + hex.EncodeToString(hash[12:]), nil
}

// toUncompressed accepts a compressed (33-byte) or uncompressed
// (65-byte, 0x04-prefixed) secp256k1 public key and returns the
// uncompressed form.
func toUncompressed(pub []byte) ([]byte, error) {
	switch {
	case len(pub) == 65 && pub[0] == 0x04:
		return pub, nil
	case len(pub) == 33 && (pub[0] == 0x02 || pub[0] == 0x03):
		key, err := btcec.ParsePubKey(pub)
		if err != nil {
			return nil, errors.Wrap(err, "eth: failed to parse compressed public key")
		}
		return key.SerializeUncompressed(), nil
	default:
		return nil, errors.Errorf("eth: unsupported public key encoding (len=%d)", len(pub))
	}
}

// NormalizeETHPublicKey implements normalize_eth_public_key: accepts a
// hex-encoded compressed or uncompressed key and canonicalizes it to
// non-compact (uncompressed) hex.
func NormalizeETHPublicKey(pubHex []byte) (string, error) {
	raw, err := decodeHexOrRaw(pubHex)
	if err != nil {
		return "", err
	}
	uncompressed, err := toUncompressed(raw)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(uncompressed), nil
}

// CompactBase64 implements compact_base64: renders a hex-encoded ETH
// public key (compressed or uncompressed) as base64 of its compressed
// (33-byte) form, for storage/lookup symmetry with TON keys.
func CompactBase64(pubHex string) (string, error) {
	raw, err := decodeHexOrRaw([]byte(pubHex))
	if err != nil {
		return "", err
	}
	key, err := btcec.ParsePubKey(raw)
	if err != nil {
		// fall back: already compressed but parse failed on an oddly
		// sized buffer, try via uncompressed round-trip.
		uncompressed, uerr := toUncompressed(raw)
		if uerr != nil {
			return "", errors.Wrap(err, "eth: failed to parse public key")
		}
		key, err = btcec.ParsePubKey(uncompressed)
		if err != nil {
			return "", errors.Wrap(err, "eth: failed to parse public key")
		}
	}
	return base64.StdEncoding.EncodeToString(key.SerializeCompressed()), nil
}

func decodeHexOrRaw(pub []byte) ([]byte, error) {
	s := strings.TrimPrefix(string(pub), "0x")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "eth: public key is not valid hex")
	}
	return decoded, nil
}
