package signing

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ed25519"

	"github.com/kashguard/msig-auth/internal/scheme"
)

// TON implements Signer for ed25519, which has no public-key recovery.
type TON struct{}

func NewTON() *TON { return &TON{} }

func (TON) Scheme() scheme.Scheme { return scheme.TON }

// Sign accepts priv as the 32-byte raw seed the data model stores for
// a TON key, expanding it to the 64-byte form ed25519 signs with.
func (TON) Sign(priv, payload []byte) ([]byte, error) {
	if len(priv) != ed25519.SeedSize {
		return nil, errors.Errorf("ton: private key must be %d raw bytes, got %d", ed25519.SeedSize, len(priv))
	}
	expanded := ed25519.NewKeyFromSeed(priv)
	return ed25519.Sign(expanded, payload), nil
}

func (TON) Verify(sig, payload, pub []byte) (bool, error) {
	if len(pub) != ed25519.PublicKeySize {
		return false, errors.Errorf("ton: public key must be %d raw bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	return ed25519.Verify(ed25519.PublicKey(pub), payload, sig), nil
}

// Recover is not implemented for TON: ed25519 offers no public key
// recovery, so this branches rather than attempting one.
func (TON) Recover(sig, payload []byte) ([]byte, error) {
	return nil, ErrNotRecoverable
}

// AddressFromPublicKey derives a bounceable TON address from a raw
// 32-byte ed25519 public key: tag || workchain || sha256(pub) || crc16,
// base64url-encoded.
func (TON) AddressFromPublicKey(pub []byte) (string, error) {
	return TonAddress(pub)
}

const (
	tonBounceableTag byte = 0x11
	tonWorkchainBase byte = 0x00
)

// TonAddress implements ton_address: the bounceable-form derivation
// from a raw ed25519 public key.
func TonAddress(pub []byte) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", errors.Errorf("ton: public key must be %d raw bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	hash := sha256.Sum256(pub)

	buf := make([]byte, 0, 36)
	buf = append(buf, tonBounceableTag, tonWorkchainBase)
	buf = append(buf, hash[:]...)
	crc := crc16XModem(buf)
	buf = append(buf, byte(crc>>8), byte(crc))

	return base64.URLEncoding.EncodeToString(buf), nil
}

// crc16XModem computes CRC-16/XMODEM (poly 0x1021, init 0x0000), the
// checksum TON's friendly address format uses. No third-party CRC16
// implementation appears anywhere in the retrieved pack, and the
// algorithm is a dozen lines of table-free bit math, so it is written
// directly rather than hand-rolling a dependency.
func crc16XModem(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
