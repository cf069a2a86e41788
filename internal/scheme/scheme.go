// Package scheme defines the signing schemes this module speaks: ETH
// secp256k1 (recoverable) and TON ed25519 (non-recoverable).
package scheme

import "strings"

// Scheme tags a signature entry or public key with the signing curve
// and recovery semantics it belongs to.
type Scheme string

const (
	// ETH is secp256k1 ECDSA with public-key recovery, the default scheme.
	ETH Scheme = "ETH"
	// TON is ed25519, never recoverable.
	TON Scheme = "TON"
)

// Normalize maps s case-insensitively to TON; every other value,
// including the empty string, maps to ETH, the envelope's default.
func Normalize(s string) Scheme {
	if s == "" {
		return ETH
	}
	switch strings.ToUpper(s) {
	case string(TON):
		return TON
	default:
		return ETH
	}
}

// Valid reports whether s is one of the enumerated schemes.
func (s Scheme) Valid() bool {
	return s == ETH || s == TON
}

// Lower returns the lowercase form used in synthesized alias prefixes
// (e.g. "eth|<address>").
func (s Scheme) Lower() string {
	return strings.ToLower(string(s))
}
