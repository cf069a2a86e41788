// Package authfail holds the typed failure kinds the authenticator,
// authorization gate and multisig wallet can return. Each kind carries
// the stable fields a caller dispatches on; none is recovered locally.
package authfail

import "fmt"

// Kind identifies one of the tagged failure kinds of this package.
type Kind int

const (
	KindUnknown Kind = iota
	KindMissingSignature
	KindMissingSigner
	KindPublicKeyMismatch
	KindAddressMismatch
	KindRedundantSignerPublicKey
	KindRedundantSignerAddress
	KindDuplicateSigner
	KindPkInvalidSignature
	KindPkMissing
	KindUserNotRegistered
	KindChaincodeAuthorization
	KindForbidden
	KindMissingRole
	KindNotFound
	KindValidationFailed
)

func (k Kind) String() string {
	switch k {
	case KindMissingSignature:
		return "MissingSignature"
	case KindMissingSigner:
		return "MissingSigner"
	case KindPublicKeyMismatch:
		return "PublicKeyMismatch"
	case KindAddressMismatch:
		return "AddressMismatch"
	case KindRedundantSignerPublicKey:
		return "RedundantSignerPublicKey"
	case KindRedundantSignerAddress:
		return "RedundantSignerAddress"
	case KindDuplicateSigner:
		return "DuplicateSigner"
	case KindPkInvalidSignature:
		return "PkInvalidSignature"
	case KindPkMissing:
		return "PkMissing"
	case KindUserNotRegistered:
		return "UserNotRegistered"
	case KindChaincodeAuthorization:
		return "ChaincodeAuthorization"
	case KindForbidden:
		return "Forbidden"
	case KindMissingRole:
		return "MissingRole"
	case KindNotFound:
		return "NotFound"
	case KindValidationFailed:
		return "ValidationFailed"
	default:
		return "Unknown"
	}
}

// Error is the single error type this package produces. Fields not
// relevant to Kind are left at their zero value.
type Error struct {
	Kind Kind

	// Per-signature-loop annotation: signerAddress, signerPublicKey, or
	// the entry index, in that order of preference.
	Signer string

	Message   string
	Recovered string
	Provided  string
	Address   string
	Alias     string
	UserID    string
	Required  []string
	Has       []string
	WalletID  string
	TxNonce   int64
	MinSigs   int
	GotSigs   int

	Original error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Signer != "" {
		msg = fmt.Sprintf("%s (signer: %s)", msg, e.Signer)
	}
	if e.Original != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Original)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Original }

// WithSigner returns a copy of e annotated with the offending entry's
// identifier, as required for every error raised inside the
// authenticator's per-signature loop.
func (e *Error) WithSigner(id string) *Error {
	clone := *e
	clone.Signer = id
	return &clone
}

func MissingSignature() *Error {
	return &Error{Kind: KindMissingSignature, Message: "no signatures and no service| sender"}
}

func MissingSigner(rawSignature string) *Error {
	return &Error{Kind: KindMissingSigner, Message: "signature entry lacks both address and public key, and is not recoverable", Provided: rawSignature}
}

func PublicKeyMismatch(recovered, provided string) *Error {
	return &Error{Kind: KindPublicKeyMismatch, Message: "recovered public key does not match provided public key", Recovered: recovered, Provided: provided}
}

func AddressMismatch(recovered, provided string) *Error {
	return &Error{Kind: KindAddressMismatch, Message: "recovered address does not match provided address", Recovered: recovered, Provided: provided}
}

func RedundantSignerPublicKey(recovered, inDTO string) *Error {
	return &Error{Kind: KindRedundantSignerPublicKey, Message: "signerPublicKey equals the recoverable key and should be omitted", Recovered: recovered, Provided: inDTO}
}

func RedundantSignerAddress(recovered, inDTO string) *Error {
	return &Error{Kind: KindRedundantSignerAddress, Message: "signerAddress equals the recoverable address and should be omitted", Recovered: recovered, Provided: inDTO}
}

func DuplicateSigner(address string) *Error {
	return &Error{Kind: KindDuplicateSigner, Message: "signer appears twice in the same envelope", Address: address}
}

func PkInvalidSignature(alias string) *Error {
	return &Error{Kind: KindPkInvalidSignature, Message: "signature verification failed", Alias: alias}
}

func PkMissing(alias string) *Error {
	return &Error{Kind: KindPkMissing, Message: "public key record absent for resolved alias", Alias: alias}
}

func UserNotRegistered(userID string) *Error {
	return &Error{Kind: KindUserNotRegistered, Message: "no user profile and synthesis not permitted", UserID: userID}
}

func ChaincodeAuthorization(message string) *Error {
	return &Error{Kind: KindChaincodeAuthorization, Message: message}
}

func Forbidden(required, got int) *Error {
	return &Error{
		Kind:    KindForbidden,
		Message: fmt.Sprintf("Requires at least %d signatures but got %d", required, got),
		MinSigs: required,
		GotSigs: got,
	}
}

func MissingRole(alias string, has, required []string) *Error {
	return &Error{Kind: KindMissingRole, Message: "signer missing a required role", Alias: alias, Has: has, Required: required}
}

func NotFoundWallet(walletID string) *Error {
	return &Error{Kind: KindNotFound, Message: "wallet not found", WalletID: walletID}
}

func NotFoundTx(walletID string, nonce int64) *Error {
	return &Error{Kind: KindNotFound, Message: "pending transaction not found", WalletID: walletID, TxNonce: nonce}
}

func ValidationFailed(message string) *Error {
	return &Error{Kind: KindValidationFailed, Message: message}
}

// Is reports whether target is an *Error of the same Kind, so
// errors.Is(err, &authfail.Error{Kind: authfail.KindX}) matches any
// error of that kind; most callers should prefer errors.As and inspect
// Kind directly.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
