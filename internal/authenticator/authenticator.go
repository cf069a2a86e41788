// Package authenticator turns a signed envelope into an ordered,
// deduplicated list of authenticated user profiles.
package authenticator

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/kashguard/msig-auth/internal/authfail"
	"github.com/kashguard/msig-auth/internal/canonical"
	"github.com/kashguard/msig-auth/internal/config"
	"github.com/kashguard/msig-auth/internal/envelope"
	"github.com/kashguard/msig-auth/internal/metrics"
	"github.com/kashguard/msig-auth/internal/profile"
	"github.com/kashguard/msig-auth/internal/scheme"
	"github.com/kashguard/msig-auth/internal/signing"
	"github.com/kashguard/msig-auth/internal/store"
)

// ChaincodeProposal is the stub hook for the origin-chaincode identity
// path: production wires this to the peer's signed proposal payload.
// Nothing in this module implements the proof itself (out of scope).
type ChaincodeProposal interface {
	// GetSignedProposal returns the target chaincode name the peer's
	// proposal was addressed to, for the caller "service|<name>".
	GetSignedProposal(ctx context.Context, caller string) (targetChaincode string, err error)
}

// FirstUserView is the subset of a UserProfile exposed as
// AuthResult.FirstUserView.
type FirstUserView struct {
	Alias      string
	EthAddress string
	TonAddress string
	Roles      []string
}

// AuthResult is authenticate's output contract.
type AuthResult struct {
	FirstUserView FirstUserView
	Users         []*profile.UserProfile
	MinSignatures int
}

// Service is the authenticator, constructed with its store and signing
// collaborators plus the process Config.
type Service struct {
	store    store.Store
	signers  *signing.Registry
	cfg      *config.Config
	proposal ChaincodeProposal
	metrics  *metrics.Metrics
}

// New builds a Service. proposal may be nil when the origin-chaincode
// branch is never exercised (e.g. the demo CLI).
func New(st store.Store, signers *signing.Registry, cfg *config.Config, proposal ChaincodeProposal, m *metrics.Metrics) *Service {
	return &Service{store: st, signers: signers, cfg: cfg, proposal: proposal, metrics: m}
}

type resolvedSigner struct {
	id        string // entry identifier for error annotation
	address   string
	publicKey []byte // nil until known
	scheme    scheme.Scheme
}

// Authenticate implements the seven-step signature-aggregation
// algorithm: resolve each signature entry to an address and public
// key, enforce uniqueness, resolve profiles, fetch missing keys,
// verify every signature, and shape the deduplicated output.
func (s *Service) Authenticate(ctx context.Context, raw []byte, minSignatures int) (*AuthResult, error) {
	if minSignatures <= 0 {
		minSignatures = 1
	}
	start := time.Now()

	env, err := envelope.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "authenticator: invalid envelope")
	}

	result, authErr := s.authenticate(ctx, env, minSignatures)

	outcome := "ok"
	if authErr != nil {
		outcome = "denied"
	}
	if s.metrics != nil {
		s.metrics.ObserveAuth(env.Signing.Lower(), outcome, time.Since(start))
	}
	log.Debug().
		Str("scheme", env.Signing.Lower()).
		Str("outcome", outcome).
		Int("min_signatures", minSignatures).
		Msg("authenticate")

	return result, authErr
}

func (s *Service) authenticate(ctx context.Context, env *envelope.Envelope, minSignatures int) (*AuthResult, error) {
	// Step 1: empty-signature path.
	if len(env.Signatures) == 0 {
		return s.authenticateEmptySignature(ctx, env, minSignatures)
	}

	sch := env.Signing
	if !sch.Valid() {
		sch = scheme.ETH
	}
	signer, ok := s.signers.For(sch)
	if !ok {
		return nil, authfail.ValidationFailed("unsupported signing scheme: " + string(sch))
	}

	payload, err := canonical.Payload(env.Raw, env.Prefix)
	if err != nil {
		return nil, errors.Wrap(err, "authenticator: canonical payload")
	}

	// Step 2: per-signature resolution.
	resolved := make([]resolvedSigner, len(env.Signatures))
	for i, entry := range env.Signatures {
		rs, err := resolveEntry(signer, sch, payload, entry, i)
		if err != nil {
			return nil, err
		}
		resolved[i] = rs
	}

	// Step 3: uniqueness.
	seen := make(map[string]bool, len(resolved))
	for _, rs := range resolved {
		if seen[rs.address] {
			return nil, authfail.DuplicateSigner(rs.address).WithSigner(rs.id)
		}
		seen[rs.address] = true
	}

	// Step 4: profile resolution (batch).
	addresses := make([]string, len(resolved))
	for i, rs := range resolved {
		addresses[i] = rs.address
	}
	found, err := s.store.GetUserProfiles(ctx, addresses)
	if err != nil {
		return nil, errors.Wrap(err, "authenticator: store.GetUserProfiles")
	}
	byAddress := make(map[string]*profile.UserProfile, len(found))
	for _, p := range found {
		if p.EthAddress != "" {
			byAddress[p.EthAddress] = p
		}
		if p.TonAddress != "" {
			byAddress[p.TonAddress] = p
		}
	}

	profiles := make([]*profile.UserProfile, len(resolved))
	for i, rs := range resolved {
		p, ok := byAddress[rs.address]
		if !ok {
			if s.cfg != nil && s.cfg.AllowNonRegisteredUsers && rs.publicKey != nil {
				p = synthesizeProfile(rs)
			} else {
				return nil, authfail.UserNotRegistered(rs.address).WithSigner(rs.id)
			}
		}
		profiles[i] = p
	}

	// Step 5: key resolution for verification.
	for i, rs := range resolved {
		if rs.publicKey != nil {
			continue
		}
		rec, ok, err := s.store.GetPublicKey(ctx, profiles[i].Alias)
		if err != nil {
			return nil, errors.Wrap(err, "authenticator: store.GetPublicKey")
		}
		if !ok {
			return nil, authfail.PkMissing(profiles[i].Alias).WithSigner(rs.id)
		}
		pub, err := decodePublicKey(sch, rec.PublicKey)
		if err != nil {
			return nil, errors.Wrap(err, "authenticator: decode stored public key")
		}
		resolved[i].publicKey = pub
	}

	// Step 6: signature verification.
	for i, entry := range env.Signatures {
		rs := resolved[i]
		sigBytes, err := decodeSignature(sch, entry.Signature)
		if err != nil {
			return nil, authfail.PkInvalidSignature(profiles[i].Alias).WithSigner(rs.id)
		}
		ok, err := signer.Verify(sigBytes, payload, rs.publicKey)
		if err != nil || !ok {
			return nil, authfail.PkInvalidSignature(profiles[i].Alias).WithSigner(rs.id)
		}
	}

	// Step 7: output shaping — dedup by alias, preserve first occurrence.
	users := make([]*profile.UserProfile, 0, len(profiles))
	seenAlias := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if seenAlias[p.Alias] {
			continue
		}
		seenAlias[p.Alias] = true
		users = append(users, p)
	}

	return &AuthResult{
		FirstUserView: viewOf(users[0]),
		Users:         users,
		MinSignatures: minSignatures,
	}, nil
}

func (s *Service) authenticateEmptySignature(ctx context.Context, env *envelope.Envelope, minSignatures int) (*AuthResult, error) {
	signerAddress, err := envelope.SignerAddressField(env.Raw)
	if err != nil {
		return nil, errors.Wrap(err, "authenticator: reading signerAddress")
	}
	if !strings.HasPrefix(signerAddress, "service|") {
		return nil, authfail.MissingSignature()
	}
	return s.authenticateOriginChaincode(ctx, signerAddress, minSignatures)
}

// authenticateOriginChaincode implements §4.4a: a chaincode authenticates
// to another chaincode on the same peer via its signed proposal, not a
// user signature. It never touches role resolution.
func (s *Service) authenticateOriginChaincode(ctx context.Context, caller string, minSignatures int) (*AuthResult, error) {
	name := strings.TrimPrefix(caller, "service|")
	if s.proposal == nil {
		return nil, authfail.ChaincodeAuthorization("no signed proposal source configured").WithSigner(caller)
	}
	target, err := s.proposal.GetSignedProposal(ctx, caller)
	if err != nil {
		return nil, errors.Wrap(err, "authenticator: GetSignedProposal")
	}
	if target == "" || target != name {
		return nil, authfail.ChaincodeAuthorization("proposal target chaincode does not match caller").WithSigner(caller)
	}

	synthetic := &profile.UserProfile{Alias: caller, Roles: nil}
	return &AuthResult{
		FirstUserView: viewOf(synthetic),
		Users:         nil,
		MinSignatures: minSignatures,
	}, nil
}

func resolveEntry(signer signing.Signer, sch scheme.Scheme, payload []byte, entry envelope.SignatureEntry, index int) (resolvedSigner, error) {
	id := entryID(entry, index)
	sigBytes, decodeErr := decodeSignature(sch, entry.Signature)

	var recoveredPub []byte
	var recoverErr error
	if decodeErr == nil {
		recoveredPub, recoverErr = signer.Recover(sigBytes, payload)
	} else {
		recoverErr = signing.ErrSignatureNotParseable
	}
	recoverable := recoverErr == nil

	switch {
	case entry.SignerPublicKey != "" && entry.SignerAddress != "":
		return resolvedSigner{}, authfail.RedundantSignerPublicKey(entry.SignerPublicKey, entry.SignerAddress).WithSigner(id)

	case entry.SignerPublicKey == "" && entry.SignerAddress == "":
		if !recoverable {
			return resolvedSigner{}, authfail.MissingSigner(entry.Signature).WithSigner(id)
		}
		addr, err := signer.AddressFromPublicKey(recoveredPub)
		if err != nil {
			return resolvedSigner{}, errors.Wrap(err, "authenticator: address derivation")
		}
		return resolvedSigner{id: id, address: addr, publicKey: recoveredPub, scheme: sch}, nil

	case entry.SignerPublicKey != "":
		providedPub, err := decodePublicKey(sch, entry.SignerPublicKey)
		if err != nil {
			return resolvedSigner{}, authfail.PkInvalidSignature(entry.SignerPublicKey).WithSigner(id)
		}
		providedAddr, err := signer.AddressFromPublicKey(providedPub)
		if err != nil {
			return resolvedSigner{}, errors.Wrap(err, "authenticator: address derivation")
		}
		if recoverable {
			recoveredAddr, err := signer.AddressFromPublicKey(recoveredPub)
			if err != nil {
				return resolvedSigner{}, errors.Wrap(err, "authenticator: address derivation")
			}
			if recoveredAddr == providedAddr {
				return resolvedSigner{}, authfail.RedundantSignerPublicKey(publicKeyKey(recoveredPub), entry.SignerPublicKey).WithSigner(id)
			}
			return resolvedSigner{}, authfail.PublicKeyMismatch(publicKeyKey(recoveredPub), entry.SignerPublicKey).WithSigner(id)
		}
		return resolvedSigner{id: id, address: providedAddr, publicKey: providedPub, scheme: sch}, nil

	default: // SignerAddress != ""
		if recoverable {
			recAddr, err := signer.AddressFromPublicKey(recoveredPub)
			if err != nil {
				return resolvedSigner{}, errors.Wrap(err, "authenticator: address derivation")
			}
			if recAddr == entry.SignerAddress {
				return resolvedSigner{}, authfail.RedundantSignerAddress(recAddr, entry.SignerAddress).WithSigner(id)
			}
			return resolvedSigner{}, authfail.AddressMismatch(recAddr, entry.SignerAddress).WithSigner(id)
		}
		// TON: address known, public key resolved later via the profile.
		return resolvedSigner{id: id, address: entry.SignerAddress, publicKey: nil, scheme: sch}, nil
	}
}

func entryID(entry envelope.SignatureEntry, index int) string {
	if entry.SignerAddress != "" {
		return entry.SignerAddress
	}
	if entry.SignerPublicKey != "" {
		return entry.SignerPublicKey
	}
	return strconv.Itoa(index)
}

func synthesizeProfile(rs resolvedSigner) *profile.UserProfile {
	alias := profile.AliasForAddress(string(rs.scheme), rs.address)
	p := &profile.UserProfile{Alias: alias, Roles: append([]profile.Role(nil), profile.DefaultRoles...)}
	if rs.scheme == scheme.TON {
		p.TonAddress = rs.address
	} else {
		p.EthAddress = rs.address
	}
	return p
}

func viewOf(p *profile.UserProfile) FirstUserView {
	return FirstUserView{
		Alias:      p.Alias,
		EthAddress: p.EthAddress,
		TonAddress: p.TonAddress,
		Roles:      p.RoleStrings(),
	}
}
