package authenticator_test

import (
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/kashguard/msig-auth/internal/authenticator"
	"github.com/kashguard/msig-auth/internal/authfail"
	"github.com/kashguard/msig-auth/internal/canonical"
	"github.com/kashguard/msig-auth/internal/config"
	"github.com/kashguard/msig-auth/internal/profile"
	"github.com/kashguard/msig-auth/internal/signing"
	"github.com/kashguard/msig-auth/internal/store"
)

type ethKey struct {
	priv    *ecdsa.PrivateKey
	pub     []byte // uncompressed
	address string
}

func newETHKey(t *testing.T) ethKey {
	t.Helper()
	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	pub := ethcrypto.FromECDSAPub(&priv.PublicKey)
	addr, err := (signing.ETH{}).AddressFromPublicKey(pub)
	require.NoError(t, err)
	return ethKey{priv: priv, pub: pub, address: addr}
}

type tonKey struct {
	pub     ed25519.PublicKey
	priv    ed25519.PrivateKey
	address string
}

func newTONKey(t *testing.T) tonKey {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	addr, err := (signing.TON{}).AddressFromPublicKey(pub)
	require.NoError(t, err)
	return tonKey{pub: pub, priv: priv, address: addr}
}

// sigSpec describes one signature entry to attach to a built envelope.
type sigSpec struct {
	sig             []byte
	signerPublicKey string
	signerAddress   string
}

// buildEnvelope marshals fields (without any signature data), derives the
// canonical payload, lets sign produce one sigSpec per declared signer, and
// returns the final envelope bytes with a "signatures" list attached.
func buildEnvelope(t *testing.T, fields map[string]interface{}, prefix string, sign func(payload []byte) []sigSpec) []byte {
	t.Helper()
	base, err := json.Marshal(fields)
	require.NoError(t, err)
	payload, err := canonical.Payload(base, prefix)
	require.NoError(t, err)

	specs := sign(payload)
	entries := make([]map[string]string, len(specs))
	for i, s := range specs {
		e := map[string]string{"signature": encodeSig(fields, s.sig)}
		if s.signerPublicKey != "" {
			e["signerPublicKey"] = s.signerPublicKey
		}
		if s.signerAddress != "" {
			e["signerAddress"] = s.signerAddress
		}
		entries[i] = e
	}
	fields["signatures"] = entries
	if prefix != "" {
		fields["prefix"] = prefix
	}
	out, err := json.Marshal(fields)
	require.NoError(t, err)
	return out
}

func encodeSig(fields map[string]interface{}, sig []byte) string {
	if fields["signing"] == "TON" {
		return base64.StdEncoding.EncodeToString(sig)
	}
	return hex.EncodeToString(sig)
}

func newService(t *testing.T, st store.Store, cfg *config.Config) *authenticator.Service {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	return authenticator.New(st, signing.NewRegistry(), cfg, nil, nil)
}

func ethSign(t *testing.T, k ethKey) func(payload []byte) []byte {
	return func(payload []byte) []byte {
		sig, err := (signing.ETH{}).Sign(ethcrypto.FromECDSA(k.priv), payload)
		require.NoError(t, err)
		return sig
	}
}

func TestAuthenticateAggregatesTwoRecoverableSigners(t *testing.T) {
	a := newETHKey(t)
	b := newETHKey(t)
	st := store.NewMemory()
	ctx := context.Background()

	env := buildEnvelope(t, map[string]interface{}{"uniqueKey": "k1"}, "", func(payload []byte) []sigSpec {
		sigA, err := (signing.ETH{}).Sign(ethcrypto.FromECDSA(a.priv), payload)
		require.NoError(t, err)
		sigB, err := (signing.ETH{}).Sign(ethcrypto.FromECDSA(b.priv), payload)
		require.NoError(t, err)
		return []sigSpec{{sig: sigA}, {sig: sigB}}
	})

	svc := newService(t, st, &config.Config{AllowNonRegisteredUsers: true})
	res, err := svc.Authenticate(ctx, env, 2)
	require.NoError(t, err)
	require.Len(t, res.Users, 2)
	assert.Equal(t, "eth|"+a.address, res.Users[0].Alias)
	assert.Equal(t, "eth|"+b.address, res.Users[1].Alias)
	assert.Equal(t, res.Users[0].Alias, res.FirstUserView.Alias)
	assert.Equal(t, 2, res.MinSignatures)
}

func TestAuthenticateDetectsMismatchedDeclaredSignerAddress(t *testing.T) {
	a := newETHKey(t)
	other := newETHKey(t)
	st := store.NewMemory()

	env := buildEnvelope(t, map[string]interface{}{"uniqueKey": "k2"}, "", func(payload []byte) []sigSpec {
		sig, err := (signing.ETH{}).Sign(ethcrypto.FromECDSA(a.priv), payload)
		require.NoError(t, err)
		return []sigSpec{{sig: sig, signerAddress: other.address}}
	})

	svc := newService(t, st, nil)
	_, err := svc.Authenticate(context.Background(), env, 1)

	var fail *authfail.Error
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, authfail.KindAddressMismatch, fail.Kind)
	assert.Equal(t, other.address, fail.Signer)
	assert.Equal(t, a.address, fail.Recovered)
}

func TestAuthenticateRejectsDuplicateSigner(t *testing.T) {
	a := newETHKey(t)
	st := store.NewMemory()

	env := buildEnvelope(t, map[string]interface{}{"uniqueKey": "k3"}, "", func(payload []byte) []sigSpec {
		sig, err := (signing.ETH{}).Sign(ethcrypto.FromECDSA(a.priv), payload)
		require.NoError(t, err)
		return []sigSpec{{sig: sig}, {sig: sig}}
	})

	svc := newService(t, st, &config.Config{AllowNonRegisteredUsers: true})
	_, err := svc.Authenticate(context.Background(), env, 1)

	var fail *authfail.Error
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, authfail.KindDuplicateSigner, fail.Kind)
	assert.Equal(t, a.address, fail.Address)
}

func TestAuthenticateRejectsEmptyEnvelopeWithoutServiceCaller(t *testing.T) {
	st := store.NewMemory()
	svc := newService(t, st, nil)

	_, err := svc.Authenticate(context.Background(), []byte(`{"uniqueKey":"k4"}`), 1)

	var fail *authfail.Error
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, authfail.KindMissingSignature, fail.Kind)
}

type stubProposal struct {
	target string
	err    error
}

func (s stubProposal) GetSignedProposal(_ context.Context, _ string) (string, error) {
	return s.target, s.err
}

func TestAuthenticateOriginChaincodeMatchingProposal(t *testing.T) {
	st := store.NewMemory()
	svc := authenticator.New(st, signing.NewRegistry(), &config.Config{}, stubProposal{target: "tokenmgmt"}, nil)

	res, err := svc.Authenticate(context.Background(), []byte(`{"signerAddress":"service|tokenmgmt"}`), 1)
	require.NoError(t, err)
	assert.Equal(t, "service|tokenmgmt", res.FirstUserView.Alias)
	assert.Nil(t, res.Users)
}

func TestAuthenticateOriginChaincodeMismatchedTarget(t *testing.T) {
	st := store.NewMemory()
	svc := authenticator.New(st, signing.NewRegistry(), &config.Config{}, stubProposal{target: "otherchaincode"}, nil)

	_, err := svc.Authenticate(context.Background(), []byte(`{"signerAddress":"service|tokenmgmt"}`), 1)

	var fail *authfail.Error
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, authfail.KindChaincodeAuthorization, fail.Kind)
}

func TestAuthenticateRedundantSignerPublicKey(t *testing.T) {
	a := newETHKey(t)
	st := store.NewMemory()

	env := buildEnvelope(t, map[string]interface{}{"uniqueKey": "k5"}, "", func(payload []byte) []sigSpec {
		sig, err := (signing.ETH{}).Sign(ethcrypto.FromECDSA(a.priv), payload)
		require.NoError(t, err)
		return []sigSpec{{sig: sig, signerPublicKey: hex.EncodeToString(a.pub)}}
	})

	svc := newService(t, st, &config.Config{AllowNonRegisteredUsers: true})
	_, err := svc.Authenticate(context.Background(), env, 1)

	var fail *authfail.Error
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, authfail.KindRedundantSignerPublicKey, fail.Kind)
}

func TestAuthenticateRedundantSignerAddress(t *testing.T) {
	a := newETHKey(t)
	st := store.NewMemory()

	env := buildEnvelope(t, map[string]interface{}{"uniqueKey": "k6"}, "", func(payload []byte) []sigSpec {
		sig, err := (signing.ETH{}).Sign(ethcrypto.FromECDSA(a.priv), payload)
		require.NoError(t, err)
		return []sigSpec{{sig: sig, signerAddress: a.address}}
	})

	svc := newService(t, st, &config.Config{AllowNonRegisteredUsers: true})
	_, err := svc.Authenticate(context.Background(), env, 1)

	var fail *authfail.Error
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, authfail.KindRedundantSignerAddress, fail.Kind)
}

func TestAuthenticatePublicKeyMismatch(t *testing.T) {
	a := newETHKey(t)
	other := newETHKey(t)
	st := store.NewMemory()

	env := buildEnvelope(t, map[string]interface{}{"uniqueKey": "k7"}, "", func(payload []byte) []sigSpec {
		sig, err := (signing.ETH{}).Sign(ethcrypto.FromECDSA(a.priv), payload)
		require.NoError(t, err)
		return []sigSpec{{sig: sig, signerPublicKey: hex.EncodeToString(other.pub)}}
	})

	svc := newService(t, st, &config.Config{AllowNonRegisteredUsers: true})
	_, err := svc.Authenticate(context.Background(), env, 1)

	var fail *authfail.Error
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, authfail.KindPublicKeyMismatch, fail.Kind)
}

func TestAuthenticateTONRejectsSignatureWithNeitherAddressNorPublicKey(t *testing.T) {
	k := newTONKey(t)
	st := store.NewMemory()

	env := buildEnvelope(t, map[string]interface{}{"signing": "TON", "uniqueKey": "k8"}, "", func(payload []byte) []sigSpec {
		sig, err := (signing.TON{}).Sign(k.priv.Seed(), payload)
		require.NoError(t, err)
		return []sigSpec{{sig: sig}}
	})

	svc := newService(t, st, nil)
	_, err := svc.Authenticate(context.Background(), env, 1)

	var fail *authfail.Error
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, authfail.KindMissingSigner, fail.Kind)
}

func TestAuthenticateTONResolvesViaSignerAddressAndStoredKey(t *testing.T) {
	k := newTONKey(t)
	st := store.NewMemory()
	ctx := context.Background()

	alias := "ton|" + k.address
	require.NoError(t, st.PutUserProfile(ctx, &profile.UserProfile{
		Alias:      alias,
		TonAddress: k.address,
		Roles:      []profile.Role{"USER"},
	}))
	require.NoError(t, st.PutPublicKey(ctx, &profile.PublicKeyRecord{
		Alias:     alias,
		PublicKey: base64.StdEncoding.EncodeToString(k.pub),
		Signing:   "TON",
	}))

	env := buildEnvelope(t, map[string]interface{}{"signing": "TON", "uniqueKey": "k9"}, "", func(payload []byte) []sigSpec {
		sig, err := (signing.TON{}).Sign(k.priv.Seed(), payload)
		require.NoError(t, err)
		return []sigSpec{{sig: sig, signerAddress: k.address}}
	})

	svc := newService(t, st, nil)
	res, err := svc.Authenticate(ctx, env, 1)
	require.NoError(t, err)
	require.Len(t, res.Users, 1)
	assert.Equal(t, alias, res.Users[0].Alias)
}

func TestAuthenticateRejectsNonRegisteredUserWhenSynthesisDisabled(t *testing.T) {
	a := newETHKey(t)
	st := store.NewMemory()

	env := buildEnvelope(t, map[string]interface{}{"uniqueKey": "k10"}, "", func(payload []byte) []sigSpec {
		sig, err := (signing.ETH{}).Sign(ethcrypto.FromECDSA(a.priv), payload)
		require.NoError(t, err)
		return []sigSpec{{sig: sig}}
	})

	svc := newService(t, st, &config.Config{AllowNonRegisteredUsers: false})
	_, err := svc.Authenticate(context.Background(), env, 1)

	var fail *authfail.Error
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, authfail.KindUserNotRegistered, fail.Kind)
	assert.Equal(t, a.address, fail.UserID)
}

func TestAuthenticateTONMissingStoredPublicKeyRecord(t *testing.T) {
	k := newTONKey(t)
	st := store.NewMemory()
	ctx := context.Background()

	alias := "ton|" + k.address
	require.NoError(t, st.PutUserProfile(ctx, &profile.UserProfile{
		Alias:      alias,
		TonAddress: k.address,
	}))

	env := buildEnvelope(t, map[string]interface{}{"signing": "TON", "uniqueKey": "k11"}, "", func(payload []byte) []sigSpec {
		sig, err := (signing.TON{}).Sign(k.priv.Seed(), payload)
		require.NoError(t, err)
		return []sigSpec{{sig: sig, signerAddress: k.address}}
	})

	svc := newService(t, st, nil)
	_, err := svc.Authenticate(ctx, env, 1)

	var fail *authfail.Error
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, authfail.KindPkMissing, fail.Kind)
	assert.Equal(t, alias, fail.Alias)
}

func TestAuthenticateTONFailsVerificationAgainstWrongStoredKey(t *testing.T) {
	k := newTONKey(t)
	wrong := newTONKey(t)
	st := store.NewMemory()
	ctx := context.Background()

	alias := "ton|" + k.address
	require.NoError(t, st.PutUserProfile(ctx, &profile.UserProfile{Alias: alias, TonAddress: k.address}))
	require.NoError(t, st.PutPublicKey(ctx, &profile.PublicKeyRecord{
		Alias:     alias,
		PublicKey: base64.StdEncoding.EncodeToString(wrong.pub),
		Signing:   "TON",
	}))

	env := buildEnvelope(t, map[string]interface{}{"signing": "TON", "uniqueKey": "k12"}, "", func(payload []byte) []sigSpec {
		sig, err := (signing.TON{}).Sign(k.priv.Seed(), payload)
		require.NoError(t, err)
		return []sigSpec{{sig: sig, signerAddress: k.address}}
	})

	svc := newService(t, st, nil)
	_, err := svc.Authenticate(ctx, env, 1)

	var fail *authfail.Error
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, authfail.KindPkInvalidSignature, fail.Kind)
	assert.Equal(t, alias, fail.Alias)
}

func TestAuthenticateDedupesByAliasKeepingFirstOccurrence(t *testing.T) {
	a := newETHKey(t)
	b := newETHKey(t)
	st := store.NewMemory()
	ctx := context.Background()

	const sharedAlias = "client|shared"
	require.NoError(t, st.PutUserProfile(ctx, &profile.UserProfile{Alias: sharedAlias, EthAddress: a.address}))
	require.NoError(t, st.PutUserProfile(ctx, &profile.UserProfile{Alias: sharedAlias, EthAddress: b.address}))

	env := buildEnvelope(t, map[string]interface{}{"uniqueKey": "k13"}, "", func(payload []byte) []sigSpec {
		sigA, err := (signing.ETH{}).Sign(ethcrypto.FromECDSA(a.priv), payload)
		require.NoError(t, err)
		sigB, err := (signing.ETH{}).Sign(ethcrypto.FromECDSA(b.priv), payload)
		require.NoError(t, err)
		return []sigSpec{{sig: sigA}, {sig: sigB}}
	})

	svc := newService(t, st, nil)
	res, err := svc.Authenticate(ctx, env, 2)
	require.NoError(t, err)
	require.Len(t, res.Users, 1)
	assert.Equal(t, sharedAlias, res.Users[0].Alias)
}

func TestAuthenticateDefaultsMinSignaturesToOne(t *testing.T) {
	a := newETHKey(t)
	st := store.NewMemory()

	env := buildEnvelope(t, map[string]interface{}{"uniqueKey": "k14"}, "", func(payload []byte) []sigSpec {
		sig, err := (signing.ETH{}).Sign(ethcrypto.FromECDSA(a.priv), payload)
		require.NoError(t, err)
		return []sigSpec{{sig: sig}}
	})

	svc := newService(t, st, &config.Config{AllowNonRegisteredUsers: true})
	res, err := svc.Authenticate(context.Background(), env, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.MinSignatures)
}

func TestAuthenticateDomainPrefixChangesSignedPayload(t *testing.T) {
	a := newETHKey(t)
	st := store.NewMemory()

	env := buildEnvelope(t, map[string]interface{}{"uniqueKey": "k15"}, "msig-auth/v1:", func(payload []byte) []sigSpec {
		sig, err := (signing.ETH{}).Sign(ethcrypto.FromECDSA(a.priv), payload)
		require.NoError(t, err)
		return []sigSpec{{sig: sig}}
	})

	svc := newService(t, st, &config.Config{AllowNonRegisteredUsers: true})
	res, err := svc.Authenticate(context.Background(), env, 1)
	require.NoError(t, err)
	assert.Equal(t, "eth|"+a.address, res.Users[0].Alias)
}
