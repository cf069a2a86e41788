package store_test

import (
	"context"
	"encoding/hex"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kashguard/msig-auth/internal/profile"
	"github.com/kashguard/msig-auth/internal/store"
)

func TestWithAdminBootstrapSynthesizesProfileOnMiss(t *testing.T) {
	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	pubHex := hex.EncodeToString(ethcrypto.FromECDSAPub(&priv.PublicKey))

	admin, err := store.NewAdminBootstrap(pubHex, "")
	require.NoError(t, err)
	require.True(t, admin.Enabled)

	wrapped := store.WithAdminBootstrap(store.NewMemory(), admin)

	p, ok, err := wrapped.GetUserProfile(context.Background(), admin.Address)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, p.Roles, profile.Role("ADMIN"))
}

func TestWithAdminBootstrapPrefersStoredProfile(t *testing.T) {
	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	pubHex := hex.EncodeToString(ethcrypto.FromECDSAPub(&priv.PublicKey))

	admin, err := store.NewAdminBootstrap(pubHex, "")
	require.NoError(t, err)

	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.PutUserProfile(ctx, &profile.UserProfile{Alias: "client|registered", EthAddress: admin.Address}))

	wrapped := store.WithAdminBootstrap(mem, admin)
	p, ok, err := wrapped.GetUserProfile(ctx, admin.Address)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, admin.Alias, p.Alias)
}

func TestNewAdminBootstrapDisabledWhenEmpty(t *testing.T) {
	admin, err := store.NewAdminBootstrap("", "")
	require.NoError(t, err)
	assert.False(t, admin.Enabled)
}

func TestNewAdminBootstrapRejectsBadAliasPrefix(t *testing.T) {
	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	pubHex := hex.EncodeToString(ethcrypto.FromECDSAPub(&priv.PublicKey))

	_, err = store.NewAdminBootstrap(pubHex, "notavalidprefix|x")
	assert.Error(t, err)
}
