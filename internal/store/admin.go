package store

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"

	"github.com/kashguard/msig-auth/internal/profile"
	"github.com/kashguard/msig-auth/internal/signing"
)

// AdminBootstrap is the debug-mode admin recovery affordance described
// in spec §6/§9: a public key (and optional alias override) loaded
// from the environment. A profile synthesized through it is never
// persisted — it exists only for the current request.
type AdminBootstrap struct {
	Enabled   bool
	PublicKey string // normalized non-compact hex
	Address   string // eth address derived from PublicKey
	Alias     string // DEV_ADMIN_USER_ID, or "eth|<address>" by default
}

// NewAdminBootstrap builds an AdminBootstrap from the raw environment
// values. An empty pubKeyRaw disables the affordance entirely.
func NewAdminBootstrap(pubKeyRaw, aliasOverride string) (*AdminBootstrap, error) {
	if pubKeyRaw == "" {
		return &AdminBootstrap{Enabled: false}, nil
	}

	normalized, err := signing.NormalizeETHPublicKey([]byte(pubKeyRaw))
	if err != nil {
		return nil, errors.Wrap(err, "admin bootstrap: invalid DEV_ADMIN_PUBLIC_KEY")
	}
	rawPub, err := hex.DecodeString(normalized)
	if err != nil {
		return nil, errors.Wrap(err, "admin bootstrap: normalized public key is not valid hex")
	}
	address, err := (signing.ETH{}).AddressFromPublicKey(rawPub)
	if err != nil {
		return nil, errors.Wrap(err, "admin bootstrap: failed to derive address")
	}

	alias := aliasOverride
	if alias == "" {
		alias = "eth|" + address
	} else if !strings.HasPrefix(alias, "eth|") && !strings.HasPrefix(alias, "client|") {
		return nil, errors.New("admin bootstrap: DEV_ADMIN_USER_ID must begin with eth| or client|")
	}

	return &AdminBootstrap{
		Enabled:   true,
		PublicKey: normalized,
		Address:   address,
		Alias:     alias,
	}, nil
}

func (a *AdminBootstrap) matches(address string) bool {
	return a != nil && a.Enabled && address == a.Address
}

func (a *AdminBootstrap) syntheticProfile() *profile.UserProfile {
	return &profile.UserProfile{
		Alias:      a.Alias,
		EthAddress: a.Address,
		Roles:      append([]profile.Role(nil), profile.AdminRoles...),
	}
}

func (a *AdminBootstrap) syntheticPublicKey() *profile.PublicKeyRecord {
	return &profile.PublicKeyRecord{
		Alias:     a.Alias,
		PublicKey: a.PublicKey,
		Signing:   "ETH",
	}
}

// WithAdminBootstrap decorates inner so that a lookup for the admin's
// alias/address falls back to a synthesized record when inner has
// none on file. Synthesized records are never written back to inner.
func WithAdminBootstrap(inner Store, admin *AdminBootstrap) Store {
	if admin == nil || !admin.Enabled {
		return inner
	}
	return &adminDecorator{inner: inner, admin: admin}
}

type adminDecorator struct {
	inner Store
	admin *AdminBootstrap
}

func (d *adminDecorator) GetPublicKey(ctx context.Context, alias string) (*profile.PublicKeyRecord, bool, error) {
	rec, ok, err := d.inner.GetPublicKey(ctx, alias)
	if err != nil || ok {
		return rec, ok, err
	}
	if alias == d.admin.Alias {
		return d.admin.syntheticPublicKey(), true, nil
	}
	return nil, false, nil
}

func (d *adminDecorator) PutPublicKey(ctx context.Context, rec *profile.PublicKeyRecord) error {
	return d.inner.PutPublicKey(ctx, rec)
}

func (d *adminDecorator) GetUserProfile(ctx context.Context, address string) (*profile.UserProfile, bool, error) {
	p, ok, err := d.inner.GetUserProfile(ctx, address)
	if err != nil || ok {
		return p, ok, err
	}
	if d.admin.matches(address) {
		return d.admin.syntheticProfile(), true, nil
	}
	return nil, false, nil
}

func (d *adminDecorator) GetUserProfiles(ctx context.Context, addresses []string) ([]*profile.UserProfile, error) {
	found, err := d.inner.GetUserProfiles(ctx, addresses)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(found))
	for _, p := range found {
		seen[p.EthAddress] = true
		seen[p.TonAddress] = true
	}
	for _, addr := range addresses {
		if !seen[addr] && d.admin.matches(addr) {
			found = append(found, d.admin.syntheticProfile())
		}
	}
	return found, nil
}

func (d *adminDecorator) PutUserProfile(ctx context.Context, p *profile.UserProfile) error {
	return d.inner.PutUserProfile(ctx, p)
}

func (d *adminDecorator) InvalidateUserProfile(ctx context.Context, address string) error {
	return d.inner.InvalidateUserProfile(ctx, address)
}

func (d *adminDecorator) GetWallet(ctx context.Context, walletID string) (*WalletState, bool, error) {
	return d.inner.GetWallet(ctx, walletID)
}

func (d *adminDecorator) PutWallet(ctx context.Context, w *WalletState) error {
	return d.inner.PutWallet(ctx, w)
}

func (d *adminDecorator) SetEvent(name string, payload []byte) error {
	return d.inner.SetEvent(name, payload)
}
