package store

import (
	"context"
	"sync"

	"github.com/kashguard/msig-auth/internal/profile"
)

// Memory is an in-process Store, guarded by a mutex so the demo CLI and
// tests behave under -race. It stands in for the ledger's own MVCC
// discipline (spec §5), which this package does not otherwise model.
type Memory struct {
	mu       sync.RWMutex
	pubKeys  map[string]*profile.PublicKeyRecord
	profiles map[string]*profile.UserProfile
	wallets  map[string]*WalletState
	events   []Event
}

// Event is one SetEvent call recorded by Memory, for assertions in
// tests (production events are observed on commit by the ledger's own
// side channel, which this package does not implement).
type Event struct {
	Name    string
	Payload []byte
}

func NewMemory() *Memory {
	return &Memory{
		pubKeys:  map[string]*profile.PublicKeyRecord{},
		profiles: map[string]*profile.UserProfile{},
		wallets:  map[string]*WalletState{},
	}
}

func (m *Memory) GetPublicKey(_ context.Context, alias string) (*profile.PublicKeyRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.pubKeys[alias]
	return rec, ok, nil
}

func (m *Memory) PutPublicKey(_ context.Context, rec *profile.PublicKeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pubKeys[rec.Alias] = rec
	return nil
}

func (m *Memory) GetUserProfile(_ context.Context, address string) (*profile.UserProfile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[address]
	return p, ok, nil
}

func (m *Memory) GetUserProfiles(_ context.Context, addresses []string) ([]*profile.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*profile.UserProfile, 0, len(addresses))
	for _, addr := range addresses {
		if p, ok := m.profiles[addr]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) PutUserProfile(_ context.Context, p *profile.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := p.EthAddress
	if key == "" {
		key = p.TonAddress
	}
	m.profiles[key] = p
	return nil
}

func (m *Memory) InvalidateUserProfile(_ context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[address] = &profile.UserProfile{
		Alias:      profile.InvalidatedAlias,
		EthAddress: profile.InvalidatedAddress,
	}
	return nil
}

func (m *Memory) GetWallet(_ context.Context, walletID string) (*WalletState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[walletID]
	if !ok {
		return nil, false, nil
	}
	return w.Clone(), true, nil
}

func (m *Memory) PutWallet(_ context.Context, w *WalletState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[w.WalletID] = w.Clone()
	return nil
}

func (m *Memory) SetEvent(name string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Event{Name: name, Payload: append([]byte(nil), payload...)})
	return nil
}

// Events returns a snapshot of every event recorded so far, in
// emission order.
func (m *Memory) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Event(nil), m.events...)
}
