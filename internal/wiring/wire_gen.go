//go:build !wireinject

// Package wiring: wire_gen.go is the hand-written equivalent of what
// `wire` would generate from providers.go. No codegen step runs in
// this environment, so this construction is maintained by hand.
package wiring

import (
	"github.com/redis/go-redis/v9"

	"github.com/kashguard/msig-auth/internal/authenticator"
	"github.com/kashguard/msig-auth/internal/authz"
	"github.com/kashguard/msig-auth/internal/config"
	"github.com/kashguard/msig-auth/internal/metrics"
	"github.com/kashguard/msig-auth/internal/multisig"
	"github.com/kashguard/msig-auth/internal/signing"
	"github.com/kashguard/msig-auth/internal/store"
)

// App is the fully wired set of collaborators the demo CLI (and any
// future production entrypoint) needs.
type App struct {
	Config  *config.Config
	Signers *signing.Registry
	Store   store.Store
	Authn   *authenticator.Service
	Gate    *authz.Gate
	Replay  store.ReplayStore
	Wallet  *multisig.Wallet
	Metrics *metrics.Metrics
}

// InjectApp constructs the App graph against an in-memory store, the
// shape production wiring swaps for a ledger-backed store.Store.
func InjectApp() (*App, error) {
	cfg := config.FromEnv()

	admin, err := store.NewAdminBootstrap(cfg.DevAdminPublicKey, cfg.DevAdminUserID)
	if err != nil {
		return nil, err
	}

	mem := store.NewMemory()
	st := store.WithAdminBootstrap(mem, admin)

	signers := signing.NewRegistry()
	m := metrics.NewUnregistered(cfg.MetricsNamespace)

	var replay store.ReplayStore
	if cfg.UseRedisReplay {
		replay = store.NewRedisReplayStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}))
	} else {
		replay = store.NewMemoryReplayStore()
	}

	authn := authenticator.New(st, signers, cfg, nil, m)
	gate := authz.New()
	wallet := multisig.New(st, st, authn, gate, replay, m)

	return &App{
		Config:  cfg,
		Signers: signers,
		Store:   st,
		Authn:   authn,
		Gate:    gate,
		Replay:  replay,
		Wallet:  wallet,
		Metrics: m,
	}, nil
}
