//go:build wireinject

// Package wiring documents and performs the module's constructor
// graph: Config -> signing.Registry + store.Store -> authenticator.Service
// -> authz.Gate -> multisig.Wallet. providers.go lists the core
// providers of that graph for `go run github.com/google/wire/cmd/wire`;
// wire_gen.go builds the graph by hand since no codegen step runs in
// this environment, and additionally wraps the store with the admin
// bootstrap, builds the metrics and picks the replay store from Config,
// none of which this provider set declares.
package wiring

import (
	"github.com/google/wire"

	"github.com/kashguard/msig-auth/internal/authenticator"
	"github.com/kashguard/msig-auth/internal/authz"
	"github.com/kashguard/msig-auth/internal/config"
	"github.com/kashguard/msig-auth/internal/metrics"
	"github.com/kashguard/msig-auth/internal/multisig"
	"github.com/kashguard/msig-auth/internal/signing"
	"github.com/kashguard/msig-auth/internal/store"
)

var ProviderSet = wire.NewSet(
	config.FromEnv,
	signing.NewRegistry,
	store.NewMemory,
	store.NewMemoryReplayStore,
	wire.Bind(new(store.ReplayStore), new(*store.MemoryReplayStore)),
	authenticator.New,
	authz.New,
	multisig.New,
)

func InjectApp() (*App, error) {
	panic(wire.Build(ProviderSet, wire.Struct(new(App), "*")))
}

type App struct {
	Config  *config.Config
	Signers *signing.Registry
	Store   *store.Memory
	Authn   *authenticator.Service
	Gate    *authz.Gate
	Replay  store.ReplayStore
	Wallet  *multisig.Wallet
	Metrics *metrics.Metrics
}
