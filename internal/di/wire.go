//go:build wireinject
// +build wireinject

package di

import (
	"alphabot/pkg/config"
	"alphabot/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideCache,
		ProvideDatabase,
		ProvideHistoryRepo,

		// Pipeline components
		ProvideFetcher,
		ProvideStrategyFactory,
		ProvideStrategy,
		ProvideLedgerClient,

		// Use cases and HTTP surface
		ProvideOrchestrator,
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
