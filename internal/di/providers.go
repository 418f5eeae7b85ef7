package di

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"alphabot/internal/handler/api"
	"alphabot/internal/repository"
	"alphabot/internal/service/ledger"
	"alphabot/internal/service/marketdata"
	"alphabot/internal/service/strategy"
	"alphabot/internal/usecase"
	"alphabot/pkg/cache"
	"alphabot/pkg/config"
	xhttp "alphabot/pkg/http"
	"alphabot/pkg/logger"
	"alphabot/pkg/metrics"
	"alphabot/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideCache creates the configured cache backend.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisCache(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
	case "memory":
		return cache.NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// ProvideFetcher creates the configured market data fetcher.
func ProvideFetcher(cfg *config.Config, c cache.Service, l *logger.Logger) (marketdata.Fetcher, error) {
	switch cfg.MarketData.Provider {
	case "binance":
		return marketdata.NewBinance(marketdata.BinanceConfig{
			BaseURL:       cfg.MarketData.Binance.BaseURL,
			Symbol:        cfg.MarketData.Binance.Symbol,
			Interval:      cfg.MarketData.Binance.Interval,
			KlineLimit:    cfg.MarketData.Binance.KlineLimit,
			TickerTTL:     cfg.MarketData.Binance.TickerTTL,
			KlinesTTL:     cfg.MarketData.Binance.KlinesTTL,
			RatePerSecond: cfg.MarketData.Binance.RatePerSecond,
		}, c, l), nil
	case "coingecko":
		return marketdata.NewCoinGecko(marketdata.CoinGeckoConfig{
			BaseURL:       cfg.MarketData.CoinGecko.BaseURL,
			APIKey:        cfg.MarketData.CoinGecko.APIKey,
			CoinID:        cfg.MarketData.CoinGecko.CoinID,
			HistoryDays:   cfg.MarketData.CoinGecko.HistoryDays,
			CacheTTL:      cfg.MarketData.CoinGecko.CacheTTL,
			RatePerSecond: cfg.MarketData.CoinGecko.RatePerSecond,
		}, c, l), nil
	default:
		return nil, fmt.Errorf("unknown market data provider %q", cfg.MarketData.Provider)
	}
}

// Vertex MaaS model identifiers. The gpt-oss model is only served from the
// global endpoint.
const (
	qwenVertexModel    = "qwen/qwen3-coder-480b-a35b-instruct-maas"
	gptOSSVertexModel  = "openai/gpt-oss-120b-maas"
	globalVertexDomain = "aiplatform.googleapis.com"
)

// ProvideStrategyFactory builds strategies by name, for both the configured
// pipeline strategy and on-demand predictions over the API.
func ProvideStrategyFactory(cfg *config.Config, l *logger.Logger) api.StrategyFactory {
	return func(name string) (strategy.Strategy, error) {
		switch strings.ToLower(name) {
		case "simple-ma":
			return strategy.NewSimpleMA(), nil

		case "deepseek":
			if cfg.Strategy.DeepSeek.APIKey == "" {
				return nil, fmt.Errorf("deepseek strategy requires an api key")
			}
			return strategy.NewLLM("deepseek", cfg.Strategy.DeepSeek.Model, &strategy.BearerBackend{
				BaseURL: cfg.Strategy.DeepSeek.BaseURL,
				APIKey:  cfg.Strategy.DeepSeek.APIKey,
			}, l), nil

		case "qwen-vertex":
			backend, err := strategy.NewGoogleBackend(context.Background(),
				cfg.Strategy.Vertex.ProjectID, cfg.Strategy.Vertex.Location, cfg.Strategy.Vertex.Domain)
			if err != nil {
				return nil, err
			}
			return strategy.NewLLM("qwen-vertex", qwenVertexModel, backend, l), nil

		case "gpt-oss-vertex":
			backend, err := strategy.NewGoogleBackend(context.Background(),
				cfg.Strategy.Vertex.ProjectID, "global", globalVertexDomain)
			if err != nil {
				return nil, err
			}
			return strategy.NewLLM("gpt-oss-vertex", gptOSSVertexModel, backend, l), nil

		default:
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
	}
}

// ProvideStrategy creates the strategy the orchestrator runs on schedule.
func ProvideStrategy(cfg *config.Config, factory api.StrategyFactory) (strategy.Strategy, error) {
	return factory(cfg.Strategy.Type)
}

// ProvideLedgerClient creates the ledger client when an endpoint is
// configured. Without one the orchestrator skips submission.
func ProvideLedgerClient(cfg *config.Config, l *logger.Logger) *ledger.Client {
	if cfg.Ledger.Endpoint == "" {
		return nil
	}
	return ledger.NewClient(ledger.Config{
		Endpoint:      cfg.Ledger.Endpoint,
		ApplicationID: cfg.Ledger.ApplicationID,
		ChainID:       cfg.Ledger.ChainID,
		Timeout:       cfg.Ledger.Timeout,
	}, l)
}

// ProvideDatabase opens the pgx pool when the database is enabled.
func ProvideDatabase(cfg *config.Config) (*pgxpool.Pool, error) {
	if !cfg.Database.Enabled {
		return nil, nil
	}
	return repository.Connect(context.Background(), cfg.Database.URL)
}

// ProvideHistoryRepo creates the signal history repository when a database
// pool exists, ensuring its schema.
func ProvideHistoryRepo(pool *pgxpool.Pool) (*repository.SignalHistoryRepo, error) {
	if pool == nil {
		return nil, nil
	}
	repo := repository.NewSignalHistoryRepo(pool)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("signal history schema: %w", err)
	}
	return repo, nil
}

// ProvideOrchestrator creates the prediction loop.
func ProvideOrchestrator(
	cfg *config.Config,
	fetcher marketdata.Fetcher,
	strat strategy.Strategy,
	ledgerClient *ledger.Client,
	history *repository.SignalHistoryRepo,
	rec *metrics.Recorder,
	l *logger.Logger,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(fetcher, strat, ledgerClient, history, rec, l, cfg.Orchestrator.Interval)
}

// ProvideHandler creates the HTTP API handler.
func ProvideHandler(
	o *usecase.Orchestrator,
	factory api.StrategyFactory,
	ledgerClient *ledger.Client,
	history *repository.SignalHistoryRepo,
	l *logger.Logger,
) xhttp.Handler {
	return api.NewHandler(o, factory, ledgerClient, history, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	o *usecase.Orchestrator,
	handler xhttp.Handler,
	cacheSvc cache.Service,
	pool *pgxpool.Pool,
) *server.App {
	return server.New(cfg, l, o, handler, cacheSvc, pool)
}
