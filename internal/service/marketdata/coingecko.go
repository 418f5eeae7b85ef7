package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"alphabot/internal/domain/models"
	"alphabot/internal/service/ratelimit"
	"alphabot/pkg/cache"
	xhttp "alphabot/pkg/http"
	"alphabot/pkg/logger"
	"alphabot/pkg/retry"

	"golang.org/x/sync/errgroup"
)

// CoinGeckoConfig configures the aggregator-style fetcher.
type CoinGeckoConfig struct {
	BaseURL       string
	APIKey        string
	CoinID        string
	HistoryDays   int
	CacheTTL      time.Duration
	RatePerSecond float64
}

// CoinGecko fetches a simple-price object and a day-granular price/volume
// series and normalizes them into a MarketSnapshot. Unlike the exchange
// provider it carries a market cap but no OHLC detail.
type CoinGecko struct {
	cfg     CoinGeckoConfig
	client  *xhttp.Client
	cache   cache.Service
	limiter *ratelimit.Limiter
	logger  *logger.Logger
	retry   retry.Config
}

// NewCoinGecko creates the aggregator-style market data fetcher.
func NewCoinGecko(cfg CoinGeckoConfig, c cache.Service, l *logger.Logger) *CoinGecko {
	return &CoinGecko{
		cfg:     cfg,
		client:  xhttp.NewClient(xhttp.WithTimeout(15 * time.Second)),
		cache:   c,
		limiter: ratelimit.New(),
		logger:  l,
		retry: retry.Config{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    10 * time.Second,
		},
	}
}

func (g *CoinGecko) Name() string { return "coingecko" }

type cgPrice struct {
	USD          float64 `json:"usd"`
	USDMarketCap float64 `json:"usd_market_cap"`
	USD24hVol    float64 `json:"usd_24h_vol"`
	USD24hChange float64 `json:"usd_24h_change"`
}

type cgHistory struct {
	Prices       [][2]float64 `json:"prices"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

func (g *CoinGecko) headers() map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if g.cfg.APIKey != "" {
		h["x-cg-demo-api-key"] = g.cfg.APIKey
	}
	return h
}

func (g *CoinGecko) simplePrice(ctx context.Context) (*cgPrice, error) {
	key := "coingecko:price:" + g.cfg.CoinID
	if cached, err := cache.GetTyped[cgPrice](ctx, g.cache, key); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		g.logger.Warn("price cache read failed", logger.Error(err))
	}

	p, err := retry.Do(ctx, g.retry, func(ctx context.Context) (cgPrice, error) {
		var out map[string]cgPrice
		if g.cfg.RatePerSecond > 0 && !g.limiter.Allow("coingecko", g.cfg.RatePerSecond, g.cfg.RatePerSecond) {
			return cgPrice{}, fmt.Errorf("coingecko rate limited")
		}
		err := g.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodGet,
			URL:     g.cfg.BaseURL + "/simple/price",
			Headers: g.headers(),
			QueryParams: map[string]string{
				"ids":                 g.cfg.CoinID,
				"vs_currencies":       "usd",
				"include_market_cap":  "true",
				"include_24hr_vol":    "true",
				"include_24hr_change": "true",
			},
		}, &out)
		if err != nil {
			return cgPrice{}, err
		}
		price, ok := out[g.cfg.CoinID]
		if !ok {
			return cgPrice{}, fmt.Errorf("coin %q missing from response", g.cfg.CoinID)
		}
		if price.USD <= 0 {
			return cgPrice{}, fmt.Errorf("invalid price %f for %q", price.USD, g.cfg.CoinID)
		}
		return price, nil
	})
	if err != nil {
		return nil, fmt.Errorf("coingecko price: %w", err)
	}

	if err := cache.SetTyped(ctx, g.cache, key, p, g.cfg.CacheTTL); err != nil {
		g.logger.Warn("price cache write failed", logger.Error(err))
	}
	return &p, nil
}

func (g *CoinGecko) history(ctx context.Context) (*cgHistory, error) {
	key := fmt.Sprintf("coingecko:history:%s:%d", g.cfg.CoinID, g.cfg.HistoryDays)
	if cached, err := cache.GetTyped[cgHistory](ctx, g.cache, key); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		g.logger.Warn("history cache read failed", logger.Error(err))
	}

	h, err := retry.Do(ctx, g.retry, func(ctx context.Context) (cgHistory, error) {
		var out cgHistory
		if g.cfg.RatePerSecond > 0 && !g.limiter.Allow("coingecko", g.cfg.RatePerSecond, g.cfg.RatePerSecond) {
			return out, fmt.Errorf("coingecko rate limited")
		}
		err := g.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodGet,
			URL:     fmt.Sprintf("%s/coins/%s/market_chart", g.cfg.BaseURL, g.cfg.CoinID),
			Headers: g.headers(),
			QueryParams: map[string]string{
				"vs_currency": "usd",
				"days":        strconv.Itoa(g.cfg.HistoryDays),
			},
		}, &out)
		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("coingecko history: %w", err)
	}
	if len(h.Prices) == 0 {
		return nil, fmt.Errorf("coingecko history: empty series")
	}

	if err := cache.SetTyped(ctx, g.cache, key, h, g.cfg.CacheTTL); err != nil {
		g.logger.Warn("history cache write failed", logger.Error(err))
	}
	return &h, nil
}

// Snapshot fetches the price object and the history series concurrently and
// normalizes both into one MarketSnapshot. Volume is joined onto price points
// by exact timestamp match where available.
func (g *CoinGecko) Snapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	var (
		price *cgPrice
		hist  *cgHistory
	)

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		price, err = g.simplePrice(gctx)
		return err
	})
	eg.Go(func() error {
		var err error
		hist, err = g.history(gctx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("coingecko snapshot: %w", err)
	}

	volumeAt := make(map[int64]float64, len(hist.TotalVolumes))
	for _, v := range hist.TotalVolumes {
		volumeAt[int64(v[0])] = v[1]
	}

	history := make([]models.PricePoint, 0, len(hist.Prices))
	for _, p := range hist.Prices {
		ts := int64(p[0])
		history = append(history, models.PricePoint{
			Timestamp: ts,
			Price:     p[1],
			Volume:    volumeAt[ts],
		})
	}

	return &models.MarketSnapshot{
		Timestamp:    time.Now().UnixMilli(),
		CurrentPrice: price.USD,
		PriceHistory: history,
		Volume24h:    price.USD24hVol,
		Change24h:    price.USD24hChange,
		MarketCap:    price.USDMarketCap,
	}, nil
}
