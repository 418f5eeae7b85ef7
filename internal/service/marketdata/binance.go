package marketdata

import (
	"context"
	"encoding/json"
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

// BinanceConfig configures the exchange-style fetcher.
type BinanceConfig struct {
	BaseURL       string
	Symbol        string
	Interval      string
	KlineLimit    int
	TickerTTL     time.Duration
	KlinesTTL     time.Duration
	RatePerSecond float64
}

// Binance fetches a 24h ticker and an OHLC candle series and normalizes them
// into a MarketSnapshot. Binance exposes no market cap.
type Binance struct {
	cfg     BinanceConfig
	client  *xhttp.Client
	cache   cache.Service
	limiter *ratelimit.Limiter
	logger  *logger.Logger
	retry   retry.Config
}

// NewBinance creates the exchange-style market data fetcher.
func NewBinance(cfg BinanceConfig, c cache.Service, l *logger.Logger) *Binance {
	return &Binance{
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

func (b *Binance) Name() string { return "binance" }

// ticker24h mirrors GET /api/v3/ticker/24hr. Numeric fields arrive as strings.
type ticker24h struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
}

// kline is one element of the GET /api/v3/klines response: a 12-element tuple
// where prices and volumes are strings and the two timestamps are numbers.
type kline struct {
	OpenTime  int64
	Open      string
	High      string
	Low       string
	Close     string
	Volume    string
	CloseTime int64
}

func (k *kline) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 7 {
		return fmt.Errorf("kline tuple has %d elements, want at least 7", len(raw))
	}
	fields := []struct {
		idx  int
		dest interface{}
	}{
		{0, &k.OpenTime},
		{1, &k.Open},
		{2, &k.High},
		{3, &k.Low},
		{4, &k.Close},
		{5, &k.Volume},
		{6, &k.CloseTime},
	}
	for _, f := range fields {
		if err := json.Unmarshal(raw[f.idx], f.dest); err != nil {
			return fmt.Errorf("kline element %d: %w", f.idx, err)
		}
	}
	return nil
}

func (b *Binance) ticker(ctx context.Context) (*ticker24h, error) {
	key := "binance:ticker:" + b.cfg.Symbol
	if cached, err := cache.GetTyped[ticker24h](ctx, b.cache, key); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		b.logger.Warn("ticker cache read failed", logger.Error(err))
	}

	t, err := retry.Do(ctx, b.retry, func(ctx context.Context) (ticker24h, error) {
		var out ticker24h
		if b.cfg.RatePerSecond > 0 && !b.limiter.Allow("binance", b.cfg.RatePerSecond, b.cfg.RatePerSecond) {
			return out, fmt.Errorf("binance rate limited")
		}
		err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         b.cfg.BaseURL + "/api/v3/ticker/24hr",
			QueryParams: map[string]string{"symbol": b.cfg.Symbol},
		}, &out)
		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("binance ticker: %w", err)
	}

	if err := cache.SetTyped(ctx, b.cache, key, t, b.cfg.TickerTTL); err != nil {
		b.logger.Warn("ticker cache write failed", logger.Error(err))
	}
	return &t, nil
}

func (b *Binance) klines(ctx context.Context) ([]kline, error) {
	key := fmt.Sprintf("binance:klines:%s:%s:%d", b.cfg.Symbol, b.cfg.Interval, b.cfg.KlineLimit)
	if cached, err := cache.GetTyped[[]kline](ctx, b.cache, key); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		b.logger.Warn("klines cache read failed", logger.Error(err))
	}

	ks, err := retry.Do(ctx, b.retry, func(ctx context.Context) ([]kline, error) {
		var out []kline
		if b.cfg.RatePerSecond > 0 && !b.limiter.Allow("binance", b.cfg.RatePerSecond, b.cfg.RatePerSecond) {
			return nil, fmt.Errorf("binance rate limited")
		}
		err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    b.cfg.BaseURL + "/api/v3/klines",
			QueryParams: map[string]string{
				"symbol":   b.cfg.Symbol,
				"interval": b.cfg.Interval,
				"limit":    strconv.Itoa(b.cfg.KlineLimit),
			},
		}, &out)
		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("binance klines: %w", err)
	}
	if len(ks) == 0 {
		return nil, fmt.Errorf("binance klines: empty series")
	}

	if err := cache.SetTyped(ctx, b.cache, key, ks, b.cfg.KlinesTTL); err != nil {
		b.logger.Warn("klines cache write failed", logger.Error(err))
	}
	return ks, nil
}

// Snapshot fetches the ticker and the candle series concurrently and
// normalizes both into one MarketSnapshot.
func (b *Binance) Snapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	var (
		t  *ticker24h
		ks []kline
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t, err = b.ticker(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		ks, err = b.klines(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("binance snapshot: %w", err)
	}

	currentPrice, err := strconv.ParseFloat(t.LastPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("binance snapshot: parse lastPrice %q: %w", t.LastPrice, err)
	}
	change24h, err := strconv.ParseFloat(t.PriceChangePercent, 64)
	if err != nil {
		return nil, fmt.Errorf("binance snapshot: parse priceChangePercent %q: %w", t.PriceChangePercent, err)
	}
	volume24h, err := strconv.ParseFloat(t.QuoteVolume, 64)
	if err != nil {
		return nil, fmt.Errorf("binance snapshot: parse quoteVolume %q: %w", t.QuoteVolume, err)
	}

	history := make([]models.PricePoint, 0, len(ks))
	for _, k := range ks {
		point, err := k.toPricePoint()
		if err != nil {
			return nil, fmt.Errorf("binance snapshot: %w", err)
		}
		history = append(history, point)
	}

	return &models.MarketSnapshot{
		Timestamp:    time.Now().UnixMilli(),
		CurrentPrice: currentPrice,
		PriceHistory: history,
		Volume24h:    volume24h,
		Change24h:    change24h,
	}, nil
}

func (k *kline) toPricePoint() (models.PricePoint, error) {
	var p models.PricePoint
	var err error
	if p.Open, err = strconv.ParseFloat(k.Open, 64); err != nil {
		return p, fmt.Errorf("parse open %q: %w", k.Open, err)
	}
	if p.High, err = strconv.ParseFloat(k.High, 64); err != nil {
		return p, fmt.Errorf("parse high %q: %w", k.High, err)
	}
	if p.Low, err = strconv.ParseFloat(k.Low, 64); err != nil {
		return p, fmt.Errorf("parse low %q: %w", k.Low, err)
	}
	if p.Close, err = strconv.ParseFloat(k.Close, 64); err != nil {
		return p, fmt.Errorf("parse close %q: %w", k.Close, err)
	}
	if p.Volume, err = strconv.ParseFloat(k.Volume, 64); err != nil {
		return p, fmt.Errorf("parse volume %q: %w", k.Volume, err)
	}
	p.Timestamp = k.OpenTime
	p.Price = p.Close
	return p, nil
}
