package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"alphabot/pkg/cache"
)

const cgPriceBody = `{"ethereum":{"usd":3500.25,"usd_market_cap":420000000000,"usd_24h_vol":15000000000,"usd_24h_change":2.15}}`

const cgHistoryBody = `{
  "prices":[[1700000000000,3400.0],[1700086400000,3500.25]],
  "total_volumes":[[1700000000000,14000000000],[1700086400000,15000000000]]
}`

func newCoinGeckoServer(priceCalls, historyCalls *atomic.Int32, priceBody string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/simple/price", func(w http.ResponseWriter, r *http.Request) {
		priceCalls.Add(1)
		_, _ = w.Write([]byte(priceBody))
	})
	mux.HandleFunc("/coins/ethereum/market_chart", func(w http.ResponseWriter, r *http.Request) {
		historyCalls.Add(1)
		_, _ = w.Write([]byte(cgHistoryBody))
	})
	return httptest.NewServer(mux)
}

func newCoinGecko(url string, t *testing.T) *CoinGecko {
	g := NewCoinGecko(CoinGeckoConfig{
		BaseURL:     url,
		CoinID:      "ethereum",
		HistoryDays: 7,
		CacheTTL:    time.Minute,
	}, cache.NewMemoryCache(), testLogger(t))
	g.retry.BaseDelay = time.Millisecond
	return g
}

func TestCoinGeckoSnapshot(t *testing.T) {
	var priceCalls, historyCalls atomic.Int32
	srv := newCoinGeckoServer(&priceCalls, &historyCalls, cgPriceBody)
	defer srv.Close()

	g := newCoinGecko(srv.URL, t)
	snap, err := g.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if snap.CurrentPrice != 3500.25 {
		t.Fatalf("current price = %v", snap.CurrentPrice)
	}
	if snap.MarketCap != 420000000000 {
		t.Fatalf("market cap = %v", snap.MarketCap)
	}
	if snap.Volume24h != 15000000000 {
		t.Fatalf("volume24h = %v", snap.Volume24h)
	}
	if snap.Change24h != 2.15 {
		t.Fatalf("change24h = %v", snap.Change24h)
	}
	if len(snap.PriceHistory) != 2 {
		t.Fatalf("history length = %d", len(snap.PriceHistory))
	}
	first := snap.PriceHistory[0]
	if first.Timestamp != 1700000000000 || first.Price != 3400.0 {
		t.Fatalf("unexpected first point: %+v", first)
	}
	if first.Volume != 14000000000 {
		t.Fatalf("volume not joined by timestamp: %+v", first)
	}
	// Aggregator series has no OHLC detail.
	if first.Open != 0 || first.Close != 0 {
		t.Fatalf("aggregator point should not carry OHLC: %+v", first)
	}
}

func TestCoinGeckoSnapshotUsesCache(t *testing.T) {
	var priceCalls, historyCalls atomic.Int32
	srv := newCoinGeckoServer(&priceCalls, &historyCalls, cgPriceBody)
	defer srv.Close()

	g := newCoinGecko(srv.URL, t)
	ctx := context.Background()

	if _, err := g.Snapshot(ctx); err != nil {
		t.Fatalf("first snapshot: %v", err)
	}
	if _, err := g.Snapshot(ctx); err != nil {
		t.Fatalf("second snapshot: %v", err)
	}

	if got := priceCalls.Load(); got != 1 {
		t.Fatalf("price fetched %d times, want 1 (cached)", got)
	}
	if got := historyCalls.Load(); got != 1 {
		t.Fatalf("history fetched %d times, want 1 (cached)", got)
	}
}

func TestCoinGeckoRejectsInvalidPrice(t *testing.T) {
	var priceCalls, historyCalls atomic.Int32
	srv := newCoinGeckoServer(&priceCalls, &historyCalls,
		`{"ethereum":{"usd":0,"usd_market_cap":0,"usd_24h_vol":0,"usd_24h_change":0}}`)
	defer srv.Close()

	g := newCoinGecko(srv.URL, t)
	if _, err := g.Snapshot(context.Background()); err == nil {
		t.Fatalf("expected failure for non-positive price")
	}
	// Invalid payloads are retried like transport failures.
	if got := priceCalls.Load(); got != 3 {
		t.Fatalf("price attempted %d times, want 3", got)
	}
}

func TestCoinGeckoRejectsMissingCoin(t *testing.T) {
	var priceCalls, historyCalls atomic.Int32
	srv := newCoinGeckoServer(&priceCalls, &historyCalls, `{"bitcoin":{"usd":60000}}`)
	defer srv.Close()

	g := newCoinGecko(srv.URL, t)
	if _, err := g.Snapshot(context.Background()); err == nil {
		t.Fatalf("expected failure when coin id missing from response")
	}
}

func TestCoinGeckoSendsAPIKeyHeader(t *testing.T) {
	var gotKey atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/simple/price", func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("x-cg-demo-api-key"))
		_, _ = w.Write([]byte(cgPriceBody))
	})
	mux.HandleFunc("/coins/ethereum/market_chart", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(cgHistoryBody))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newCoinGecko(srv.URL, t)
	g.cfg.APIKey = "demo-key"
	if _, err := g.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if gotKey.Load() != "demo-key" {
		t.Fatalf("api key header = %v", gotKey.Load())
	}
}
