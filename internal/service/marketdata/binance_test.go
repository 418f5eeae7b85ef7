package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"alphabot/pkg/cache"
	"alphabot/pkg/logger"
)

const tickerBody = `{"symbol":"ETHUSDT","lastPrice":"3500.25","priceChangePercent":"2.15","quoteVolume":"123456789.5"}`

const klinesBody = `[
  [1700000000000,"3400.0","3450.0","3390.0","3420.5","1200.5",1700003599999,"4100000.0",500,"600.1","2050000.0","0"],
  [1700003600000,"3420.5","3510.0","3410.0","3500.25","1500.2",1700007199999,"5200000.0",700,"800.3","2700000.0","0"]
]`

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func newBinanceServer(tickerCalls, klineCalls *atomic.Int32) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/24hr", func(w http.ResponseWriter, r *http.Request) {
		tickerCalls.Add(1)
		_, _ = w.Write([]byte(tickerBody))
	})
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		klineCalls.Add(1)
		_, _ = w.Write([]byte(klinesBody))
	})
	return httptest.NewServer(mux)
}

func newBinance(url string, t *testing.T) *Binance {
	b := NewBinance(BinanceConfig{
		BaseURL:    url,
		Symbol:     "ETHUSDT",
		Interval:   "1h",
		KlineLimit: 200,
		TickerTTL:  time.Minute,
		KlinesTTL:  time.Minute,
	}, cache.NewMemoryCache(), testLogger(t))
	b.retry.BaseDelay = time.Millisecond
	return b
}

func TestBinanceSnapshot(t *testing.T) {
	var tickerCalls, klineCalls atomic.Int32
	srv := newBinanceServer(&tickerCalls, &klineCalls)
	defer srv.Close()

	b := newBinance(srv.URL, t)
	snap, err := b.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if snap.CurrentPrice != 3500.25 {
		t.Fatalf("current price = %v", snap.CurrentPrice)
	}
	if snap.Change24h != 2.15 {
		t.Fatalf("change24h = %v", snap.Change24h)
	}
	if snap.MarketCap != 0 {
		t.Fatalf("binance has no market cap, got %v", snap.MarketCap)
	}
	if len(snap.PriceHistory) != 2 {
		t.Fatalf("history length = %d", len(snap.PriceHistory))
	}
	first := snap.PriceHistory[0]
	if first.Timestamp != 1700000000000 || first.Open != 3400.0 || first.High != 3450.0 ||
		first.Low != 3390.0 || first.Close != 3420.5 || first.Volume != 1200.5 {
		t.Fatalf("unexpected first point: %+v", first)
	}
	if first.Price != first.Close {
		t.Fatalf("price should alias close")
	}
	if snap.PriceHistory[0].Timestamp >= snap.PriceHistory[1].Timestamp {
		t.Fatalf("history not ascending")
	}
}

func TestBinanceSnapshotUsesCache(t *testing.T) {
	var tickerCalls, klineCalls atomic.Int32
	srv := newBinanceServer(&tickerCalls, &klineCalls)
	defer srv.Close()

	b := newBinance(srv.URL, t)
	ctx := context.Background()

	if _, err := b.Snapshot(ctx); err != nil {
		t.Fatalf("first snapshot: %v", err)
	}
	if _, err := b.Snapshot(ctx); err != nil {
		t.Fatalf("second snapshot: %v", err)
	}

	if got := tickerCalls.Load(); got != 1 {
		t.Fatalf("ticker fetched %d times, want 1 (cached)", got)
	}
	if got := klineCalls.Load(); got != 1 {
		t.Fatalf("klines fetched %d times, want 1 (cached)", got)
	}
}

func TestBinanceSnapshotFailsWhenOneLegFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/24hr", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(tickerBody))
	})
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	b := newBinance(srv.URL, t)
	if _, err := b.Snapshot(context.Background()); err == nil {
		t.Fatalf("expected snapshot failure when klines leg fails")
	}
}

func TestBinanceRetriesNon2xx(t *testing.T) {
	var attempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/24hr", func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			http.Error(w, "rate limit", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(tickerBody))
	})
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(klinesBody))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	b := newBinance(srv.URL, t)
	if _, err := b.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot should succeed on third attempt: %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("ticker attempted %d times, want 3", got)
	}
}

func TestKlineUnmarshalRejectsShortTuple(t *testing.T) {
	var k kline
	if err := k.UnmarshalJSON([]byte(`[1700000000000,"1.0"]`)); err == nil {
		t.Fatalf("expected error for short tuple")
	}
}
