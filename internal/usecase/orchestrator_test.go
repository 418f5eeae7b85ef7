package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"alphabot/internal/domain/models"
	"alphabot/internal/service/ledger"
	"alphabot/pkg/logger"
	"alphabot/pkg/metrics"
)

type stubFetcher struct {
	snap  *models.MarketSnapshot
	err   error
	calls atomic.Int32
}

func (f *stubFetcher) Name() string { return "stub" }

func (f *stubFetcher) Snapshot(context.Context) (*models.MarketSnapshot, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

type stubStrategy struct {
	sig   *models.Signal
	err   error
	delay time.Duration

	mu            sync.Mutex
	active        int
	maxConcurrent int
}

func (s *stubStrategy) Name() string { return "stub-strategy" }

func (s *stubStrategy) Predict(context.Context, *models.MarketSnapshot) (*models.Signal, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxConcurrent {
		s.maxConcurrent = s.active
	}
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.active--
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return s.sig, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func testSnapshot() *models.MarketSnapshot {
	return &models.MarketSnapshot{
		Timestamp:    1700000000000,
		CurrentPrice: 3500,
		PriceHistory: []models.PricePoint{{Timestamp: 1700000000000, Price: 3500, Close: 3500}},
	}
}

func testSignal() *models.Signal {
	return &models.Signal{
		Timestamp:      1700000000000,
		Action:         models.ActionBuy,
		PredictedPrice: 3550,
		Confidence:     0.8,
		Reasoning:      "test",
	}
}

func newTestOrchestrator(t *testing.T, ledgerClient *ledger.Client, interval time.Duration) (*Orchestrator, *stubFetcher, *stubStrategy) {
	fetcher := &stubFetcher{snap: testSnapshot()}
	strat := &stubStrategy{sig: testSignal()}
	o := NewOrchestrator(fetcher, strat, ledgerClient, nil, metrics.New(), testLogger(t), interval)
	return o, fetcher, strat
}

func TestRunOnceWithoutLedger(t *testing.T) {
	o, fetcher, _ := newTestOrchestrator(t, nil, time.Minute)

	sig, err := o.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if sig.Action != models.ActionBuy {
		t.Fatalf("unexpected signal: %+v", sig)
	}
	if fetcher.calls.Load() != 1 {
		t.Fatalf("fetcher called %d times", fetcher.calls.Load())
	}
}

func TestRunOncePropagatesFetchFailure(t *testing.T) {
	o, fetcher, _ := newTestOrchestrator(t, nil, time.Minute)
	fetcher.err = errors.New("upstream down")

	if _, err := o.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected fetch failure to propagate")
	}
}

func TestRunOncePropagatesStrategyFailure(t *testing.T) {
	o, _, strat := newTestOrchestrator(t, nil, time.Minute)
	strat.err = errors.New("no data")

	if _, err := o.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected strategy failure to propagate")
	}
}

func TestRunOnceRejectsInvalidSignal(t *testing.T) {
	o, _, strat := newTestOrchestrator(t, nil, time.Minute)
	strat.sig = &models.Signal{Timestamp: 1, Action: "MAYBE", PredictedPrice: 1, Confidence: 0.5}

	if _, err := o.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected validation failure")
	}
}

func TestRunOnceSubmitsAndResolvesPrevious(t *testing.T) {
	type call struct {
		query     string
		variables map[string]interface{}
	}
	var (
		mu    sync.Mutex
		calls []call
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string                 `json:"query"`
			Variables map[string]interface{} `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		calls = append(calls, call{req.Query, req.Variables})
		mu.Unlock()
		_, _ = w.Write([]byte(`{"data":{"submitPrediction":"h1","resolveSignal":"h2"}}`))
	}))
	defer srv.Close()

	client := ledger.NewClient(ledger.Config{Endpoint: srv.URL}, testLogger(t))
	o, _, _ := newTestOrchestrator(t, client, time.Minute)

	if _, err := o.RunOnce(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if _, err := o.RunOnce(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	// First cycle: submit only. Second cycle: resolve previous, then submit.
	if len(calls) != 3 {
		t.Fatalf("ledger called %d times, want 3", len(calls))
	}
	if !strings.Contains(calls[0].query, "submitPrediction") {
		t.Fatalf("first call should submit: %s", calls[0].query)
	}
	if !strings.Contains(calls[1].query, "resolveSignal") {
		t.Fatalf("second cycle should resolve previous first: %s", calls[1].query)
	}
	if calls[1].variables["timestamp"] != "1700000000000" {
		t.Fatalf("resolve timestamp = %v", calls[1].variables["timestamp"])
	}
	if calls[1].variables["actualPriceMicro"] != "3500000000" {
		t.Fatalf("resolve actual price = %v", calls[1].variables["actualPriceMicro"])
	}
	if !strings.Contains(calls[2].query, "submitPrediction") {
		t.Fatalf("third call should submit: %s", calls[2].query)
	}
}

func TestLedgerFailureDoesNotFailCycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := ledger.NewClient(ledger.Config{Endpoint: srv.URL}, testLogger(t))
	o, _, _ := newTestOrchestrator(t, client, time.Minute)

	sig, err := o.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("ledger failure must not fail the cycle: %v", err)
	}
	if sig == nil {
		t.Fatalf("signal missing")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, nil, time.Hour)

	if o.Status().IsRunning {
		t.Fatalf("should start stopped")
	}

	o.Start()
	o.Start() // no-op
	if !o.Status().IsRunning {
		t.Fatalf("should be running")
	}
	if got := o.Status().IntervalMs; got != time.Hour.Milliseconds() {
		t.Fatalf("interval = %d", got)
	}

	o.Stop()
	o.Stop() // no-op
	if o.Status().IsRunning {
		t.Fatalf("should be stopped")
	}
}

func TestStartFiresImmediateCycle(t *testing.T) {
	o, fetcher, _ := newTestOrchestrator(t, nil, time.Hour)

	o.Start()
	defer o.Stop()

	deadline := time.After(2 * time.Second)
	for fetcher.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("initial cycle never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestScheduledCyclesDoNotOverlap(t *testing.T) {
	o, _, strat := newTestOrchestrator(t, nil, 10*time.Millisecond)
	strat.delay = 35 * time.Millisecond

	o.Start()
	time.Sleep(150 * time.Millisecond)
	o.Stop()

	strat.mu.Lock()
	defer strat.mu.Unlock()
	if strat.maxConcurrent > 1 {
		t.Fatalf("cycles overlapped: max concurrency %d", strat.maxConcurrent)
	}
}
