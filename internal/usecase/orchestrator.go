package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"alphabot/internal/domain/models"
	"alphabot/internal/repository"
	"alphabot/internal/service/ledger"
	"alphabot/internal/service/marketdata"
	"alphabot/internal/service/strategy"
	"alphabot/pkg/logger"
	"alphabot/pkg/metrics"
)

// Status is the orchestrator's externally visible state.
type Status struct {
	IsRunning  bool  `json:"isRunning"`
	IntervalMs int64 `json:"intervalMs"`
}

// Orchestrator owns the prediction loop: fetch a snapshot, run the configured
// strategy, submit the signal to the ledger, record the outcome. Scheduled
// cycles are isolated from each other; one failing cycle never stops the
// schedule. An in-flight guard skips a tick while the previous cycle is still
// running, so cycles never overlap.
type Orchestrator struct {
	fetcher  marketdata.Fetcher
	strategy strategy.Strategy
	ledger   *ledger.Client                // nil means submission is skipped
	history  *repository.SignalHistoryRepo // nil means no local audit trail
	metrics  *metrics.Recorder
	logger   *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	inFlight atomic.Bool

	// Last signal accepted by the ledger, pending resolution against the
	// next cycle's spot price.
	pendingMu sync.Mutex
	pending   *models.Signal
}

func NewOrchestrator(
	fetcher marketdata.Fetcher,
	strat strategy.Strategy,
	ledgerClient *ledger.Client,
	history *repository.SignalHistoryRepo,
	rec *metrics.Recorder,
	l *logger.Logger,
	interval time.Duration,
) *Orchestrator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Orchestrator{
		fetcher:  fetcher,
		strategy: strat,
		ledger:   ledgerClient,
		history:  history,
		metrics:  rec,
		logger:   l,
		interval: interval,
	}
}

// Start transitions to Running, fires one cycle immediately and then arms the
// repeating timer. Calling Start while Running is a logged no-op.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		o.logger.Info("orchestrator already running")
		return
	}

	o.logger.Info("starting orchestrator",
		logger.String("strategy", o.strategy.Name()),
		logger.String("fetcher", o.fetcher.Name()),
		logger.Duration("interval", o.interval))

	ctx, cancel := context.WithCancel(context.Background())
	o.running = true
	o.cancel = cancel
	o.done = make(chan struct{})

	go o.loop(ctx, o.done)
}

// Stop cancels the timer and transitions to Stopped. Calling Stop while
// Stopped is a logged no-op. A cycle already in flight finishes on its own.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		o.logger.Info("orchestrator not running")
		return
	}

	o.logger.Info("stopping orchestrator")
	o.cancel()
	<-o.done
	o.running = false
	o.cancel = nil
	o.done = nil
}

func (o *Orchestrator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	go o.scheduledCycle(ctx)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go o.scheduledCycle(ctx)
		}
	}
}

// scheduledCycle runs one timer-triggered cycle. Failures are logged and
// counted, never propagated. A tick arriving while a cycle is still in flight
// is skipped.
func (o *Orchestrator) scheduledCycle(ctx context.Context) {
	if !o.inFlight.CompareAndSwap(false, true) {
		o.logger.Warn("cycle still in flight, skipping tick")
		o.metrics.RecordCycle("skipped")
		return
	}
	defer o.inFlight.Store(false)

	if _, err := o.runCycle(ctx); err != nil {
		o.logger.Error("prediction cycle failed", logger.Error(err))
		o.metrics.RecordCycle("failed")
		return
	}
	o.metrics.RecordCycle("completed")
}

// RunOnce executes exactly one cycle synchronously and returns its signal.
// Unlike scheduled cycles, the failure propagates to the caller.
func (o *Orchestrator) RunOnce(ctx context.Context) (*models.Signal, error) {
	return o.runCycle(ctx)
}

// Status reports lifecycle state. Pure read.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		IsRunning:  o.running,
		IntervalMs: o.interval.Milliseconds(),
	}
}

func (o *Orchestrator) runCycle(ctx context.Context) (*models.Signal, error) {
	cycleID := uuid.NewString()
	log := o.logger
	log.Info("cycle started", logger.String("cycle_id", cycleID))

	fetchStart := time.Now()
	snapshot, err := o.fetcher.Snapshot(ctx)
	o.metrics.RecordStageLatency("fetch", time.Since(fetchStart))
	if err != nil {
		o.metrics.RecordError("fetch")
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	o.metrics.RecordLastPrice(snapshot.CurrentPrice)
	log.Info("snapshot fetched",
		logger.String("cycle_id", cycleID),
		logger.Float64("current_price", snapshot.CurrentPrice),
		logger.Int("history_points", len(snapshot.PriceHistory)))

	predictStart := time.Now()
	signal, err := o.strategy.Predict(ctx, snapshot)
	o.metrics.RecordStageLatency("predict", time.Since(predictStart))
	if err != nil {
		o.metrics.RecordError("predict")
		return nil, fmt.Errorf("predict: %w", err)
	}
	if err := signal.Validate(); err != nil {
		o.metrics.RecordError("validate")
		return nil, fmt.Errorf("validate signal: %w", err)
	}
	o.metrics.RecordPrediction(o.strategy.Name(), string(signal.Action))
	log.Info("signal produced",
		logger.String("cycle_id", cycleID),
		logger.String("action", string(signal.Action)),
		logger.Float64("predicted_price", signal.PredictedPrice),
		logger.Float64("confidence", signal.Confidence))

	submitted, certificateHash := o.submit(ctx, cycleID, signal, snapshot.CurrentPrice)

	o.record(ctx, cycleID, signal, submitted, certificateHash)

	log.Info("cycle completed", logger.String("cycle_id", cycleID))
	return signal, nil
}

// submit resolves the previously accepted signal against the fresh spot
// price, then submits the new one. With no ledger configured both steps are
// skipped with a note. Ledger failures are structured results, not errors;
// they never fail the cycle.
func (o *Orchestrator) submit(ctx context.Context, cycleID string, signal *models.Signal, currentPrice float64) (bool, string) {
	if o.ledger == nil {
		o.logger.Info("no ledger client configured, skipping submission",
			logger.String("cycle_id", cycleID))
		return false, ""
	}

	o.pendingMu.Lock()
	previous := o.pending
	o.pendingMu.Unlock()

	if previous != nil {
		res := o.ledger.ResolveSignal(ctx, previous.Timestamp, currentPrice)
		if res.Success {
			o.logger.Info("previous signal resolved",
				logger.String("cycle_id", cycleID),
				logger.Int64("signal_timestamp", previous.Timestamp),
				logger.Float64("actual_price", currentPrice))
			o.pendingMu.Lock()
			if o.pending == previous {
				o.pending = nil
			}
			o.pendingMu.Unlock()
		} else {
			o.logger.Warn("failed to resolve previous signal",
				logger.String("cycle_id", cycleID),
				logger.String("error", res.Error))
			o.metrics.RecordError("resolve")
		}
	}

	submitStart := time.Now()
	res := o.ledger.SubmitPrediction(ctx, signal)
	o.metrics.RecordStageLatency("submit", time.Since(submitStart))
	if !res.Success {
		o.logger.Warn("ledger submission failed",
			logger.String("cycle_id", cycleID),
			logger.String("error", res.Error))
		o.metrics.RecordError("submit")
		return false, ""
	}

	o.logger.Info("signal submitted",
		logger.String("cycle_id", cycleID),
		logger.String("certificate_hash", res.CertificateHash))
	o.pendingMu.Lock()
	o.pending = signal
	o.pendingMu.Unlock()
	return true, res.CertificateHash
}

// record appends the cycle outcome to the local audit trail. Best effort; a
// storage failure only warns.
func (o *Orchestrator) record(ctx context.Context, cycleID string, signal *models.Signal, submitted bool, certificateHash string) {
	if o.history == nil {
		return
	}
	err := o.history.Record(ctx, &repository.SignalRecord{
		CycleID:         cycleID,
		Strategy:        o.strategy.Name(),
		Signal:          *signal,
		Submitted:       submitted,
		CertificateHash: certificateHash,
	})
	if err != nil {
		o.logger.Warn("failed to record signal history", logger.Error(err))
	}
}
