package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"alphabot/internal/domain/models"
	"alphabot/pkg/fixedpoint"
)

// SignalRecord is one persisted prediction cycle outcome.
type SignalRecord struct {
	ID              int64
	CycleID         string
	Strategy        string
	Signal          models.Signal
	Submitted       bool
	CertificateHash string
	CreatedAt       time.Time
}

// SignalHistoryRepo keeps a local audit trail of every produced signal,
// whether or not it reached the ledger. Prices and confidences are stored in
// the same integer units the ledger uses.
type SignalHistoryRepo struct {
	pool *pgxpool.Pool
}

func NewSignalHistoryRepo(pool *pgxpool.Pool) *SignalHistoryRepo {
	return &SignalHistoryRepo{pool: pool}
}

// EnsureSchema creates the history table when it does not exist yet.
func (r *SignalHistoryRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS signal_history (
			id                    BIGSERIAL PRIMARY KEY,
			cycle_id              UUID NOT NULL,
			strategy              TEXT NOT NULL,
			signal_timestamp      BIGINT NOT NULL,
			action                TEXT NOT NULL,
			predicted_price_micro BIGINT NOT NULL,
			confidence_bps        BIGINT NOT NULL,
			reasoning             TEXT NOT NULL DEFAULT '',
			submitted             BOOLEAN NOT NULL DEFAULT FALSE,
			certificate_hash      TEXT NOT NULL DEFAULT '',
			created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

// Record inserts one cycle outcome.
func (r *SignalHistoryRepo) Record(ctx context.Context, rec *SignalRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO signal_history
		 (cycle_id, strategy, signal_timestamp, action,
		  predicted_price_micro, confidence_bps, reasoning, submitted, certificate_hash)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rec.CycleID, rec.Strategy, rec.Signal.Timestamp, string(rec.Signal.Action),
		fixedpoint.MicroUSD(rec.Signal.PredictedPrice),
		fixedpoint.ToBasisPoints(rec.Signal.Confidence),
		rec.Signal.Reasoning, rec.Submitted, rec.CertificateHash,
	)
	return err
}

// Recent returns the newest records, most recent first.
func (r *SignalHistoryRepo) Recent(ctx context.Context, limit int) ([]SignalRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, cycle_id, strategy, signal_timestamp, action,
		        predicted_price_micro, confidence_bps, reasoning, submitted, certificate_hash, created_at
		 FROM signal_history
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SignalRecord
	for rows.Next() {
		var (
			rec        SignalRecord
			priceMicro int64
			confBps    int64
			action     string
		)
		if err := rows.Scan(
			&rec.ID, &rec.CycleID, &rec.Strategy, &rec.Signal.Timestamp, &action,
			&priceMicro, &confBps, &rec.Signal.Reasoning,
			&rec.Submitted, &rec.CertificateHash, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Signal.Action = models.Action(action)
		rec.Signal.PredictedPrice = fixedpoint.FromMicroUSD(priceMicro)
		rec.Signal.Confidence = fixedpoint.FromBasisPoints(confBps)
		out = append(out, rec)
	}
	return out, rows.Err()
}
