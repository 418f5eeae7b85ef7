package marketdata

import (
	"context"

	"alphabot/internal/domain/models"
)

// Fetcher produces a normalized market snapshot from an upstream quote
// source. Implementations cache and retry their underlying calls; a snapshot
// fails as a whole if any underlying call fails after retries are exhausted.
type Fetcher interface {
	Name() string
	Snapshot(ctx context.Context) (*models.MarketSnapshot, error)
}
