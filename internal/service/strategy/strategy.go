package strategy

import (
	"context"

	"alphabot/internal/domain/models"
)

// Strategy maps one market snapshot to one trading signal. Implementations
// must either return a valid Signal or an error the caller can act on;
// remote-inference implementations absorb their own failures into a
// conservative HOLD signal instead of returning an error.
type Strategy interface {
	Name() string
	Predict(ctx context.Context, snapshot *models.MarketSnapshot) (*models.Signal, error)
}
