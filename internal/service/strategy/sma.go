package strategy

import (
	"context"
	"fmt"
	"math"

	"alphabot/internal/domain/models"
)

const (
	smaShortWindow = 20
	smaLongWindow  = 50
	smaThreshold   = 0.02
)

// SimpleMA is the deterministic local strategy: a 20/50 moving-average
// crossover over the close series. A spread above +2% reads bullish, below
// -2% bearish, anything between is a hold.
type SimpleMA struct{}

func NewSimpleMA() *SimpleMA { return &SimpleMA{} }

func (s *SimpleMA) Name() string { return "simple-ma" }

func (s *SimpleMA) Predict(_ context.Context, snapshot *models.MarketSnapshot) (*models.Signal, error) {
	if len(snapshot.PriceHistory) == 0 {
		return nil, fmt.Errorf("simple-ma: empty price history")
	}

	prices := snapshot.Closes()
	smaShort := sma(prices, smaShortWindow)
	smaLong := sma(prices, smaLongWindow)
	spread := (smaShort - smaLong) / smaLong

	var (
		action     models.Action
		confidence float64
		predicted  float64
	)
	switch {
	case spread > smaThreshold:
		action = models.ActionBuy
		confidence = math.Min(0.5+spread*5, 0.9)
		predicted = snapshot.CurrentPrice * (1 + math.Max(spread, 0.01))
	case spread < -smaThreshold:
		action = models.ActionSell
		confidence = math.Min(0.5+math.Abs(spread)*5, 0.9)
		predicted = snapshot.CurrentPrice * (1 + math.Min(spread, -0.01))
	default:
		action = models.ActionHold
		confidence = 0.5
		predicted = snapshot.CurrentPrice * (1 + spread*0.5)
	}

	return &models.Signal{
		Timestamp:      snapshot.Timestamp,
		Action:         action,
		PredictedPrice: predicted,
		Confidence:     confidence,
		Reasoning:      smaReasoning(smaShort, smaLong, action, snapshot.CurrentPrice),
	}, nil
}

// sma averages the trailing period samples. A series shorter than the period
// shrinks the window to the available length.
func sma(prices []float64, period int) float64 {
	if len(prices) < period {
		period = len(prices)
	}
	recent := prices[len(prices)-period:]
	var sum float64
	for _, p := range recent {
		sum += p
	}
	return sum / float64(period)
}

func smaReasoning(smaShort, smaLong float64, action models.Action, currentPrice float64) string {
	spreadPct := (smaShort - smaLong) / smaLong * 100
	trend := "Neutral"
	switch action {
	case models.ActionBuy:
		trend = "Bullish"
	case models.ActionSell:
		trend = "Bearish"
	}
	return fmt.Sprintf("SMA20=$%.2f vs SMA50=$%.2f (%+.2f%%). %s trend. Current=$%.2f",
		smaShort, smaLong, spreadPct, trend, currentPrice)
}
