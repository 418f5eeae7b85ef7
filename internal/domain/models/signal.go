package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Action is a trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Valid reports whether the action is one of BUY, SELL, HOLD.
func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold:
		return true
	}
	return false
}

// MaxReasoningLen caps the reasoning text; the ledger contract rejects more.
const MaxReasoningLen = 512

// Signal is the output of exactly one strategy invocation. Immutable; the
// shape is validated before it leaves the pipeline.
type Signal struct {
	Timestamp      int64   `json:"timestamp" validate:"gt=0"` // unix ms
	Action         Action  `json:"action" validate:"oneof=BUY SELL HOLD"`
	PredictedPrice float64 `json:"predicted_price" validate:"gt=0"`
	Confidence     float64 `json:"confidence" validate:"gte=0,lte=1"`
	Reasoning      string  `json:"reasoning" validate:"max=512"`
	ActualPrice    float64 `json:"actual_price,omitempty"`
}

// AccuracyMetrics is the ledger-owned accuracy aggregate; the pipeline only
// reads it back.
type AccuracyMetrics struct {
	RMSE                float64 `json:"rmse" validate:"gte=0"`
	DirectionalAccuracy float64 `json:"directional_accuracy" validate:"gte=0,lte=100"`
	TotalPredictions    int64   `json:"total_predictions" validate:"gte=0"`
	CorrectPredictions  int64   `json:"correct_predictions" validate:"gte=0"`
	LastUpdated         int64   `json:"last_updated"`
}

// BotState is the committed state queried back from the ledger.
type BotState struct {
	BotID         string          `json:"botId"`
	LatestSignal  *Signal         `json:"latestSignal"`
	Accuracy24h   AccuracyMetrics `json:"accuracy24h"`
	FollowerCount int64           `json:"followerCount"`
}

var validate = validator.New()

// Validate checks the signal against the declared shape.
func (s *Signal) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid signal: %w", err)
	}
	return nil
}
