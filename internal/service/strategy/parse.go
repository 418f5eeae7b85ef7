package strategy

import (
	"strconv"
	"strings"

	"alphabot/internal/domain/models"
)

// parseResponse extracts a Signal from a free-text model reply. The reply is
// scanned line by line for the four labeled fields; the last matching line
// wins per field, and any field never seen keeps its default (HOLD, the
// snapshot's current price, 0.5, "No reasoning provided"). Malformed values
// never fail the parse, they just leave the prior value in place.
func parseResponse(content string, snapshot *models.MarketSnapshot) *models.Signal {
	action := models.ActionHold
	predictedPrice := snapshot.CurrentPrice
	confidence := 0.5
	reasoning := "No reasoning provided"

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "ACTION:"):
			rest := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(line, "ACTION:")))
			switch {
			case strings.Contains(rest, "BUY"):
				action = models.ActionBuy
			case strings.Contains(rest, "SELL"):
				action = models.ActionSell
			default:
				action = models.ActionHold
			}

		case strings.HasPrefix(line, "PRICE:"):
			rest := strings.TrimSpace(strings.TrimPrefix(line, "PRICE:"))
			rest = strings.NewReplacer("$", "", ",", "").Replace(rest)
			if v, err := strconv.ParseFloat(rest, 64); err == nil && v > 0 {
				predictedPrice = v
			}

		case strings.HasPrefix(line, "CONFIDENCE:"):
			rest := strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:"))
			rest = strings.TrimSuffix(rest, "%")
			if v, err := strconv.ParseFloat(strings.TrimSpace(rest), 64); err == nil {
				confidence = clamp01(v / 100)
			}

		case strings.HasPrefix(line, "REASONING:"):
			rest := strings.TrimSpace(strings.TrimPrefix(line, "REASONING:"))
			if runes := []rune(rest); len(runes) > models.MaxReasoningLen {
				rest = string(runes[:models.MaxReasoningLen])
			}
			reasoning = rest
		}
	}

	return &models.Signal{
		Timestamp:      snapshot.Timestamp,
		Action:         action,
		PredictedPrice: predictedPrice,
		Confidence:     confidence,
		Reasoning:      reasoning,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
