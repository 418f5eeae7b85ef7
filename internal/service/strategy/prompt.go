package strategy

import (
	"fmt"
	"strings"
	"time"

	"alphabot/internal/domain/models"
)

const systemPrompt = `You are an expert cryptocurrency trader specializing in ETH price predictions.
Analyze market data using technical analysis and market psychology to provide clear trading signals.
IMPORTANT: After your analysis, you MUST provide your final answer in the exact format specified.`

// buildPrompt renders the full candle history plus summary statistics and
// mandates the trailing four-line answer block the parser expects.
func buildPrompt(snapshot *models.MarketSnapshot) string {
	var candles strings.Builder
	n := len(snapshot.PriceHistory)
	for i, c := range snapshot.PriceHistory {
		hoursAgo := n - i
		at := time.UnixMilli(c.Timestamp).UTC().Format("15:04")
		fmt.Fprintf(&candles, "%dh ago (%s): O=$%.2f H=$%.2f L=$%.2f C=$%.2f V=%.1fk\n",
			hoursAgo, at, c.Open, c.High, c.Low, c.Close, c.Volume/1000)
	}

	maxPrice, minPrice, sum := snapshot.PriceHistory[0].Close, snapshot.PriceHistory[0].Close, 0.0
	for _, c := range snapshot.PriceHistory {
		if c.Close > maxPrice {
			maxPrice = c.Close
		}
		if c.Close < minPrice {
			minPrice = c.Close
		}
		sum += c.Close
	}
	avgPrice := sum / float64(n)

	return fmt.Sprintf(`Current ETH Market Data (%d hourly candles):
- Current Price: $%.2f
- 24h Change: %.2f%%
- 24h Volume: $%s

Statistics over %dh period:
- High: $%.2f
- Low: $%.2f
- Average: $%.2f

Complete OHLC Candlesticks (all %d hourly bars):
%s
Task: Predict ETH price movement in the next hour based on technical analysis of the complete dataset above.

You may perform your analysis and reasoning first, then provide your final prediction.

At the END of your response, provide your final answer in this EXACT format:
ACTION: [BUY, SELL, or HOLD]
PRICE: [predicted price in USD, e.g., 3575.50]
CONFIDENCE: [0-100, e.g., 75]
REASONING: [max 200 chars explaining your technical analysis]

Example final answer:
ACTION: BUY
PRICE: 3575.50
CONFIDENCE: 78
REASONING: Bullish divergence on RSI, golden cross forming, strong support at $3550 with increasing volume. Targeting $3600 resistance.`,
		n, snapshot.CurrentPrice, snapshot.Change24h, groupThousands(snapshot.Volume24h),
		n, maxPrice, minPrice, avgPrice, n, candles.String())
}

// groupThousands formats a non-negative amount with comma separators,
// dropping the fraction.
func groupThousands(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
