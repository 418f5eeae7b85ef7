package models

// PricePoint is one historical sample. Binance provides full OHLCV; CoinGecko
// only (timestamp, price) pairs with volume joined by timestamp, so the OHLC
// fields may be zero. Price always carries the close for window statistics.
type PricePoint struct {
	Timestamp int64   `json:"timestamp" validate:"gt=0"` // unix ms
	Price     float64 `json:"price" validate:"gt=0"`
	Open      float64 `json:"open,omitempty"`
	High      float64 `json:"high,omitempty"`
	Low       float64 `json:"low,omitempty"`
	Close     float64 `json:"close,omitempty"`
	Volume    float64 `json:"volume,omitempty" validate:"gte=0"`
}

// MarketSnapshot is one fetched, normalized view of current plus historical
// market data for one prediction cycle. PriceHistory is ordered ascending by
// timestamp. Created fresh each cycle and discarded after the strategy
// consumes it.
type MarketSnapshot struct {
	Timestamp    int64        `json:"timestamp" validate:"gt=0"` // unix ms
	CurrentPrice float64      `json:"currentPrice" validate:"gt=0"`
	PriceHistory []PricePoint `json:"priceHistory"`
	Volume24h    float64      `json:"volume24h" validate:"gte=0"`
	Change24h    float64      `json:"change24h"`
	MarketCap    float64      `json:"marketCap,omitempty"` // 0 when the provider has none
}

// Closes returns the close-price series of the history.
func (s *MarketSnapshot) Closes() []float64 {
	prices := make([]float64, len(s.PriceHistory))
	for i, p := range s.PriceHistory {
		prices[i] = p.Price
	}
	return prices
}
