package fixedpoint

import (
	"fmt"
	"math"
	"strconv"
)

// Conversions between display units and the integer-only wire format the
// ledger contract stores. USD prices travel as micro-USD strings, confidence
// fractions as basis points. Both encoders truncate (floor) rather than round;
// the contract side does the same, so this must not change.

const (
	microPerUSD   = 1_000_000
	bpsPerDecimal = 10_000
)

// MicroUSD converts a USD amount to integer micro-USD.
func MicroUSD(usd float64) int64 {
	return int64(math.Floor(usd * microPerUSD))
}

// ToMicroUSD converts a USD amount to its micro-USD wire string.
// 3500.25 -> "3500250000".
func ToMicroUSD(usd float64) string {
	return strconv.FormatInt(MicroUSD(usd), 10)
}

// FromMicroUSD converts micro-USD back to USD.
func FromMicroUSD(micro int64) float64 {
	return float64(micro) / microPerUSD
}

// ParseMicroUSD decodes a micro-USD wire string into USD.
func ParseMicroUSD(s string) (float64, error) {
	micro, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse micro-USD %q: %w", s, err)
	}
	return FromMicroUSD(micro), nil
}

// ToBasisPoints converts a decimal fraction in [0,1] to basis points.
// 0.85 -> 8500.
func ToBasisPoints(decimal float64) int64 {
	return int64(math.Floor(decimal * bpsPerDecimal))
}

// FromBasisPoints converts basis points back to a decimal fraction.
func FromBasisPoints(bps int64) float64 {
	return float64(bps) / bpsPerDecimal
}
