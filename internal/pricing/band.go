// Package pricing validates requested trade prices against the current
// quote. Band arithmetic is done in fixed-point decimal so the inclusive
// boundary holds exactly where float comparison would wobble.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultThresholdPct is the symmetric tolerance around the current price
// within which a requested price is accepted.
const DefaultThresholdPct = 0.02

// centPrecision rounds prices to whole cents before comparison.
const centPrecision = 2

// Config holds price-band parameters.
type Config struct {
	// ThresholdPct is the inclusive band half-width as a fraction of the
	// current price.
	ThresholdPct float64
}

// DefaultConfig returns the standard 2% band.
func DefaultConfig() Config {
	return Config{ThresholdPct: DefaultThresholdPct}
}

// Band returns the inclusive [min, max] window around current, rounded
// to cents.
func (c Config) Band(current float64) (min, max decimal.Decimal) {
	cur := decimal.NewFromFloat(current)
	tolerance := cur.Mul(decimal.NewFromFloat(c.ThresholdPct))
	min = cur.Sub(tolerance).Round(centPrecision)
	max = cur.Add(tolerance).Round(centPrecision)
	return min, max
}

// IsValidPrice reports whether requested is within the inclusive band
// around current. The check is symmetric: requested prices the same
// distance above or below current validate identically.
func (c Config) IsValidPrice(current, requested float64) bool {
	if current <= 0 || requested <= 0 {
		return false
	}
	min, max := c.Band(current)
	req := decimal.NewFromFloat(requested).Round(centPrecision)
	return req.GreaterThanOrEqual(min) && req.LessThanOrEqual(max)
}

// IsValidPrice validates with the default 2% band.
func IsValidPrice(current, requested float64) bool {
	return DefaultConfig().IsValidPrice(current, requested)
}

// BandError reports a requested price outside the valid band. The message
// carries the band computed from the current quote price.
type BandError struct {
	Symbol    string
	Requested float64
	Min       decimal.Decimal
	Max       decimal.Decimal
}

func (e *BandError) Error() string {
	return fmt.Sprintf("requested price %.2f for %s outside valid band $%s–$%s",
		e.Requested, e.Symbol, e.Min.StringFixed(centPrecision), e.Max.StringFixed(centPrecision))
}

// NewBandError builds a BandError for symbol from the current quote price.
func (c Config) NewBandError(symbol string, current, requested float64) *BandError {
	min, max := c.Band(current)
	return &BandError{Symbol: symbol, Requested: requested, Min: min, Max: max}
}
