package strategy

import "CoinSentry/internal/model"

// Rules are the market scan classification thresholds.
type Rules struct {
	// Accumulation: sideways price, growing OI, top traders net long.
	MinPriceChange float64
	MaxPriceChange float64
	MinOIChange    float64
	MinLSRatio     float64

	TopOICount   int
	ExtremeCount int
}

// DefaultRules match the 30 minute scan cadence.
var DefaultRules = Rules{
	MinPriceChange: -2,
	MaxPriceChange: 5,
	MinOIChange:    1.5,
	MinLSRatio:     1.2,
	TopOICount:     5,
	ExtremeCount:   3,
}

// isAccumulation reports whether m looks like quiet accumulation.
// All bounds are exclusive.
func (r Rules) isAccumulation(m model.SymbolMetrics) bool {
	return m.PriceChange > r.MinPriceChange &&
		m.PriceChange < r.MaxPriceChange &&
		m.OIChange > r.MinOIChange &&
		m.LSRatio > r.MinLSRatio
}
