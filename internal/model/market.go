package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Ticker is a 24h futures ticker row.
type Ticker struct {
	Symbol         string
	LastPrice      float64
	PriceChangePct float64
	QuoteVolume    float64
}

// SymbolMetrics is what the market scan gathers for one perpetual.
type SymbolMetrics struct {
	Symbol      string
	Price       float64
	PriceChange float64 // 24h change, percent
	QuoteVolume float64
	FundingRate float64 // percent per interval
	OIChange    float64 // percent vs 30m ago
	LSRatio     float64 // top trader long/short position ratio
}
