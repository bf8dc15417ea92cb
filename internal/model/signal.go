package model

// FundingEntry is a symbol with its current funding rate, in percent.
type FundingEntry struct {
	Symbol string
	Rate   float64
}

// MarketSignal is the classification of one market scan.
type MarketSignal struct {
	Accumulation    []SymbolMetrics
	TopOI           []SymbolMetrics
	NegativeFunding []FundingEntry
	PositiveFunding []FundingEntry
	Scanned         int
}
