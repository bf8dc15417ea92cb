package model

// Holdings maps symbol to amount for one source. Amounts are never negative.
type Holdings map[string]float64

// PriceInfo is the current price and the rolling window maximum.
type PriceInfo struct {
	Current float64
	Max     float64
}

// Position is an open perpetual position. Size is signed.
type Position struct {
	Coin string
	Size float64
}

// SourceSnapshot is everything fetched from one balance source in a scan.
type SourceSnapshot struct {
	Source    string
	Holdings  Holdings
	Positions []Position
}
