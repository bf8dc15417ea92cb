package model

import "time"

// Sections used when classifying coins in a market scan.
const (
	SectionAccumulation = "accumulation"
	SectionTopOI        = "top_oi"
)

// CoinData is the per-symbol record kept in a snapshot.
type CoinData struct {
	LSValue   float64 `json:"ls_value"`
	Section   string  `json:"section"`
	ExtraInfo string  `json:"extra_info"`
}

// Snapshot is one market scan result appended to the cycle.
type Snapshot struct {
	Timestamp time.Time           `json:"timestamp"`
	Coins     map[string]CoinData `json:"coins"`
}

// TrendEntry is one symbol whose LS value grew across the cycle.
type TrendEntry struct {
	Symbol      string
	First       float64
	Last        float64
	GrowthPct   float64
	Appearances int
}
