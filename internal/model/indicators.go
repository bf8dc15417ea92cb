package model

// DashboardIndicators holds the daily BTC market dashboard values.
// Zero means the input was unavailable.
type DashboardIndicators struct {
	BTCPrice       float64
	MA200          float64
	MA111          float64
	DailyRSI       float64
	FearGreed      int
	FearGreedLabel string
	STHRealized    float64
	MVRVZScore     float64
	BTCOI          float64 // USD
	ETHOI          float64 // USD
	AltOI          float64 // USD
	AltShare       float64 // percent of total OI
	AnnualFunding  float64 // percent, annualized
	HotAlts        []string
}

// Overheated reports whether any warning condition fires.
func (d *DashboardIndicators) Overheated() bool {
	return d.AltShare > 55 || len(d.HotAlts) > 0 || d.AnnualFunding > 50
}
