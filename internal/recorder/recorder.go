package recorder

import (
	"time"

	"CoinSentry/internal/alert"
	"CoinSentry/internal/model"
	"CoinSentry/internal/portfolio"
)

// ValuationRecord is one portfolio valuation with the time it was taken.
type ValuationRecord struct {
	At        time.Time
	Valuation portfolio.Valuation
}

// TrendRecord holds the trend analysis of a completed cycle.
type TrendRecord struct {
	At        time.Time
	Snapshots int
	Entries   []model.TrendEntry
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordAlert(a alert.Alert) error
	RecordValuation(rec *ValuationRecord) error
	RecordTrend(rec *TrendRecord) error
	Close() error
}
