package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinSentry/internal/alert"
	"CoinSentry/internal/model"
	"CoinSentry/internal/portfolio"
)

func openTest(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func count(t *testing.T, r *SQLiteRecorder, table string) int {
	t.Helper()
	var n int
	require.NoError(t, r.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestRecordAlert(t *testing.T) {
	r := openTest(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.RecordAlert(alert.Alert{Symbol: "BTC", Current: 97, Max: 100, Drop: 0.03, HeldUSD: 970, At: at}))

	var (
		ts     int64
		symbol string
		drop   float64
	)
	require.NoError(t, r.db.QueryRow("SELECT timestamp, symbol, drop_pct FROM price_alerts").Scan(&ts, &symbol, &drop))
	assert.Equal(t, at.Unix(), ts)
	assert.Equal(t, "BTC", symbol)
	assert.InDelta(t, 3.0, drop, 1e-9)
}

func TestRecordValuation(t *testing.T) {
	r := openTest(t)
	v := portfolio.Valuation{
		GrandTotal: 150,
		Sources: []portfolio.SourceValuation{
			{Source: "binance", Total: 100, Items: []portfolio.Item{{Symbol: "BTC"}}},
			{Source: "gate", Total: 50, Hidden: 2},
		},
	}
	require.NoError(t, r.RecordValuation(&ValuationRecord{At: time.Now(), Valuation: v}))
	assert.Equal(t, 3, count(t, r, "valuations"))

	var total float64
	require.NoError(t, r.db.QueryRow("SELECT total_usd FROM valuations WHERE source = 'total'").Scan(&total))
	assert.Equal(t, 150.0, total)
}

func TestRecordTrend(t *testing.T) {
	r := openTest(t)
	rec := &TrendRecord{
		At:        time.Now(),
		Snapshots: 4,
		Entries: []model.TrendEntry{
			{Symbol: "AUSDT", First: 1, Last: 2, GrowthPct: 100, Appearances: 3},
			{Symbol: "BUSDT", First: 1, Last: 1.5, GrowthPct: 50, Appearances: 2},
		},
	}
	require.NoError(t, r.RecordTrend(rec))
	assert.Equal(t, 2, count(t, r, "trend_entries"))

	var symbol string
	require.NoError(t, r.db.QueryRow("SELECT symbol FROM trend_entries WHERE rank = 1").Scan(&symbol))
	assert.Equal(t, "AUSDT", symbol)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordAlert(alert.Alert{}))
	assert.NoError(t, r.RecordValuation(&ValuationRecord{}))
	assert.NoError(t, r.RecordTrend(&TrendRecord{}))
	assert.NoError(t, r.Close())
}
