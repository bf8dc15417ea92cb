// Package scan holds the periodic jobs: the portfolio drop monitor, the open
// interest market scan and the daily BTC dashboard.
package scan

import (
	"context"
	"time"

	"CoinSentry/internal/metrics"
	"CoinSentry/internal/model"
	"CoinSentry/internal/notifier"
)

// sendRetries is how many times a Telegram message is retried.
const sendRetries = 3

// Messenger delivers Telegram text messages.
type Messenger interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// EmbedSender delivers Discord embeds.
type EmbedSender interface {
	SendEmbed(ctx context.Context, e notifier.Embed) error
}

// KlineSource serves candles for a symbol pair such as BTCUSDT.
type KlineSource interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error)
}

// observe records the duration of a job and whether it failed.
func observe(job string, start time.Time, err error) {
	metrics.ScanDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScanErrors.WithLabelValues(job).Inc()
	}
}
