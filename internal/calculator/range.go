package calculator

import (
	"errors"

	"CoinSentry/internal/model"
)

// RollingHigh returns the highest high across the last n bars, or all bars
// when fewer are available.
func RollingHigh(bars []model.OHLCV, n int) (float64, error) {
	if len(bars) == 0 {
		return 0, errors.New("no bars provided")
	}
	if n <= 0 || n > len(bars) {
		n = len(bars)
	}
	high := 0.0
	for _, b := range bars[len(bars)-n:] {
		if b.High > high {
			high = b.High
		}
	}
	return high, nil
}

// Drawdown is the fractional decline of current from peak, 0 when the
// peak is unknown or below current.
func Drawdown(current, peak float64) float64 {
	if peak <= 0 || current >= peak {
		return 0
	}
	return (peak - current) / peak
}
