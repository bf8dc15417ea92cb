package calculator

import (
	"errors"

	"CoinSentry/internal/model"
)

// ErrNotEnoughData is returned when a series is shorter than the period.
var ErrNotEnoughData = errors.New("not enough data")

// SMA is the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(values) < period {
		return 0, ErrNotEnoughData
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// MA200 is the 200-day moving average of daily closes.
func MA200(daily []model.OHLCV) (float64, error) {
	return SMA(Closes(daily), 200)
}

// MA111 is the 111-day moving average of daily closes.
func MA111(daily []model.OHLCV) (float64, error) {
	return SMA(Closes(daily), 111)
}

// Closes extracts close prices.
func Closes(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
