package calculator

import "errors"

// RSI is the Wilder-smoothed relative strength index of closes. It
// returns 50 when fewer than period+1 closes are available.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(closes) < period+1 {
		return 50, nil
	}

	p := float64(period)
	var avgGain, avgLoss float64
	for i := 1; i < len(closes); i++ {
		gain, loss := split(closes[i] - closes[i-1])
		if i <= period {
			avgGain += gain / p
			avgLoss += loss / p
			continue
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		return 100, nil
	}
	return 100 - 100/(1+avgGain/avgLoss), nil
}

func split(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}
