package tracker

import (
	"sync"
	"time"
)

// Sample is one observed price.
type Sample struct {
	At    time.Time
	Price float64
}

// Tracker keeps a rolling window of samples per symbol. Windows are pruned
// on every insert, so everything retained is younger than the window at the
// time of the last Record.
type Tracker struct {
	mu      sync.Mutex
	window  time.Duration
	history map[string][]Sample
}

// New creates a tracker with the given window (30m when zero).
func New(window time.Duration) *Tracker {
	if window <= 0 {
		window = 30 * time.Minute
	}
	return &Tracker{
		window:  window,
		history: make(map[string][]Sample),
	}
}

// Record appends a sample and drops those older than the window.
// Non-positive prices are ignored.
func (t *Tracker) Record(symbol string, price float64, now time.Time) {
	if price <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	samples := append(t.history[symbol], Sample{At: now, Price: price})
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(samples) && !samples[i].At.After(cutoff) {
		i++
	}
	t.history[symbol] = append(samples[:0:0], samples[i:]...)
}

// CurrentAndMax returns the latest price and the maximum in the window,
// or 0, 0 when nothing is retained.
func (t *Tracker) CurrentAndMax(symbol string) (current, max float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	samples := t.history[symbol]
	if len(samples) == 0 {
		return 0, 0
	}
	for _, s := range samples {
		if s.Price > max {
			max = s.Price
		}
	}
	return samples[len(samples)-1].Price, max
}

// Samples returns a copy of the retained samples for symbol.
func (t *Tracker) Samples(symbol string) []Sample {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Sample(nil), t.history[symbol]...)
}
