package alert

import (
	"sync"
	"time"

	"CoinSentry/internal/calculator"
	"CoinSentry/internal/metrics"
)

// Alert is an emitted price drop.
type Alert struct {
	Symbol  string
	Current float64
	Max     float64
	Drop    float64 // fraction, 0.03 means 3%
	HeldUSD float64
	At      time.Time
}

// Config holds the alerting thresholds.
type Config struct {
	DropThreshold float64
	Cooldown      time.Duration
	DustUSD       float64
}

// Engine decides whether a symbol alerts. Each symbol is either normal or in
// cooldown; it returns to normal once now-last >= Cooldown.
type Engine struct {
	mu        sync.Mutex
	cfg       Config
	lastAlert map[string]time.Time
}

// NewEngine creates an engine, filling zero thresholds with defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.DropThreshold <= 0 {
		cfg.DropThreshold = 0.02
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Hour
	}
	if cfg.DustUSD < 0 {
		cfg.DustUSD = 0
	}
	return &Engine{cfg: cfg, lastAlert: make(map[string]time.Time)}
}

// Evaluate returns an alert when the drop from the window max reaches the
// threshold, the holding is not dust and the symbol is not cooling down.
// The cooldown starts only when an alert is emitted.
func (e *Engine) Evaluate(symbol string, current, max, heldUSD float64, now time.Time) (Alert, bool) {
	if heldUSD < e.cfg.DustUSD || max <= 0 {
		return Alert{}, false
	}
	drop := calculator.Drawdown(current, max)
	if drop < e.cfg.DropThreshold {
		return Alert{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastAlert[symbol]; ok && now.Sub(last) < e.cfg.Cooldown {
		return Alert{}, false
	}
	e.lastAlert[symbol] = now
	metrics.AlertsEmitted.WithLabelValues(symbol).Inc()

	return Alert{
		Symbol:  symbol,
		Current: current,
		Max:     max,
		Drop:    drop,
		HeldUSD: heldUSD,
		At:      now,
	}, true
}

// InCooldown reports whether symbol alerted less than Cooldown ago.
func (e *Engine) InCooldown(symbol string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.lastAlert[symbol]
	return ok && now.Sub(last) < e.cfg.Cooldown
}
