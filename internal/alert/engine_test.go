package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func defaultEngine() *Engine {
	return NewEngine(Config{DropThreshold: 0.02, Cooldown: time.Hour, DustUSD: 10})
}

func TestEvaluate_Threshold(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		max     float64
		held    float64
		want    bool
	}{
		{"3% drop alerts", 97, 100, 1000, true},
		{"exact 2% alerts", 98, 100, 1000, true},
		{"1% drop does not", 99, 100, 1000, false},
		{"price above max", 101, 100, 1000, false},
		{"dust holding", 50, 100, 9.99, false},
		{"no max", 97, 0, 1000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := defaultEngine()
			_, got := e.Evaluate("BTC", tt.current, tt.max, tt.held, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_AlertFields(t *testing.T) {
	e := defaultEngine()
	a, ok := e.Evaluate("ETH", 97, 100, 500, now)
	assert.True(t, ok)
	assert.Equal(t, "ETH", a.Symbol)
	assert.InDelta(t, 0.03, a.Drop, 1e-9)
	assert.Equal(t, now, a.At)
}

func TestEvaluate_Cooldown(t *testing.T) {
	e := defaultEngine()

	_, ok := e.Evaluate("BTC", 97, 100, 1000, now)
	assert.True(t, ok)

	_, ok = e.Evaluate("BTC", 90, 100, 1000, now.Add(30*time.Minute))
	assert.False(t, ok, "second alert inside cooldown must be suppressed")
	assert.True(t, e.InCooldown("BTC", now.Add(30*time.Minute)))

	_, ok = e.Evaluate("BTC", 90, 100, 1000, now.Add(time.Hour))
	assert.True(t, ok, "cooldown ends exactly at one hour")
}

func TestEvaluate_CooldownPerSymbol(t *testing.T) {
	e := defaultEngine()
	_, ok := e.Evaluate("BTC", 97, 100, 1000, now)
	assert.True(t, ok)
	_, ok = e.Evaluate("ETH", 97, 100, 1000, now)
	assert.True(t, ok)
}

func TestEvaluate_SuppressedCallsDoNotExtendCooldown(t *testing.T) {
	e := defaultEngine()
	e.Evaluate("BTC", 97, 100, 1000, now)
	e.Evaluate("BTC", 97, 100, 1000, now.Add(59*time.Minute))
	_, ok := e.Evaluate("BTC", 97, 100, 1000, now.Add(61*time.Minute))
	assert.True(t, ok)
}
