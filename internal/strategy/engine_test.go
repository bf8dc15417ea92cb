package strategy

import (
	"testing"
	"time"

	"CoinSentry/internal/model"
)

func sample() []model.SymbolMetrics {
	return []model.SymbolMetrics{
		{Symbol: "AAAUSDT", PriceChange: 1, OIChange: 3, LSRatio: 1.5, FundingRate: 0.01},
		{Symbol: "BBBUSDT", PriceChange: 8, OIChange: 9, LSRatio: 2.0, FundingRate: 0.05},
		{Symbol: "CCCUSDT", PriceChange: -1, OIChange: 1.0, LSRatio: 1.3, FundingRate: -0.2},
		{Symbol: "DDDUSDT", PriceChange: 0, OIChange: 2, LSRatio: 1.2, FundingRate: -0.05},
		{Symbol: "EEEUSDT", PriceChange: -3, OIChange: 5, LSRatio: 3.0, FundingRate: 0},
		{Symbol: "FFFUSDT", PriceChange: 2, OIChange: -4, LSRatio: 0.8, FundingRate: 0.1},
		{Symbol: "GGGUSDT", PriceChange: 4.9, OIChange: 1.6, LSRatio: 1.21, FundingRate: -0.01},
	}
}

func TestClassify_Accumulation(t *testing.T) {
	sig := Classify(sample(), DefaultRules)
	if len(sig.Accumulation) != 2 {
		t.Fatalf("expected 2 accumulation symbols, got %d", len(sig.Accumulation))
	}
	if sig.Accumulation[0].Symbol != "AAAUSDT" || sig.Accumulation[1].Symbol != "GGGUSDT" {
		t.Errorf("unexpected accumulation set: %+v", sig.Accumulation)
	}
	if sig.Scanned != 7 {
		t.Errorf("scanned = %d, want 7", sig.Scanned)
	}
}

func TestClassify_TopOI(t *testing.T) {
	sig := Classify(sample(), DefaultRules)
	if len(sig.TopOI) != 5 {
		t.Fatalf("expected 5 top OI symbols, got %d", len(sig.TopOI))
	}
	want := []string{"BBBUSDT", "EEEUSDT", "AAAUSDT", "DDDUSDT", "GGGUSDT"}
	for i, w := range want {
		if sig.TopOI[i].Symbol != w {
			t.Errorf("TopOI[%d] = %s, want %s", i, sig.TopOI[i].Symbol, w)
		}
	}
}

func TestClassify_ExtremeFunding(t *testing.T) {
	sig := Classify(sample(), DefaultRules)
	if len(sig.NegativeFunding) != 3 {
		t.Fatalf("expected 3 negative, got %d", len(sig.NegativeFunding))
	}
	if sig.NegativeFunding[0].Symbol != "CCCUSDT" {
		t.Errorf("most negative = %s, want CCCUSDT", sig.NegativeFunding[0].Symbol)
	}
	if len(sig.PositiveFunding) != 3 {
		t.Fatalf("expected 3 positive, got %d", len(sig.PositiveFunding))
	}
	if sig.PositiveFunding[0].Symbol != "FFFUSDT" {
		t.Errorf("most positive = %s, want FFFUSDT", sig.PositiveFunding[0].Symbol)
	}
	for _, f := range sig.PositiveFunding {
		if f.Symbol == "EEEUSDT" {
			t.Error("zero funding must not be listed")
		}
	}
}

func TestClassify_Empty(t *testing.T) {
	sig := Classify(nil, DefaultRules)
	if len(sig.TopOI) != 0 || len(sig.Accumulation) != 0 {
		t.Errorf("expected empty signal, got %+v", sig)
	}
}

func TestSnapshot_AccumulationWins(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot(Classify(sample(), DefaultRules), at)

	if got := snap.Coins["AAAUSDT"].Section; got != model.SectionAccumulation {
		t.Errorf("AAAUSDT section = %s, want accumulation", got)
	}
	bbb := snap.Coins["BBBUSDT"]
	if bbb.Section != model.SectionTopOI {
		t.Errorf("BBBUSDT section = %s, want top_oi", bbb.Section)
	}
	if bbb.ExtraInfo != "F:0.050%" {
		t.Errorf("BBBUSDT extra = %q", bbb.ExtraInfo)
	}
	if bbb.LSValue != 2.0 {
		t.Errorf("BBBUSDT ls = %v", bbb.LSValue)
	}
	if _, ok := snap.Coins["FFFUSDT"]; ok {
		t.Error("FFFUSDT is in neither section")
	}
	if !snap.Timestamp.Equal(at) {
		t.Errorf("timestamp = %v", snap.Timestamp)
	}
}
