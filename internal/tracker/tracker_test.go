package tracker

import (
	"testing"
	"time"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestRecord_PrunesOutsideWindow(t *testing.T) {
	tr := New(30 * time.Minute)
	tr.Record("BTC", 100, t0)
	tr.Record("BTC", 90, t0.Add(31*time.Minute))

	samples := tr.Samples("BTC")
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	if samples[0].Price != 90 {
		t.Errorf("expected retained price 90, got %v", samples[0].Price)
	}
	cur, max := tr.CurrentAndMax("BTC")
	if cur != 90 || max != 90 {
		t.Errorf("expected (90, 90), got (%v, %v)", cur, max)
	}
}

func TestRecord_KeepsSamplesInsideWindow(t *testing.T) {
	tr := New(30 * time.Minute)
	tr.Record("ETH", 100, t0)
	tr.Record("ETH", 120, t0.Add(10*time.Minute))
	tr.Record("ETH", 97, t0.Add(29*time.Minute))

	cur, max := tr.CurrentAndMax("ETH")
	if cur != 97 {
		t.Errorf("current = %v, want 97", cur)
	}
	if max != 120 {
		t.Errorf("max = %v, want 120", max)
	}
}

func TestRecord_ExactWindowBoundaryIsDropped(t *testing.T) {
	tr := New(30 * time.Minute)
	tr.Record("SOL", 50, t0)
	tr.Record("SOL", 40, t0.Add(30*time.Minute))
	if n := len(tr.Samples("SOL")); n != 1 {
		t.Errorf("expected 1 sample, got %d", n)
	}
}

func TestRecord_IgnoresNonPositive(t *testing.T) {
	tr := New(0)
	tr.Record("DOGE", 0, t0)
	tr.Record("DOGE", -1, t0)
	if n := len(tr.Samples("DOGE")); n != 0 {
		t.Errorf("expected no samples, got %d", n)
	}
}

func TestCurrentAndMax_Unknown(t *testing.T) {
	tr := New(time.Minute)
	cur, max := tr.CurrentAndMax("XRP")
	if cur != 0 || max != 0 {
		t.Errorf("expected zeros, got (%v, %v)", cur, max)
	}
}

func TestRecord_SymbolsIndependent(t *testing.T) {
	tr := New(30 * time.Minute)
	tr.Record("A", 1, t0)
	tr.Record("B", 2, t0.Add(time.Hour))
	if n := len(tr.Samples("A")); n != 1 {
		t.Errorf("A pruned by B's insert: %d samples", n)
	}
}
