package cycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"CoinSentry/internal/metrics"
	"CoinSentry/internal/model"
	"CoinSentry/internal/store"
)

const (
	fieldCurrentCycle = "current_cycle"
	fieldUpdatedAt    = "updated_at"
	lockTTL           = 30 * time.Second
)

// Outcome is the result of one Append.
type Outcome struct {
	// Length is the cycle length after the call; 0 once a cycle completed.
	Length    int
	Completed bool
	// Report holds the trend entries of a completed cycle.
	Report []model.TrendEntry
}

// Aggregator accumulates market snapshots in a persisted cycle and runs the
// trend analysis when the cycle is full. Appends within one process are
// serialized; stores that implement store.Locker also exclude other
// processes writing the same key.
type Aggregator struct {
	mu       sync.Mutex
	store    store.DocumentStore
	key      string
	capacity int
}

// New creates an aggregator. Capacity defaults to 4.
func New(s store.DocumentStore, key string, capacity int) *Aggregator {
	if capacity <= 0 {
		capacity = 4
	}
	return &Aggregator{store: s, key: key, capacity: capacity}
}

// Capacity returns the number of snapshots per cycle.
func (a *Aggregator) Capacity() int { return a.capacity }

// Append adds snap to the cycle. When the cycle reaches capacity it is
// re-read, analyzed and reset in one step; if the reset fails no report is
// returned and the snapshots stay in place for the next attempt. A cycle
// found already full is completed first and snap starts the next one, so a
// cycle never holds more than capacity snapshots.
func (a *Aggregator) Append(ctx context.Context, snap model.Snapshot) (Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if l, ok := a.store.(store.Locker); ok {
		unlock, err := l.Lock(ctx, a.key, lockTTL)
		if err != nil {
			return Outcome{}, fmt.Errorf("lock cycle: %w", err)
		}
		defer unlock()
	}

	snaps, err := a.load(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if len(snaps) >= a.capacity {
		return a.completePending(ctx, snaps, snap)
	}
	snaps = append(snaps, snap)
	if err := a.save(ctx, snaps); err != nil {
		return Outcome{}, fmt.Errorf("append snapshot: %w", err)
	}
	metrics.CycleLength.Set(float64(len(snaps)))
	log.Info().Int("length", len(snaps)).Int("capacity", a.capacity).Msg("snapshot appended to cycle")

	if len(snaps) < a.capacity {
		return Outcome{Length: len(snaps)}, nil
	}

	full, err := a.load(ctx)
	if err != nil {
		return Outcome{Length: len(snaps)}, fmt.Errorf("reload full cycle: %w", err)
	}
	report := Analyze(full)

	if err := a.save(ctx, []model.Snapshot{}); err != nil {
		return Outcome{Length: len(full)}, fmt.Errorf("reset cycle: %w", err)
	}
	metrics.CycleLength.Set(0)
	log.Info().Int("snapshots", len(full)).Int("growing", len(report)).Msg("cycle completed")

	return Outcome{Length: 0, Completed: true, Report: report}, nil
}

// completePending analyzes a cycle left full by a failed reset and replaces
// it with a new cycle holding only next.
func (a *Aggregator) completePending(ctx context.Context, pending []model.Snapshot, next model.Snapshot) (Outcome, error) {
	report := Analyze(pending)
	if err := a.save(ctx, []model.Snapshot{next}); err != nil {
		return Outcome{Length: len(pending)}, fmt.Errorf("reset cycle: %w", err)
	}
	metrics.CycleLength.Set(1)
	log.Warn().Int("snapshots", len(pending)).Int("growing", len(report)).Msg("pending full cycle completed")
	return Outcome{Length: 1, Completed: true, Report: report}, nil
}

// Current returns the snapshots accumulated so far.
func (a *Aggregator) Current(ctx context.Context) ([]model.Snapshot, error) {
	return a.load(ctx)
}

func (a *Aggregator) load(ctx context.Context) ([]model.Snapshot, error) {
	doc, err := a.store.Get(ctx, a.key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cycle: %w", err)
	}
	var snaps []model.Snapshot
	if _, err := store.Field(doc, fieldCurrentCycle, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

func (a *Aggregator) save(ctx context.Context, snaps []model.Snapshot) error {
	doc, err := store.Fields(map[string]any{
		fieldCurrentCycle: snaps,
		fieldUpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return a.store.Merge(ctx, a.key, doc)
}

// Analyze compares the first and last LS value of every symbol seen in at
// least two snapshots and returns those that grew, by growth descending.
// Symbols whose first value is not positive are skipped.
func Analyze(snaps []model.Snapshot) []model.TrendEntry {
	history := make(map[string][]float64)
	for _, s := range snaps {
		for sym, c := range s.Coins {
			history[sym] = append(history[sym], c.LSValue)
		}
	}

	var out []model.TrendEntry
	for sym, vals := range history {
		if len(vals) < 2 {
			continue
		}
		first, last := vals[0], vals[len(vals)-1]
		if first <= 0 || last <= first {
			continue
		}
		out = append(out, model.TrendEntry{
			Symbol:      sym,
			First:       first,
			Last:        last,
			GrowthPct:   (last - first) / first * 100,
			Appearances: len(vals),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GrowthPct != out[j].GrowthPct {
			return out[i].GrowthPct > out[j].GrowthPct
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
