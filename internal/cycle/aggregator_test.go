package cycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinSentry/internal/model"
	"CoinSentry/internal/store"
)

const key = "binance_monitor/state"

func snapshot(at time.Time, coins map[string]float64) model.Snapshot {
	s := model.Snapshot{Timestamp: at, Coins: make(map[string]model.CoinData)}
	for sym, ls := range coins {
		s.Coins[sym] = model.CoinData{LSValue: ls, Section: model.SectionAccumulation}
	}
	return s
}

// flakyStore fails Merge once the given number of merges has succeeded.
type flakyStore struct {
	*store.Memory
	okMerges int
	merges   int
}

func (f *flakyStore) Merge(ctx context.Context, k string, fields store.Document) error {
	f.merges++
	if f.merges > f.okMerges {
		return errors.New("store offline")
	}
	return f.Memory.Merge(ctx, k, fields)
}

func TestAppend_CompletesAtCapacity(t *testing.T) {
	ctx := context.Background()
	agg := New(store.NewMemory(), key, 4)
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		out, err := agg.Append(ctx, snapshot(t0.Add(time.Duration(i)*30*time.Minute), map[string]float64{"BTCUSDT": 1}))
		require.NoError(t, err)
		assert.Equal(t, i, out.Length)
		assert.False(t, out.Completed)
	}

	out, err := agg.Append(ctx, snapshot(t0.Add(2*time.Hour), map[string]float64{"BTCUSDT": 1.5}))
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.Equal(t, 0, out.Length)
	require.Len(t, out.Report, 1)
	assert.InDelta(t, 50.0, out.Report[0].GrowthPct, 1e-9)

	cur, err := agg.Current(ctx)
	require.NoError(t, err)
	assert.Empty(t, cur)
}

func TestAppend_ResetFailureKeepsCycle(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	// two appends succeed, the reset fails
	fs := &flakyStore{Memory: mem, okMerges: 2}
	agg := New(fs, key, 2)

	_, err := agg.Append(ctx, snapshot(time.Now(), map[string]float64{"ETHUSDT": 1}))
	require.NoError(t, err)
	out, err := agg.Append(ctx, snapshot(time.Now(), map[string]float64{"ETHUSDT": 2}))
	require.Error(t, err)
	assert.False(t, out.Completed)
	assert.Nil(t, out.Report)
	assert.Equal(t, 2, out.Length)

	cur, err := New(mem, key, 2).Current(ctx)
	require.NoError(t, err)
	assert.Len(t, cur, 2, "snapshots must stay for the next attempt")
}

func TestAppend_CompletesPendingFullCycle(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{Memory: store.NewMemory(), okMerges: 2}
	agg := New(fs, key, 2)

	_, err := agg.Append(ctx, snapshot(time.Now(), map[string]float64{"ETHUSDT": 1}))
	require.NoError(t, err)
	_, err = agg.Append(ctx, snapshot(time.Now(), map[string]float64{"ETHUSDT": 2}))
	require.Error(t, err)

	fs.okMerges = 100
	out, err := agg.Append(ctx, snapshot(time.Now(), map[string]float64{"ETHUSDT": 3}))
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.Equal(t, 1, out.Length)
	require.Len(t, out.Report, 1)
	assert.Equal(t, 2, out.Report[0].Appearances)
	assert.InDelta(t, 100.0, out.Report[0].GrowthPct, 1e-9)

	cur, err := agg.Current(ctx)
	require.NoError(t, err)
	require.Len(t, cur, 1)
	assert.Equal(t, 3.0, cur[0].Coins["ETHUSDT"].LSValue)
}

// slowStore widens the gap between the read and the write of an append.
type slowStore struct {
	*store.Memory
}

func (s slowStore) Get(ctx context.Context, k string) (store.Document, error) {
	time.Sleep(5 * time.Millisecond)
	return s.Memory.Get(ctx, k)
}

func TestAppend_ConcurrentAppendsAreSerialized(t *testing.T) {
	ctx := context.Background()
	agg := New(slowStore{store.NewMemory()}, key, 100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := agg.Append(ctx, snapshot(time.Now(), map[string]float64{"BTCUSDT": float64(i + 1)}))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cur, err := agg.Current(ctx)
	require.NoError(t, err)
	assert.Len(t, cur, 8)
}

func TestAppend_AppendFailureReturnsError(t *testing.T) {
	fs := &flakyStore{Memory: store.NewMemory(), okMerges: 0}
	agg := New(fs, key, 4)
	_, err := agg.Append(context.Background(), snapshot(time.Now(), nil))
	assert.Error(t, err)
}

func TestAnalyze_RankingAndExclusion(t *testing.T) {
	t0 := time.Now()
	snaps := []model.Snapshot{
		snapshot(t0, map[string]float64{"AAA": 1.0, "BBB": 2.0, "ONCE": 1.0, "DOWN": 3.0, "ZERO": 0}),
		snapshot(t0.Add(time.Minute), map[string]float64{"AAA": 1.2, "DOWN": 2.0, "ZERO": 1}),
		snapshot(t0.Add(2*time.Minute), map[string]float64{"AAA": 1.5, "BBB": 2.2}),
	}
	got := Analyze(snaps)
	require.Len(t, got, 2)
	assert.Equal(t, "AAA", got[0].Symbol)
	assert.InDelta(t, 50.0, got[0].GrowthPct, 1e-9)
	assert.Equal(t, 3, got[0].Appearances)
	assert.Equal(t, "BBB", got[1].Symbol)
	assert.InDelta(t, 10.0, got[1].GrowthPct, 1e-9)
}

func TestAnalyze_Empty(t *testing.T) {
	assert.Empty(t, Analyze(nil))
}
