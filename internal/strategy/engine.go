package strategy

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"CoinSentry/internal/model"
)

// Classify splits the scanned symbols into the report sections.
func Classify(metrics []model.SymbolMetrics, rules Rules) *model.MarketSignal {
	sig := &model.MarketSignal{Scanned: len(metrics)}

	sig.Accumulation = lo.Filter(metrics, func(m model.SymbolMetrics, _ int) bool {
		return rules.isAccumulation(m)
	})

	byOI := append([]model.SymbolMetrics(nil), metrics...)
	sort.SliceStable(byOI, func(i, j int) bool { return byOI[i].OIChange > byOI[j].OIChange })
	sig.TopOI = byOI[:min(rules.TopOICount, len(byOI))]

	neg := lo.FilterMap(metrics, func(m model.SymbolMetrics, _ int) (model.FundingEntry, bool) {
		return model.FundingEntry{Symbol: m.Symbol, Rate: m.FundingRate}, m.FundingRate < 0
	})
	sort.SliceStable(neg, func(i, j int) bool { return neg[i].Rate < neg[j].Rate })
	sig.NegativeFunding = neg[:min(rules.ExtremeCount, len(neg))]

	pos := lo.FilterMap(metrics, func(m model.SymbolMetrics, _ int) (model.FundingEntry, bool) {
		return model.FundingEntry{Symbol: m.Symbol, Rate: m.FundingRate}, m.FundingRate > 0
	})
	sort.SliceStable(pos, func(i, j int) bool { return pos[i].Rate > pos[j].Rate })
	sig.PositiveFunding = pos[:min(rules.ExtremeCount, len(pos))]

	return sig
}

// Snapshot builds the cycle record of a classified scan. Accumulation
// entries win over top OI entries for the same symbol.
func Snapshot(sig *model.MarketSignal, at time.Time) model.Snapshot {
	coins := make(map[string]model.CoinData)
	for _, m := range sig.Accumulation {
		coins[m.Symbol] = model.CoinData{LSValue: m.LSRatio, Section: model.SectionAccumulation}
	}
	for _, m := range sig.TopOI {
		if _, ok := coins[m.Symbol]; ok {
			continue
		}
		coins[m.Symbol] = model.CoinData{
			LSValue:   m.LSRatio,
			Section:   model.SectionTopOI,
			ExtraInfo: fmt.Sprintf("F:%.3f%%", m.FundingRate),
		}
	}
	return model.Snapshot{Timestamp: at, Coins: coins}
}
