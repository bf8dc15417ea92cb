package portfolio

import (
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"CoinSentry/internal/model"
)

// DefaultSynonyms maps source-specific labels to canonical symbols.
var DefaultSynonyms = map[string]string{
	"USDC (HL)": "USDC",
}

// DefaultStables are priced at 1.0 when no quote is available.
var DefaultStables = []string{"USDT", "USDC", "FDUSD", "BUSD", "DAI"}

// Config controls valuation.
type Config struct {
	Synonyms       map[string]string
	Stables        []string
	DisplayDustUSD float64
}

// Item is one itemized line of a source.
type Item struct {
	Symbol   string
	Amount   float64
	Price    float64
	ValueUSD float64
}

// SourceValuation is the subtotal of one source.
type SourceValuation struct {
	Source string
	Items  []Item
	Total  float64
	// Hidden counts holdings below the display dust threshold; they are
	// included in Total.
	Hidden int
}

// Valuation is the whole portfolio.
type Valuation struct {
	Sources    []SourceValuation
	GrandTotal float64
}

// Source returns the valuation of the named source, if present.
func (v Valuation) Source(name string) (SourceValuation, bool) {
	return lo.Find(v.Sources, func(s SourceValuation) bool { return s.Source == name })
}

// Valuator converts holdings to USD.
type Valuator struct {
	synonyms    map[string]string
	stables     map[string]bool
	displayDust decimal.Decimal
}

// NewValuator creates a valuator, using the defaults for empty fields.
func NewValuator(cfg Config) *Valuator {
	syn := cfg.Synonyms
	if syn == nil {
		syn = DefaultSynonyms
	}
	stables := cfg.Stables
	if stables == nil {
		stables = DefaultStables
	}
	return &Valuator{
		synonyms:    syn,
		stables:     lo.SliceToMap(stables, func(s string) (string, bool) { return strings.ToUpper(s), true }),
		displayDust: decimal.NewFromFloat(cfg.DisplayDustUSD),
	}
}

// Canonical resolves a source label to the symbol used for pricing.
func (v *Valuator) Canonical(symbol string) string {
	if c, ok := v.synonyms[symbol]; ok {
		return c
	}
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// IsStable reports whether the canonical symbol is a stable coin.
func (v *Valuator) IsStable(symbol string) bool {
	return v.stables[v.Canonical(symbol)]
}

// Price returns the current USD price of symbol. Missing non-stable prices
// are 0.
func (v *Valuator) Price(symbol string, prices map[string]model.PriceInfo) float64 {
	c := v.Canonical(symbol)
	if p, ok := prices[c]; ok && p.Current > 0 {
		return p.Current
	}
	if v.stables[c] {
		return 1
	}
	return 0
}

// Value computes per-source subtotals and the grand total. Items are sorted
// by value descending, then symbol; sources by name.
func (v *Valuator) Value(holdings map[string]model.Holdings, prices map[string]model.PriceInfo) Valuation {
	var out Valuation
	grand := decimal.Zero

	for _, source := range lo.Keys(holdings) {
		amounts := make(map[string]float64)
		for sym, amt := range holdings[source] {
			if amt <= 0 {
				continue
			}
			amounts[v.Canonical(sym)] += amt
		}

		sv := SourceValuation{Source: source}
		total := decimal.Zero
		for sym, amt := range amounts {
			price := v.Price(sym, prices)
			value := decimal.NewFromFloat(amt).Mul(decimal.NewFromFloat(price))
			total = total.Add(value)
			if value.LessThan(v.displayDust) {
				sv.Hidden++
				continue
			}
			sv.Items = append(sv.Items, Item{
				Symbol:   sym,
				Amount:   amt,
				Price:    price,
				ValueUSD: value.InexactFloat64(),
			})
		}
		sort.Slice(sv.Items, func(i, j int) bool {
			if sv.Items[i].ValueUSD != sv.Items[j].ValueUSD {
				return sv.Items[i].ValueUSD > sv.Items[j].ValueUSD
			}
			return sv.Items[i].Symbol < sv.Items[j].Symbol
		})
		sv.Total = total.InexactFloat64()
		grand = grand.Add(total)
		out.Sources = append(out.Sources, sv)
	}

	sort.Slice(out.Sources, func(i, j int) bool { return out.Sources[i].Source < out.Sources[j].Source })
	out.GrandTotal = grand.InexactFloat64()
	return out
}
