package notifier

import (
	"fmt"
	"math"
	"strings"
	"time"

	"CoinSentry/internal/alert"
	"CoinSentry/internal/model"
	"CoinSentry/internal/portfolio"
)

// TrendReportLimit caps the entries shown in a trend report.
const TrendReportLimit = 15

// FormatAlerts formats price drop alerts into one Telegram message.
func FormatAlerts(alerts []alert.Alert, window time.Duration) string {
	blocks := make([]string, 0, len(alerts))
	for _, a := range alerts {
		blocks = append(blocks, fmt.Sprintf("⚠️ *%s drop alert*\nDown `%.2f%%` within %s\nPrice: $%s (high $%s)\nHeld: $%.2f",
			a.Symbol, a.Drop*100, shortDuration(window), price(a.Current), price(a.Max), a.HeldUSD))
	}
	return strings.Join(blocks, "\n\n")
}

// FormatPortfolioReport formats a valuation with open positions.
func FormatPortfolioReport(v portfolio.Valuation, positions map[string][]model.Position, at time.Time) string {
	var b strings.Builder
	b.WriteString("📊 *Portfolio report*\n")
	b.WriteString(fmt.Sprintf("💰 *Total: $%.2f*\n", v.GrandTotal))
	b.WriteString("----------------\n")

	for _, s := range v.Sources {
		b.WriteString(fmt.Sprintf("\n%s *%s: $%.2f*\n", sourceIcon(s.Source), title(s.Source), s.Total))
		for _, it := range s.Items {
			b.WriteString(fmt.Sprintf("- %s: %s ($%.1f)\n", it.Symbol, amount(it.Amount), it.ValueUSD))
		}
		if s.Hidden > 0 {
			b.WriteString(fmt.Sprintf("- _%d small balances hidden_\n", s.Hidden))
		}
		for _, p := range positions[s.Source] {
			side := "long"
			if p.Size < 0 {
				side = "short"
			}
			b.WriteString(fmt.Sprintf("- %s %s %s\n", p.Coin, side, amount(math.Abs(p.Size))))
		}
	}
	if len(v.Sources) == 0 {
		b.WriteString("No balances available.\n")
	}

	b.WriteString(fmt.Sprintf("\n_Updated: %s_", at.Format("2006-01-02 15:04")))
	return b.String()
}

// FormatMarketScan formats the open interest scan.
func FormatMarketScan(sig *model.MarketSignal, at time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🛰️ *%s open interest scan* (%d pairs)\n\n", at.Format("15:04"), sig.Scanned))

	b.WriteString("💎 *Accumulation (flat price, OI up, top traders long)*\n")
	if len(sig.Accumulation) == 0 {
		b.WriteString("• none\n")
	}
	for _, m := range sig.Accumulation {
		b.WriteString(fmt.Sprintf("• `%s`: OI:%+.1f%% | LS:%.2f\n", m.Symbol, m.OIChange, m.LSRatio))
	}

	b.WriteString("\n📈 *30min OI growth*\n")
	for _, m := range sig.TopOI {
		b.WriteString(fmt.Sprintf("• `%s`: %+.1f%% | LS:%.2f | F:%.3f%%\n", m.Symbol, m.OIChange, m.LSRatio, m.FundingRate))
	}

	b.WriteString("\n☢️ *Extreme funding*\n")
	for _, f := range sig.NegativeFunding {
		b.WriteString(fmt.Sprintf("• `%s` (neg): `%.3f%%`\n", f.Symbol, f.Rate))
	}
	for _, f := range sig.PositiveFunding {
		b.WriteString(fmt.Sprintf("• `%s` (pos): `%.3f%%`\n", f.Symbol, f.Rate))
	}
	return b.String()
}

// FormatScanFailure is sent when the market scan has no usable data.
func FormatScanFailure(reason string, at time.Time) string {
	return fmt.Sprintf("⚠️ *%s scan failed*\n%s\n(direct route and all proxies failed or the IP is still restricted)", at.Format("15:04"), reason)
}

// FormatTrendReport formats the cross-cycle long/short trend.
func FormatTrendReport(entries []model.TrendEntry, snapshots int) string {
	if len(entries) == 0 {
		return "🤖 *LS trend analysis*\nNo symbol grew its LS ratio this cycle."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🤖 *LS trend analysis (last %d scans)*\n%d symbols with rising LS:\n\n", snapshots, len(entries)))
	for i, e := range entries {
		if i == TrendReportLimit {
			break
		}
		b.WriteString(fmt.Sprintf("*%d. %s*\n", i+1, e.Symbol))
		b.WriteString(fmt.Sprintf("   • LS: %.2f → %.2f (+%.1f%%), seen %d times\n", e.First, e.Last, e.GrowthPct, e.Appearances))
	}
	return b.String()
}

// FormatCycleStatus summarizes the cycle in progress.
func FormatCycleStatus(snaps []model.Snapshot, capacity int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔄 *Cycle*: %d/%d scans\n", len(snaps), capacity))
	for _, s := range snaps {
		b.WriteString(fmt.Sprintf("• %s: %d coins\n", s.Timestamp.Format("01-02 15:04"), len(s.Coins)))
	}
	return b.String()
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return "Available commands:\n" +
		"/report - refresh balances and send the portfolio report\n" +
		"/status - proxy pool, last scan and cycle status\n" +
		"/cycle - snapshots in the current cycle\n" +
		"/scan - run the open interest scan now"
}

// FormatDashboard builds the daily BTC dashboard embed.
func FormatDashboard(d *model.DashboardIndicators, at time.Time) Embed {
	color := ColorGreen
	if d.Overheated() {
		color = ColorRed
	}

	fg := "N/A"
	if d.FearGreedLabel != "" {
		fg = fmt.Sprintf("%d (%s)", d.FearGreed, d.FearGreedLabel)
	}
	funding := "N/A"
	if d.AnnualFunding != 0 {
		funding = fmt.Sprintf("%+.2f%%", d.AnnualFunding)
	}
	oiStatus := "Healthy"
	if d.AltShare > 55 {
		oiStatus = "⚠️ Overheated (alts dominate)"
	}

	heat := fmt.Sprintf("**Fear & Greed**: %s\n**Funding Rate (annual)**: %s\n**Open Interest**:\n • BTC: $%.1fB\n • ETH: $%.1fB\n • Alts: $%.1fB, %.0f%% (%s)",
		fg, funding, d.BTCOI/1e9, d.ETHOI/1e9, d.AltOI/1e9, d.AltShare, oiStatus)

	spike := "✅ No alt above 90% of BTC volume"
	if len(d.HotAlts) > 0 {
		spike = strings.Join(d.HotAlts, "\n")
	}

	var models strings.Builder
	models.WriteString(fmt.Sprintf("**BTC Price**: $%s\n", thousands(d.BTCPrice)))
	if d.MA200 > 0 {
		models.WriteString(fmt.Sprintf("**MA200**: $%s (diff %+.1f%%)\n", thousands(d.MA200), (d.BTCPrice-d.MA200)/d.MA200*100))
	}
	if d.MA111 > 0 {
		models.WriteString(fmt.Sprintf("**MA111**: $%s\n", thousands(d.MA111)))
	}
	models.WriteString(fmt.Sprintf("**Daily RSI(14)**: %.0f\n", d.DailyRSI))
	if d.STHRealized > 0 {
		models.WriteString(fmt.Sprintf("**STH realized price**: $%s\n", thousands(d.STHRealized)))
	}
	if d.MVRVZScore != 0 {
		models.WriteString(fmt.Sprintf("**MVRV Z-score**: %.2f\n", d.MVRVZScore))
	}

	e := Embed{
		Title: "🛡️ BTC daily dashboard",
		Color: color,
		Fields: []EmbedField{
			{Name: "1. Speculation & sentiment", Value: heat},
			{Name: "2. Volume spike", Value: spike},
			{Name: "3. Trend & valuation", Value: strings.TrimRight(models.String(), "\n")},
		},
	}
	e.SetFooter(fmt.Sprintf("Generated: %s\nSources: Coinalyze, alternative.me, Coinglass, Binance", at.UTC().Format("2006-01-02 15:04 UTC")))
	return e
}

func sourceIcon(source string) string {
	switch source {
	case "binance":
		return "🔶"
	case "gate":
		return "🚪"
	case "hyperliquid":
		return "💧"
	default:
		return "•"
	}
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func amount(v float64) string {
	if v >= 1000 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.4g", v)
}

func price(v float64) string {
	if v >= 1 {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.6f", v)
}

func thousands(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func shortDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dmin", int(d.Minutes()))
}
