package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinSentry/internal/alert"
	"CoinSentry/internal/model"
	"CoinSentry/internal/portfolio"
)

func TestTelegram_Send(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "Markdown", "")
	tn.BaseURL = srv.URL
	require.NoError(t, tn.Send(context.Background(), "hello"))
	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "Markdown", got["parse_mode"])
}

func TestTelegram_SendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("T", "1", "", "")
	tn.BaseURL = srv.URL
	assert.Error(t, tn.Send(context.Background(), "x"))
	assert.Error(t, tn.SendWithRetry(context.Background(), "x", 0))
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	text := "aaaa\nbbbb\ncccc\n"
	parts := splitMessage(text, 10)
	assert.Equal(t, []string{"aaaa\nbbbb\n", "cccc\n"}, parts)
	assert.Equal(t, text, strings.Join(parts, ""))

	long := strings.Repeat("x", 25)
	parts = splitMessage(long, 10)
	assert.Equal(t, long, strings.Join(parts, ""))
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 10)
	}
}

func TestSplitMessage_KeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("📊", 10) // 4 bytes each
	parts := splitMessage(text, 10)
	assert.Equal(t, text, strings.Join(parts, ""))
	for _, p := range parts {
		assert.True(t, utf8.ValidString(p), "part %q", p)
		assert.LessOrEqual(t, len(p), 10)
	}
}

func TestTelegram_RetryResendsOnlyFailedPart(t *testing.T) {
	var texts []string
	failed := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got map[string]string
		json.NewDecoder(r.Body).Decode(&got)
		texts = append(texts, got["text"])
		if len(texts) == 2 && !failed {
			failed = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("T", "1", "", "")
	tn.BaseURL = srv.URL
	long := strings.Repeat("a", maxMessageLen-1) + "\n" + "tail\n"
	require.NoError(t, tn.SendWithRetry(context.Background(), long, 1))

	require.Len(t, texts, 3)
	assert.Equal(t, "tail\n", texts[1])
	assert.Equal(t, "tail\n", texts[2])
	assert.Equal(t, 1, strings.Count(strings.Join(texts, ""), strings.Repeat("a", maxMessageLen-1)))
}

func TestDiscord_SendEmbed(t *testing.T) {
	var payload struct {
		Username string  `json:"username"`
		Embeds   []Embed `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordNotifier(srv.URL, "CoinSentry")
	e := Embed{Title: "t", Color: ColorRed, Fields: []EmbedField{{Name: "a", Value: "b"}}}
	e.SetFooter("f")
	require.NoError(t, d.SendEmbed(context.Background(), e))
	assert.Equal(t, "CoinSentry", payload.Username)
	require.Len(t, payload.Embeds, 1)
	assert.Equal(t, ColorRed, payload.Embeds[0].Color)
	assert.Equal(t, "f", payload.Embeds[0].Footer.Text)
}

func TestFormatAlerts(t *testing.T) {
	msg := FormatAlerts([]alert.Alert{{Symbol: "BTC", Current: 97, Max: 100, Drop: 0.03, HeldUSD: 970}}, 30*time.Minute)
	assert.Contains(t, msg, "BTC drop alert")
	assert.Contains(t, msg, "3.00%")
	assert.Contains(t, msg, "30min")
}

func TestFormatPortfolioReport(t *testing.T) {
	v := portfolio.Valuation{
		GrandTotal: 31000,
		Sources: []portfolio.SourceValuation{{
			Source: "binance",
			Total:  31000,
			Items: []portfolio.Item{
				{Symbol: "BTC", Amount: 0.5, Price: 50000, ValueUSD: 25000},
				{Symbol: "ETH", Amount: 2, Price: 3000, ValueUSD: 6000},
			},
			Hidden: 1,
		}},
	}
	pos := map[string][]model.Position{"binance": {{Coin: "SOL", Size: -3}}}
	msg := FormatPortfolioReport(v, pos, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	assert.Contains(t, msg, "Total: $31000.00")
	assert.Less(t, strings.Index(msg, "BTC"), strings.Index(msg, "ETH"))
	assert.Contains(t, msg, "1 small balances hidden")
	assert.Contains(t, msg, "SOL short 3")
	assert.Contains(t, msg, "2024-05-01 08:00")
}

func TestFormatTrendReport(t *testing.T) {
	assert.Contains(t, FormatTrendReport(nil, 4), "No symbol")

	var entries []model.TrendEntry
	for i := 0; i < 20; i++ {
		entries = append(entries, model.TrendEntry{Symbol: "S", First: 1, Last: 2, GrowthPct: 100, Appearances: 2})
	}
	msg := FormatTrendReport(entries, 4)
	assert.Contains(t, msg, "20 symbols")
	assert.Contains(t, msg, "*15. S*")
	assert.NotContains(t, msg, "*16. S*")
}

func TestFormatMarketScan(t *testing.T) {
	sig := &model.MarketSignal{
		Scanned:         50,
		TopOI:           []model.SymbolMetrics{{Symbol: "BTCUSDT", OIChange: 3.2, LSRatio: 1.5, FundingRate: 0.01}},
		NegativeFunding: []model.FundingEntry{{Symbol: "XUSDT", Rate: -0.5}},
	}
	msg := FormatMarketScan(sig, time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	assert.Contains(t, msg, "09:30")
	assert.Contains(t, msg, "• none")
	assert.Contains(t, msg, "`BTCUSDT`: +3.2%")
	assert.Contains(t, msg, "`XUSDT` (neg): `-0.500%`")
}

func TestFormatDashboard(t *testing.T) {
	d := &model.DashboardIndicators{BTCPrice: 65000, MA200: 50000, FearGreed: 70, FearGreedLabel: "Greed", AltShare: 60}
	e := FormatDashboard(d, time.Now())
	assert.Equal(t, ColorRed, e.Color)
	require.Len(t, e.Fields, 3)
	assert.Contains(t, e.Fields[0].Value, "70 (Greed)")
	assert.Contains(t, e.Fields[2].Value, "$65,000")
	assert.Contains(t, e.Fields[2].Value, "+30.0%")

	calm := FormatDashboard(&model.DashboardIndicators{BTCPrice: 1}, time.Now())
	assert.Equal(t, ColorGreen, calm.Color)
}

func TestThousands(t *testing.T) {
	assert.Equal(t, "1,234,567", thousands(1234567))
	assert.Equal(t, "999", thousands(999))
	assert.Equal(t, "-1,000", thousands(-1000))
}
