package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"CoinSentry/internal/alert"
	"CoinSentry/internal/collector"
	"CoinSentry/internal/config"
	"CoinSentry/internal/cycle"
	"CoinSentry/internal/fetcher"
	"CoinSentry/internal/logger"
	"CoinSentry/internal/notifier"
	"CoinSentry/internal/portfolio"
	"CoinSentry/internal/proxypool"
	"CoinSentry/internal/recorder"
	"CoinSentry/internal/scan"
	"CoinSentry/internal/scheduler"
	"CoinSentry/internal/server"
	"CoinSentry/internal/store"
	"CoinSentry/internal/strategy"
	"CoinSentry/internal/tracker"
)

func main() {
	var (
		cfgPath = flag.StringP("config", "c", envOr("CONFIG_PATH", "configs/config.yaml"), "path to the YAML config")
		once    = flag.Bool("once", false, "run a single job and exit")
		job     = flag.String("job", scheduler.JobAlert, "job for --once: alert, report, market or dashboard")
		report  = flag.Bool("report", false, "with --once, force the portfolio report")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Setup(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "setup logger: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	log.Info().Msg("CoinSentry starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Outbound HTTP
	pool := proxypool.New(cfg.Proxy.Sources, cfg.Proxy.MaxPerSource, nil)
	f := fetcher.New(pool, fetcher.Options{
		DirectTimeout:    cfg.Fetch.DirectTimeout,
		ProxyTimeout:     cfg.Fetch.ProxyTimeout,
		MaxProxyAttempts: cfg.Fetch.MaxProxyAttempts,
		Policy: fetcher.RetryPolicy{
			MaxAttempts:       cfg.Fetch.MaxAttempts,
			DefaultRetryAfter: cfg.Fetch.DefaultRetryAfter,
		},
	})

	// Balance sources
	var sources []collector.BalanceSource
	if cfg.Binance.Enabled() {
		sources = append(sources, collector.NewBinanceAccount(cfg.Binance.APIKey, cfg.Binance.APISecret))
	}
	if cfg.Gate.Enabled() {
		sources = append(sources, collector.NewGate(cfg.Gate.APIKey, cfg.Gate.APISecret, f))
	}
	if cfg.Hyperliquid.Wallet != "" {
		sources = append(sources, collector.NewHyperliquid(cfg.Hyperliquid.Wallet, f))
	}
	if len(sources) == 0 {
		log.Warn().Msg("no balance source configured, portfolio scans will be empty")
	}

	// Persistence
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("open store")
	}
	defer st.Close()

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	// Delivery
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.ParseMode, cfg.Telegram.Proxy)
	var discord scan.EmbedSender
	if cfg.Discord.WebhookURL != "" {
		discord = notifier.NewDiscordNotifier(cfg.Discord.WebhookURL, cfg.Discord.Username)
	}

	// Jobs
	loc := cfg.Location()
	futures := collector.NewBinanceFutures(f)
	agg := cycle.New(st, cfg.Cycle.Key, cfg.Cycle.Capacity)

	spot := collector.NewBinanceSpot(f)
	ps := &scan.PortfolioScanner{
		Holdings: collector.NewCollector(sources...),
		Prices:   spot,
		Spot:     spot,
		Tracker:  tracker.New(cfg.Monitor.Window),
		Alerts: alert.NewEngine(alert.Config{
			DropThreshold: cfg.Monitor.DropThreshold,
			Cooldown:      cfg.Monitor.Cooldown,
			DustUSD:       cfg.Monitor.AlertDustUSD,
		}),
		Valuator:    portfolio.NewValuator(portfolio.Config{DisplayDustUSD: cfg.Monitor.DisplayDustUSD}),
		Messenger:   tn,
		Recorder:    rec,
		Window:      cfg.Monitor.Window,
		Concurrency: cfg.Monitor.ScanConcurrency,
		Location:    loc,
	}
	ms := &scan.MarketScanner{
		Futures:     futures,
		Cycle:       agg,
		Messenger:   tn,
		Recorder:    rec,
		Rules:       strategy.DefaultRules,
		TopSymbols:  cfg.Monitor.TopSymbols,
		Concurrency: cfg.Monitor.ScanConcurrency,
		Location:    loc,
	}
	ds := &scan.DashboardScanner{
		Market:     futures,
		Sentiment:  collector.NewSentiment(f),
		Discord:    discord,
		BatchPause: time.Second,
	}
	if cfg.Coinalyze.APIKey != "" {
		ds.Derivatives = collector.NewCoinalyze(cfg.Coinalyze.APIKey, f)
	}
	if cfg.Coinglass.APIKey != "" {
		ds.OnChain = collector.NewCoinglass(cfg.Coinglass.APIKey, f)
	}

	sched := scheduler.NewScheduler(ctx, ps, ms, ds, agg, pool, tn)
	sched.Timeout = cfg.Monitor.ScanTimeout

	if *once {
		name := *job
		if *report && name == scheduler.JobAlert {
			name = scheduler.JobReport
		}
		log.Info().Str("job", name).Msg("running once")
		if err := sched.RunOnce(name); err != nil {
			log.Error().Err(err).Str("job", name).Msg("job failed")
			os.Exit(1)
		}
		return
	}

	if err := sched.RegisterAll(scheduler.Crons{
		Alert:     cfg.Schedule.AlertCron,
		Report:    cfg.Schedule.ReportCron,
		Market:    cfg.Schedule.MarketCron,
		Dashboard: cfg.Schedule.DashboardCron,
	}); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	var srv *server.Server
	if cfg.Server.Addr != "" {
		srv = server.New(cfg.Server.Addr, func(ctx context.Context) any { return sched.Status(ctx) })
		srv.Start()
	}

	go func() {
		n := pool.Refresh(ctx)
		log.Info().Int("proxies", n).Msg("proxy pool warmed")
	}()

	go tn.StartPolling(ctx, sched.HandleCommand)
	log.Info().Msg("telegram polling started")

	go sched.TrySend("🚀 CoinSentry started")
	if *report {
		go sched.RunOnce(scheduler.JobReport)
	}

	log.Info().Msg("CoinSentry is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping")
	cancel()
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("stop status server")
		}
	}
	log.Info().Msg("CoinSentry stopped")
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
