package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinsentry_fetch_attempts_total",
			Help: "HTTP attempts made by the fetcher, by route and outcome",
		},
		[]string{"route", "outcome"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coinsentry_fetch_rate_limited_total",
			Help: "Responses with HTTP 429",
		},
	)

	ProxyPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coinsentry_proxy_pool_size",
			Help: "Endpoints currently held by the proxy pool",
		},
	)

	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinsentry_alerts_emitted_total",
			Help: "Price drop alerts emitted, by symbol",
		},
		[]string{"symbol"},
	)

	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coinsentry_scan_duration_seconds",
			Help:    "Duration of scans in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	ScanErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinsentry_scan_errors_total",
			Help: "Scans that returned an error",
		},
		[]string{"job"},
	)

	PortfolioValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coinsentry_portfolio_value_usd",
			Help: "Last computed portfolio value per source",
		},
		[]string{"source"},
	)

	CycleLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coinsentry_cycle_length",
			Help: "Snapshots accumulated in the current cycle",
		},
	)
)
