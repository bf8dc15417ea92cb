package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"CoinSentry/internal/logger"
	"CoinSentry/internal/proxypool"
	"CoinSentry/internal/store"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken  string `yaml:"bot_token" validate:"required"`
		ChatID    string `yaml:"chat_id" validate:"required"`
		ParseMode string `yaml:"parse_mode" default:"Markdown" validate:"oneof=Markdown MarkdownV2 HTML"`
		// Proxy is an optional HTTP proxy for reaching the Bot API.
		Proxy string `yaml:"proxy"`
	} `yaml:"telegram"`
	Discord struct {
		WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
		Username   string `yaml:"username" default:"CoinSentry"`
	} `yaml:"discord"`
	Binance     Credentials `yaml:"binance"`
	Gate        Credentials `yaml:"gate"`
	Hyperliquid struct {
		Wallet string `yaml:"wallet"`
	} `yaml:"hyperliquid"`
	Coinalyze struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"coinalyze"`
	Coinglass struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"coinglass"`
	Proxy struct {
		Sources      []string `yaml:"sources"`
		MaxPerSource int      `yaml:"max_per_source" default:"50" validate:"gt=0"`
	} `yaml:"proxy"`
	Fetch struct {
		DirectTimeout     time.Duration `yaml:"direct_timeout" default:"3s" validate:"gt=0"`
		ProxyTimeout      time.Duration `yaml:"proxy_timeout" default:"8s" validate:"gt=0"`
		MaxProxyAttempts  int           `yaml:"max_proxy_attempts" default:"5" validate:"gte=0"`
		MaxAttempts       int           `yaml:"max_attempts" default:"3" validate:"gt=0"`
		DefaultRetryAfter time.Duration `yaml:"default_retry_after" default:"5s" validate:"gt=0"`
	} `yaml:"fetch"`
	Monitor struct {
		DropThreshold   float64       `yaml:"drop_threshold" default:"0.02" validate:"gt=0,lt=1"`
		Cooldown        time.Duration `yaml:"cooldown" default:"1h" validate:"gt=0"`
		Window          time.Duration `yaml:"window" default:"30m" validate:"gt=0"`
		AlertDustUSD    float64       `yaml:"alert_dust_usd" default:"10" validate:"gte=0"`
		DisplayDustUSD  float64       `yaml:"display_dust_usd" default:"1" validate:"gte=0"`
		ScanConcurrency int           `yaml:"scan_concurrency" default:"8" validate:"gt=0"`
		ScanTimeout     time.Duration `yaml:"scan_timeout" default:"10m" validate:"gt=0"`
		TopSymbols      int           `yaml:"top_symbols" default:"50" validate:"gt=0"`
		Timezone        string        `yaml:"timezone" default:"Asia/Shanghai"`
	} `yaml:"monitor"`
	Cycle struct {
		Capacity int    `yaml:"capacity" default:"4" validate:"gt=0"`
		Key      string `yaml:"key" default:"binance_monitor/state" validate:"required"`
	} `yaml:"cycle"`
	Store    store.Config `yaml:"store"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/coin_sentry.db"`
	} `yaml:"database"`
	Schedule struct {
		AlertCron     string `yaml:"alert_cron" default:"0 * * * * *"`
		ReportCron    string `yaml:"report_cron" default:"0 0 */4 * * *"`
		MarketCron    string `yaml:"market_cron" default:"0 */30 * * * *"`
		DashboardCron string `yaml:"dashboard_cron" default:"0 0 0 * * *"`
	} `yaml:"schedule"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log logger.Config `yaml:"log"`
}

// Credentials is an exchange API key pair.
type Credentials struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// Enabled reports whether both halves are set.
func (c Credentials) Enabled() bool {
	return c.APIKey != "" && c.APISecret != ""
}

var validate = validator.New()

// Load reads .env (when present) and the YAML file, applies environment
// variable overrides, then fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	if len(cfg.Proxy.Sources) == 0 {
		cfg.Proxy.Sources = proxypool.DefaultSources
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"TELEGRAM_BOT_TOKEN":  &cfg.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":    &cfg.Telegram.ChatID,
		"HTTPS_PROXY":         &cfg.Telegram.Proxy,
		"DISCORD_WEBHOOK_URL": &cfg.Discord.WebhookURL,
		"BINANCE_API_KEY":     &cfg.Binance.APIKey,
		"BINANCE_SECRET":      &cfg.Binance.APISecret,
		"GATE_API_KEY":        &cfg.Gate.APIKey,
		"GATE_SECRET":         &cfg.Gate.APISecret,
		"HYPERLIQUID_WALLET":  &cfg.Hyperliquid.Wallet,
		"COINALYZE_API_KEY":   &cfg.Coinalyze.APIKey,
		"COINGLASS_API_KEY":   &cfg.Coinglass.APIKey,
		"STORE_DRIVER":        &cfg.Store.Driver,
		"REDIS_ADDR":          &cfg.Store.Redis.Addr,
		"REDIS_PASSWORD":      &cfg.Store.Redis.Password,
		"SQLITE_PATH":         &cfg.Database.SQLitePath,
		"SERVER_ADDR":         &cfg.Server.Addr,
		"LOG_LEVEL":           &cfg.Log.Level,
		"TZ_NAME":             &cfg.Monitor.Timezone,
	}
	for name, dst := range str {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("REPORT_CYCLE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REPORT_CYCLE: %w", err)
		}
		cfg.Cycle.Capacity = n
	}
	if v := os.Getenv("DROP_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DROP_THRESHOLD: %w", err)
		}
		cfg.Monitor.DropThreshold = f
	}
	if v := os.Getenv("PROXY_SOURCES"); v != "" {
		cfg.Proxy.Sources = strings.Split(v, ",")
	}
	return nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return err
	}
	if _, err := time.LoadLocation(c.Monitor.Timezone); err != nil {
		return fmt.Errorf("monitor.timezone: %w", err)
	}
	return nil
}

// Location returns the report time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Monitor.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
