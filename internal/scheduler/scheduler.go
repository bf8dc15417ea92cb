package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"CoinSentry/internal/cycle"
	"CoinSentry/internal/notifier"
	"CoinSentry/internal/scan"
)

// Job names accepted by RunOnce and the schedule.
const (
	JobAlert     = "alert"
	JobReport    = "report"
	JobMarket    = "market"
	JobDashboard = "dashboard"
)

var (
	// ErrUnknownJob is returned by RunOnce for a name that is not registered.
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobRunning is returned by RunOnce while the same job is still running.
	ErrJobRunning = errors.New("job already running")
)

// PoolStatus reports the proxy pool size.
type PoolStatus interface {
	Len() int
}

// Crons holds the schedule of every job. An empty expression disables the job.
type Crons struct {
	Alert     string
	Report    string
	Market    string
	Dashboard string
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Portfolio *scan.PortfolioScanner
	Market    *scan.MarketScanner
	Dashboard *scan.DashboardScanner
	Cycle     *cycle.Aggregator
	Pool      PoolStatus
	Notifier  scan.Messenger
	// Timeout bounds one job run.
	Timeout time.Duration
	Ctx     context.Context

	jobs    map[string]func(context.Context) error
	running map[string]*sync.Mutex
}

// NewScheduler creates a new Scheduler. Overlapping runs of the same job
// are skipped, whether started by cron or by a command.
func NewScheduler(ctx context.Context, ps *scan.PortfolioScanner, ms *scan.MarketScanner, ds *scan.DashboardScanner, agg *cycle.Aggregator, pool PoolStatus, n scan.Messenger) *Scheduler {
	s := &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
			cron.WithLogger(cronLogger{}),
		),
		Portfolio: ps,
		Market:    ms,
		Dashboard: ds,
		Cycle:     agg,
		Pool:      pool,
		Notifier:  n,
		Timeout:   10 * time.Minute,
		Ctx:       ctx,
	}
	s.jobs = map[string]func(context.Context) error{
		JobAlert: func(ctx context.Context) error {
			_, err := s.Portfolio.Run(ctx, false)
			return err
		},
		JobReport: func(ctx context.Context) error {
			_, err := s.Portfolio.Run(ctx, true)
			return err
		},
		JobMarket: func(ctx context.Context) error {
			_, err := s.Market.Run(ctx)
			return err
		},
		JobDashboard: func(ctx context.Context) error {
			_, err := s.Dashboard.Run(ctx)
			return err
		},
	}
	s.running = make(map[string]*sync.Mutex, len(s.jobs))
	for name := range s.jobs {
		s.running[name] = &sync.Mutex{}
	}
	return s
}

// RegisterAll registers every job with a non-empty schedule.
func (s *Scheduler) RegisterAll(c Crons) error {
	exprs := map[string]string{
		JobAlert:     c.Alert,
		JobReport:    c.Report,
		JobMarket:    c.Market,
		JobDashboard: c.Dashboard,
	}
	for _, name := range s.Jobs() {
		expr := exprs[name]
		if expr == "" {
			log.Info().Str("job", name).Msg("job disabled")
			continue
		}
		if _, err := s.Cron.AddFunc(expr, func() { s.run(name) }); err != nil {
			return fmt.Errorf("register %s task: %w", name, err)
		}
		log.Info().Str("job", name).Str("cron", expr).Msg("job registered")
	}
	return nil
}

// Jobs lists the registered job names.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunOnce executes one job immediately (manual trigger / one-shot mode).
// It returns ErrJobRunning instead of waiting when the job is in progress.
func (s *Scheduler) RunOnce(name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	guard := s.running[name]
	if !guard.TryLock() {
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	defer guard.Unlock()

	ctx, cancel := context.WithTimeout(s.Ctx, s.Timeout)
	defer cancel()
	return job(ctx)
}

func (s *Scheduler) run(name string) {
	log.Info().Str("job", name).Msg("running job")
	start := time.Now()
	if err := s.RunOnce(name); err != nil {
		log.Error().Err(err).Str("job", name).Msg("job failed")
		return
	}
	log.Info().Str("job", name).Dur("took", time.Since(start)).Msg("job finished")
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	var cmd string
	if fields := strings.Fields(command); len(fields) > 0 {
		cmd, _, _ = strings.Cut(fields[0], "@")
	}
	switch strings.ToLower(cmd) {
	case "/start":
		return "👋 CoinSentry is watching your portfolio.\n\n" + notifier.FormatHelp()
	case "/report":
		if err := s.RunOnce(JobReport); err != nil {
			return fmt.Sprintf("❌ Report failed: %v", err)
		}
		return ""
	case "/scan":
		if err := s.RunOnce(JobMarket); err != nil {
			return fmt.Sprintf("❌ Scan failed: %v", err)
		}
		return ""
	case "/status":
		return formatStatus(s.Status(ctx))
	case "/cycle":
		snaps, err := s.Cycle.Current(ctx)
		if err != nil {
			return fmt.Sprintf("❌ Cannot read cycle: %v", err)
		}
		return notifier.FormatCycleStatus(snaps, s.Cycle.Capacity())
	default:
		return notifier.FormatHelp()
	}
}

// Status is a summary of the last runs.
type Status struct {
	ProxyPool      int       `json:"proxy_pool"`
	LastPortfolio  time.Time `json:"last_portfolio"`
	PortfolioTotal float64   `json:"portfolio_total_usd"`
	LastMarket     time.Time `json:"last_market"`
	MarketDegraded string    `json:"market_degraded,omitempty"`
	CycleLength    int       `json:"cycle_length"`
	CycleCapacity  int       `json:"cycle_capacity"`
}

// Status collects the current state of every job.
func (s *Scheduler) Status(ctx context.Context) Status {
	st := Status{CycleCapacity: s.Cycle.Capacity()}
	if s.Pool != nil {
		st.ProxyPool = s.Pool.Len()
	}
	if p := s.Portfolio.Last(); p != nil {
		st.LastPortfolio = p.At
		st.PortfolioTotal = p.Valuation.GrandTotal
	}
	if m := s.Market.Last(); m != nil {
		st.LastMarket = m.At
		st.MarketDegraded = m.Degraded
	}
	if snaps, err := s.Cycle.Current(ctx); err != nil {
		log.Warn().Err(err).Msg("read cycle for status")
	} else {
		st.CycleLength = len(snaps)
	}
	return st
}

func formatStatus(st Status) string {
	var b strings.Builder
	b.WriteString("🩺 *Status*\n")
	b.WriteString(fmt.Sprintf("Proxy pool: %d endpoints\n", st.ProxyPool))
	if st.LastPortfolio.IsZero() {
		b.WriteString("Portfolio: not scanned yet\n")
	} else {
		b.WriteString(fmt.Sprintf("Portfolio: $%.2f at %s\n", st.PortfolioTotal, st.LastPortfolio.Format("01-02 15:04")))
	}
	switch {
	case st.LastMarket.IsZero():
		b.WriteString("Market scan: not run yet\n")
	case st.MarketDegraded != "":
		b.WriteString(fmt.Sprintf("Market scan: failed at %s (%s)\n", st.LastMarket.Format("01-02 15:04"), st.MarketDegraded))
	default:
		b.WriteString(fmt.Sprintf("Market scan: %s\n", st.LastMarket.Format("01-02 15:04")))
	}
	b.WriteString(fmt.Sprintf("Cycle: %d/%d", st.CycleLength, st.CycleCapacity))
	return b.String()
}

// TrySend delivers text, logging failures.
func (s *Scheduler) TrySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}

// cronLogger routes cron's logging to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
