package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"ApexScreener/internal/notifier"
	"ApexScreener/internal/screener"
)

// Sender delivers messages to the operator.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages the cron-driven cache refresh and the bot commands.
type Scheduler struct {
	Cron     *cron.Cron
	Service  *screener.Service
	Notifier Sender
	Ctx      context.Context

	refreshing atomic.Bool
}

// NewScheduler creates a new Scheduler. A nil sender only logs.
func NewScheduler(ctx context.Context, svc *screener.Service, sender Sender) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithLocation(svc.Config().Location)),
		Service:  svc,
		Notifier: sender,
		Ctx:      ctx,
	}
}

// Register adds the daily refresh task.
func (s *Scheduler) Register(refreshCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running refresh to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunRefreshNow executes the refresh task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunRefreshNow() {
	s.refreshTask()
}

// refreshTask refreshes every pattern, then sends the digest. Overlapping
// runs are dropped.
func (s *Scheduler) refreshTask() {
	if !s.refreshing.CompareAndSwap(false, true) {
		log.Warn().Msg("refresh already running, skipping")
		return
	}
	defer s.refreshing.Store(false)

	log.Info().Msg("running cache refresh")
	runs, err := s.Service.RefreshAll(s.Ctx)
	if err != nil {
		log.Error().Err(err).Msg("cache refresh")
		s.trySend(fmt.Sprintf("❌ Cache refresh failed: %v\n\n%s", err, notifier.FormatRunSummaries(runs)))
		return
	}

	hits, err := s.Service.CachedHits(s.Ctx)
	if err != nil {
		log.Error().Err(err).Msg("load cached hits")
		return
	}
	cfg := s.Service.Config()
	s.trySend(notifier.FormatDigest(hits, cfg.RecencyDays, s.Service.Now()))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.HelpText
	}
	// Group chats append the bot name: /scan@apex_bot
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")

	switch name {
	case "/scan":
		if len(fields) < 2 {
			return "Usage: /scan TICKER"
		}
		ticker := strings.ToUpper(fields[1])
		resp, err := s.Service.ScanTicker(ctx, ticker)
		if err != nil {
			log.Warn().Err(err).Str("ticker", ticker).Msg("scan command")
			return fmt.Sprintf("❌ Scan %s failed: %v", ticker, err)
		}
		return notifier.FormatScan(resp, s.Service.Config().Horizon)
	case "/hits":
		hits, err := s.Service.CachedHits(ctx)
		if err != nil {
			return fmt.Sprintf("❌ Load cache failed: %v", err)
		}
		return notifier.FormatDigest(hits, s.Service.Config().RecencyDays, s.Service.Now())
	case "/refresh":
		if s.refreshing.Load() {
			return "Refresh already running."
		}
		go s.refreshTask()
		return "🔄 Refresh started."
	case "/status":
		runs, err := s.Service.LastRuns(ctx)
		if err != nil {
			return fmt.Sprintf("❌ Load status failed: %v", err)
		}
		return notifier.FormatRunSummaries(runs)
	default:
		return notifier.HelpText
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		log.Info().Str("message", text).Msg("notification")
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}
