package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ApexScreener/internal/notifier"
	"ApexScreener/internal/scheduler"
)

var runOnStart bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduled refresh and the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateTelegram(); err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)

		sched := scheduler.NewScheduler(ctx, a.svc, tn)
		if err := sched.Register(cfg.Schedule.RefreshCron); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()

		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")

		if runOnStart || os.Getenv("RUN_ON_START") == "true" {
			log.Info().Msg("run on start enabled, refreshing now")
			go sched.RunRefreshNow()
		}

		log.Info().Str("cron", cfg.Schedule.RefreshCron).Msg("screener is running, press Ctrl+C to stop")
		<-ctx.Done()
		log.Info().Msg("shutdown signal received, stopping")
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "refresh the cache immediately")
}
