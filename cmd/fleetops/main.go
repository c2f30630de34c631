package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/alerting"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/config"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fleetops",
		Short: "Fleet telemetry ingestion, daily summaries and alerting",
		Long: `Consumes GPS samples and fragmented fault reports from a message broker,
keeps per-vehicle daily summaries and idling episodes, persists events to
the durable store and forwards alert events to the alerter.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(alerterCmd())
	rootCmd.AddCommand(flushCmd())
	rootCmd.AddCommand(publishCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openSink(ctx context.Context, cfg *config.Config) (store.Sink, error) {
	switch cfg.DBDriver {
	case "postgres":
		return store.NewTimescaleStore(ctx, cfg)
	case "sqlite":
		return store.NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

// newEngine builds the rule engine and its started notification queue.
func newEngine(cfg *config.Config, cache store.Cache, logger *slog.Logger) (*alerting.Engine, *alerting.NotificationQueue, error) {
	rules := alerting.DefaultRules()
	if cfg.AlertRulesFile != "" {
		loaded, err := alerting.LoadRules(cfg.AlertRulesFile)
		if err != nil {
			return nil, nil, err
		}
		rules = loaded
	}

	var notifier alerting.Notifier = alerting.NewLogNotifier(logger)
	if cfg.SMTPHost != "" {
		notifier = alerting.NewMailNotifier(alerting.MailConfig{
			From:     cfg.NotifyFrom,
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
		})
	} else {
		logger.Warn("SMTP_HOST not set, notifications are only logged")
	}

	queue := alerting.NewNotificationQueue(notifier, cfg.NotifyQueueSize, cfg.NotifyWorkers, logger)
	queue.Start()
	engine := alerting.NewEngine(rules, alerting.NewSuppressor(cache, logger), queue, logger)
	logger.Info("alert rules loaded", "rules", len(rules))
	return engine, queue, nil
}
