package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/config"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/pipeline"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/store"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/transport/ws"
)

func alerterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerter",
		Short: "Receive alert events over WebSocket and send rule notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := newLogger(cfg.LogLevel)

			ctx, stop := signalContext()
			defer stop()

			cache, err := store.NewRedisStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cache.Close()

			engine, queue, err := newEngine(cfg, cache, logger)
			if err != nil {
				return err
			}
			events := pipeline.NewAlertDispatcher(engine, cfg.AlertQueueSize, cfg.AlertWorkers, logger)
			events.Start()

			srv := &http.Server{
				Addr:              ":" + cfg.AlertListenPort,
				Handler:           ws.NewServer(events, logger).Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			httpErr := make(chan error, 1)
			go func() {
				logger.Info("alerter listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					httpErr <- err
				}
			}()

			var runErr error
			select {
			case <-ctx.Done():
			case runErr = <-httpErr:
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown failed", "error", err)
			}
			events.Close()
			queue.Close()
			return runErr
		},
	}
}
