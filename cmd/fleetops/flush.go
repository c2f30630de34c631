package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/config"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/store"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/summary"
)

func flushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Upsert every cached daily summary into the durable store once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := newLogger(cfg.LogLevel)
			ctx := cmd.Context()

			cache, err := store.NewRedisStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cache.Close()

			sink, err := openSink(ctx, cfg)
			if err != nil {
				return err
			}
			defer sink.Close()

			n := summary.NewFlusher(cache, sink, cfg.SummaryFlushInterval, logger).Flush(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "flushed %d summaries\n", n)
			return nil
		},
	}
}
