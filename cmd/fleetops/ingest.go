package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/auth"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/config"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/fault"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/idling"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/lookup"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/pipeline"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/store"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/summary"
	amqptransport "github.com/duyphuc0701/Wood-Freight-Logistics/internal/transport/amqp"
	httptransport "github.com/duyphuc0701/Wood-Freight-Logistics/internal/transport/http"
	kafkatransport "github.com/duyphuc0701/Wood-Freight-Logistics/internal/transport/kafka"
	natstransport "github.com/duyphuc0701/Wood-Freight-Logistics/internal/transport/nats"
	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/transport/ws"
)

type source interface {
	Run(ctx context.Context) error
}

func ingestCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Consume telemetry from the broker and serve the HTTP ingest API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if transport != "" {
				cfg.Transport = transport
			}
			logger := newLogger(cfg.LogLevel)

			ctx, stop := signalContext()
			defer stop()
			return runIngest(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "message source: amqp, kafka, nats or none (overrides TRANSPORT)")
	return cmd
}

func runIngest(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
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

	trips, err := summary.NewTripPolicy(cfg.TripPolicy, cfg.IdleThreshold)
	if err != nil {
		return err
	}
	hours, err := summary.NewHoursPolicy(cfg.HoursPolicy)
	if err != nil {
		return err
	}
	loc := cfg.Location()

	names := lookup.NewClient(lookup.Options{
		DeviceURL:    cfg.DeviceAPIURL,
		FaultURL:     cfg.FaultAPIURL,
		Timeout:      cfg.LookupTimeout,
		CacheTTL:     cfg.LookupCacheTTL,
		RetryInitial: cfg.LookupRetryInitial,
		RetryMax:     cfg.LookupRetryMax,
	}, cache, logger)

	var sender pipeline.AlertSender
	closeSender := func() {}
	if cfg.AlertInProcess {
		engine, queue, err := newEngine(cfg, cache, logger)
		if err != nil {
			return err
		}
		sender, closeSender = engine, queue.Close
	} else {
		sender = ws.NewClient(cfg.AlertWSURL, cfg.AlertSendAttempts, cfg.AlertSendRetryWait, logger)
	}
	alerts := pipeline.NewAlertDispatcher(sender, cfg.AlertQueueSize, cfg.AlertWorkers, logger)
	alerts.Start()

	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Cache:       cache,
		Sink:        sink,
		Names:       names,
		Fragments:   fault.NewReassembler(cache, cfg.FaultPartsTTL, logger),
		Summaries:   summary.NewAggregator(cache, loc, trips, hours, logger),
		Idling:      idling.NewDetector(cache, sink, loc, logger),
		Alerts:      alerts,
		Logger:      logger,
		GPSDedupTTL: cfg.GPSDedupTTL,
	})

	gpsLane := pipeline.NewLane("gps", cfg.LanePartitions, cfg.LaneBuffer, orch.HandleGPS, logger)
	faultLane := pipeline.NewLane("fault", cfg.LanePartitions, cfg.LaneBuffer, orch.HandleFault, logger)
	gpsLane.Start()
	faultLane.Start()

	src, err := newSource(cfg, gpsLane, faultLane, logger)
	if err != nil {
		return err
	}

	authn := auth.NewAuthenticator(cache, cfg.ValidAPIKeys, time.Duration(cfg.AuthCacheTTLSeconds)*time.Second)
	api := httptransport.NewServer(orch, authn, map[string]httptransport.Pinger{
		"cache": cache,
		"sink":  sink,
	}, logger).WithNameCache(names)
	httpSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var sources sync.WaitGroup
	if src != nil {
		sources.Add(1)
		go func() {
			defer sources.Done()
			if err := src.Run(runCtx); err != nil {
				logger.Error("message source stopped", "transport", cfg.Transport, "error", err)
				cancelRun()
			}
		}()
	}

	flushCtx, cancelFlush := context.WithCancel(context.Background())
	flushDone := make(chan struct{})
	go func() {
		defer close(flushDone)
		summary.NewFlusher(cache, sink, cfg.SummaryFlushInterval, logger).Run(flushCtx)
	}()

	httpErr := make(chan error, 1)
	go func() {
		logger.Info("ingest api listening", "addr", httpSrv.Addr, "transport", cfg.Transport)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	var runErr error
	select {
	case <-runCtx.Done():
	case runErr = <-httpErr:
		cancelRun()
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}
	sources.Wait()
	gpsLane.Close()
	faultLane.Close()
	cancelFlush()
	<-flushDone
	alerts.Close()
	closeSender()

	logger.Info("shutdown complete")
	return runErr
}

func newSource(cfg *config.Config, gps, faults pipeline.Submitter, logger *slog.Logger) (source, error) {
	switch cfg.Transport {
	case "amqp":
		return amqptransport.NewConsumer(amqptransport.Config{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
			Prefetch: cfg.PrefetchCount,
			Bindings: amqpBindings(cfg, gps, faults),
		}, logger), nil
	case "kafka":
		return kafkatransport.NewConsumer(kafkatransport.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Bindings: []kafkatransport.Binding{
				{Topic: cfg.GPSTopic, Lane: gps},
				{Topic: cfg.FaultTopic, Lane: faults},
			},
		}, logger), nil
	case "nats":
		return natstransport.NewConsumer(natstransport.Config{
			URL:    cfg.NATSURL,
			Stream: cfg.NATSStream,
			Bindings: []natstransport.Binding{
				{Subject: cfg.GPSTopic, Durable: "fleetops-gps", Lane: gps},
				{Subject: cfg.FaultTopic, Durable: "fleetops-fault", Lane: faults},
			},
		}, logger), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown TRANSPORT %q", cfg.Transport)
	}
}

func amqpBindings(cfg *config.Config, gps, faults pipeline.Submitter) []amqptransport.Binding {
	return []amqptransport.Binding{
		{Queue: cfg.GPSQueue, RoutingKey: "gps", Lane: gps},
		{Queue: cfg.FaultQueue, RoutingKey: "fault", Lane: faults},
	}
}
