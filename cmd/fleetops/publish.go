package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/config"
	amqptransport "github.com/duyphuc0701/Wood-Freight-Logistics/internal/transport/amqp"
)

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "publish gps|fault [payload...]",
		Short:     "Publish raw payloads to the AMQP exchange (reads lines from stdin when none are given)",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"gps", "fault"},
		RunE: func(cmd *cobra.Command, args []string) error {
			routingKey := args[0]
			if routingKey != "gps" && routingKey != "fault" {
				return fmt.Errorf("unknown routing key %q, want gps or fault", routingKey)
			}
			cfg := config.Load()
			newLogger(cfg.LogLevel)

			payloads := args[1:]
			if len(payloads) == 0 {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					if line := strings.TrimSpace(scanner.Text()); line != "" {
						payloads = append(payloads, line)
					}
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}

			pub, err := amqptransport.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, amqpBindings(cfg, nil, nil))
			if err != nil {
				return err
			}
			defer pub.Close()

			for i, p := range payloads {
				if err := pub.Publish(cmd.Context(), routingKey, p); err != nil {
					return fmt.Errorf("publish %d: %w", i, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %d %s payloads to %s\n", len(payloads), routingKey, cfg.AMQPExchange)
			return nil
		},
	}
}
