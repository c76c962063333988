/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/worldview-app/apiserver/internal/mq"
	"github.com/worldview-app/apiserver/types"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect account activity events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log every event published on the events channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		bus, err := mq.NewEventBus(broker, cfg.MQ.EventsChannel, logger)
		if err != nil {
			_ = broker.Close()
			return err
		}
		defer bus.Close()

		logger.Info("tailing events", slog.String("channel", bus.Channel()))
		err = bus.Tail(ctx, func(ctx context.Context, event types.Event) error {
			logger.InfoContext(ctx, "event",
				slog.String("type", string(event.Type)),
				slog.Int("account_id", event.AccountID),
				slog.String("country_code", event.CountryCode),
				slog.Any("favorites", event.Favorites),
				slog.Time("occurred_at", event.OccurredAt),
			)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
