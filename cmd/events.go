/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/esp-pix/authserver/internal/events"
	"github.com/esp-pix/authserver/internal/mq"
	"github.com/esp-pix/authserver/types"
	"github.com/spf13/cobra"
)

var eventsChannel string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the auth event stream",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print auth events as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cfg, _ := bootstrap(cmd)
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		bus, err := mq.NewFromConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if bus == nil {
			return errors.New("events backend is disabled; set EVENTS_BACKEND")
		}
		defer bus.Close()

		channel := eventsChannel
		if channel == "" {
			channel = cfg.Events.Channel
		}
		out := cmd.OutOrStdout()
		err = events.Tail(ctx, bus, channel, func(e types.AuthEvent) {
			fmt.Fprintln(out, events.Describe(e))
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

	eventsTailCmd.Flags().StringVar(&eventsChannel, "channel", "", "channel to follow (defaults to EVENTS_CHANNEL)")
}
