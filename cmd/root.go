/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/esp-pix/authserver/config"
	"github.com/esp-pix/authserver/internal/events"
	"github.com/esp-pix/authserver/internal/logging"
	"github.com/esp-pix/authserver/internal/mq"
	"github.com/esp-pix/authserver/internal/services"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "esppix",
	Short: "Credential and session service for esp-pix payment terminals",
	Long: `esppix issues and validates credentials for embedded payment terminals
and manages the operators who configure them.

Configuration is read from the environment (and from .env when ENV=dev).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// bootstrap loads config and installs the process logger.
func bootstrap(cmd *cobra.Command) (context.Context, config.Config, *slog.Logger) {
	cfg := config.LoadConfig()
	logger := logging.New(cfg.LogLevel).With("env", cfg.Env)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.IntoContext(ctx, logger), cfg, logger
}

// openPublisher connects the configured event bus. The returned close func is never nil.
func openPublisher(ctx context.Context, cfg config.Config) (services.EventPublisher, func(), error) {
	bus, err := mq.NewFromConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if bus == nil {
		return events.Discard{}, func() {}, nil
	}
	return events.NewBusPublisher(bus, cfg.Events.Channel), func() { _ = bus.Close() }, nil
}
