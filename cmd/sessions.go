/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/esp-pix/authserver/internal/auth"
	"github.com/esp-pix/authserver/internal/db"
	"github.com/esp-pix/authserver/internal/services"
	"github.com/esp-pix/authserver/internal/store"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage browser sessions",
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete every expired session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cfg, _ := bootstrap(cmd)

		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		publisher, closeBus, err := openPublisher(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeBus()

		manager := services.NewSessionManager(
			store.NewUserRepository(conn),
			store.NewSessionRepository(conn),
			auth.NewHasher(cfg.Auth.BcryptCost),
			publisher,
			cfg.Auth,
		)
		removed, err := manager.PruneExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d expired session(s)\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsPruneCmd)
}
