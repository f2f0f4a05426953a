/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/esp-pix/authserver/internal/db"
	"github.com/esp-pix/authserver/internal/services"
	"github.com/esp-pix/authserver/internal/storage"
	"github.com/esp-pix/authserver/internal/store"
	"github.com/spf13/cobra"
)

var auditStdout bool

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Credential audit tooling",
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Upload a snapshot of users and key previews to object storage",
	Long: `Builds a snapshot of every user (without password hashes) and every API key
(masked previews only) and uploads it to the configured MinIO or GCS bucket
under audit/credentials-<timestamp>.json. With --stdout the snapshot is printed instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cfg, _ := bootstrap(cmd)

		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		users := store.NewUserRepository(conn)
		keys := store.NewAPIKeyRepository(conn)

		if auditStdout {
			snapshot, err := services.NewAuditService(users, keys, nil).Snapshot(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snapshot)
		}

		sink, err := storage.NewFromConfig(ctx, cfg)
		if err != nil {
			return err
		}
		defer sink.Close()

		key, err := services.NewAuditService(users, keys, sink).Export(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %s/%s\n", sink.Bucket(), key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditExportCmd)

	auditExportCmd.Flags().BoolVar(&auditStdout, "stdout", false, "print the snapshot instead of uploading it")
}
