package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/appforge/internal/store"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Open the database and apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			// store.New migrates on open.
			ds, err := store.New(cfg.DBPath, logger)
			if err != nil {
				return err
			}
			defer ds.Close()

			version, err := ds.SchemaVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %s\n", cfg.DBPath, version)
			return nil
		},
	}
}
