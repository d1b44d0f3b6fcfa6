package main

import (
	"fmt"

	"github.com/mohammad-safakhou/researchflow/config"
	"github.com/mohammad-safakhou/researchflow/internal/store"
	"github.com/spf13/cobra"
)

func migrateCMD() *cobra.Command {
	var migDir string
	var direction string
	var steps int
	var dsn string
	var cfgPath string

	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Run Postgres schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				cfg, err := config.LoadConfig(cfgPath)
				if err != nil {
					return err
				}
				if err := cfg.Storage.Postgres.Validate(); err != nil {
					return fmt.Errorf("postgres not configured: %w", err)
				}
				dsn = cfg.Storage.Postgres.DSN()
			}
			return store.Migrate(migDir, dsn, direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "", "migrations source, e.g. file://migrations (default: embedded)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	migrate.Flags().StringVar(&dsn, "dsn", "", "postgres DSN, overrides config")
	migrate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.yaml)")

	return migrate
}
