package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammad-safakhou/researchflow/config"
	"github.com/mohammad-safakhou/researchflow/internal/logging"
	srv "github.com/mohammad-safakhou/researchflow/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") || cfg.Server.Address == "" {
				cfg.Server.Address = serveAddr
			}

			logger := logging.New(logging.Options{
				Level:      cfg.General.LogLevel,
				Production: cfg.General.Production(),
				File:       cfg.General.LogFile,
			})
			defer func() { _ = logger.Sync() }()
			logger.Info("starting researchflow",
				zap.String("environment", cfg.General.Environment),
				zap.String("storage", cfg.Storage.Driver),
				zap.Strings("search_providers", cfg.Sources.WebSearch.Providers),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx, cfg, logger)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", ":8000", "listen address")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.yaml)")

	return serve
}
