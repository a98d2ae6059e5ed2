package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teamworkery/kakao-order/internal/adapters/app"
	"github.com/teamworkery/kakao-order/internal/adapters/db/repository"
	"github.com/teamworkery/kakao-order/internal/core/services"
	"github.com/teamworkery/kakao-order/pkg/config"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

const (
	Version = "0.1.0"
	appName = "kakao-order"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath, logLevel string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Multi-tenant restaurant ordering platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log.level")

	modes := []struct {
		mode  string
		short string
		run   func(ctx context.Context, cfg *config.Config, log *logger.Logger, flags services.Flags) error
	}{
		{services.ModeOrderService, "Serve the storefront, checkout and dashboard API", withDB(app.Order)},
		{services.ModeOutboxRelay, "Publish outbox events to RabbitMQ and NATS", withDB(app.Relay)},
		{services.ModeWebhookDispatcher, "Deliver order events to the operator webhooks", withDB(app.Dispatcher)},
		{services.ModeNotificationSubscriber, "Print realtime order notifications", app.Notifications},
		{services.ModeMigrate, "Apply the database schema", withDB(func(ctx context.Context, _ *config.Config, log *logger.Logger, repo *repository.Repository, _ services.Flags) error {
			return app.Migrate(ctx, log, repo)
		})},
	}
	for _, m := range modes {
		m := m
		sub := &cobra.Command{
			Use:   m.mode,
			Short: m.short,
			RunE: func(c *cobra.Command, _ []string) error {
				cfg, err := config.LoadFromFile(configPath)
				if err != nil {
					return fmt.Errorf("cannot load the config properly: %w", err)
				}
				if logLevel != "" {
					cfg.Log.Level = logLevel
				}
				flags, err := services.FlagParse(c.Flags(), m.mode, cfg)
				if err != nil {
					return err
				}
				log := logger.New(m.mode, os.Stdout, logger.ParseLevel(cfg.Log.Level))

				ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return m.run(ctx, cfg, log, flags)
			},
		}
		services.RegisterFlags(sub.Flags(), m.mode)
		cmd.AddCommand(sub)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})
	return cmd
}

// withDB opens the database for modes that need it and closes it afterwards.
func withDB(run func(ctx context.Context, cfg *config.Config, log *logger.Logger, repo *repository.Repository, flags services.Flags) error) func(context.Context, *config.Config, *logger.Logger, services.Flags) error {
	return func(ctx context.Context, cfg *config.Config, log *logger.Logger, flags services.Flags) error {
		repo, err := app.ConnectDB(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer repo.Close()
		return run(ctx, cfg, log, repo, flags)
	}
}
