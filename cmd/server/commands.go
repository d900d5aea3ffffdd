package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tieenbuii/WEB-API/internal/app"
	"github.com/tieenbuii/WEB-API/internal/auth"
	"github.com/tieenbuii/WEB-API/internal/config"
	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/pkg/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "web-api",
		Short:         "Generic e-commerce resource API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newRecomputeRatingsCmd(), newTokenCmd())
	return root
}

// setup loads configuration and builds the root logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(logger.Options{Service: "web-api", Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(log)
	return cfg, log, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			log.Info("starting web-api",
				slog.String("environment", cfg.Environment),
				slog.Int("http_port", cfg.HTTPPort),
				slog.String("store", cfg.StoreDriver),
			)

			// Create the application with all dependencies wired.
			application, err := app.NewApp(cfg, log)
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}

			// Cancel on SIGINT or SIGTERM.
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := application.Run(ctx); err != nil {
				return err
			}
			log.Info("web-api stopped")
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			n, err := app.Migrate(ctx, cfg, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	}
}

func newRecomputeRatingsCmd() *cobra.Command {
	var productID string
	cmd := &cobra.Command{
		Use:   "recompute-ratings",
		Short: "Rebuild product rating aggregates from stored reviews",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			st, err := app.OpenStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer st.Close(context.Background())

			rec := app.NewRecomputer(st, log)
			if productID != "" {
				sum, err := rec.Recompute(ctx, productID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d review(s), average %.2f\n", productID, sum.Quantity, sum.Average)
				return nil
			}

			n, err := rec.RecomputeAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d product(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&productID, "product", "", "product id; every product when empty")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var userID, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			switch role {
			case domain.RoleUser, domain.RoleEmployee, domain.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiryDuration()).Generate(userID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id placed in the token")
	cmd.Flags().StringVar(&role, "role", domain.RoleUser, "user, employee or admin")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
