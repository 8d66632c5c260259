package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"refbook/config"
	"refbook/internal/database"
	"refbook/internal/domain"
	"refbook/internal/repository"
	"refbook/internal/router"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "refbook",
		Short:        "Referral credit service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file (default $REFBOOK_CONFIG)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newAuditCommand(opts))
	cmd.AddCommand(newSettingsCommand(opts))
	return cmd
}

func open(opts *rootOptions) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	return cfg, db, nil
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := open(opts)
			if err != nil {
				return err
			}
			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svcs := router.NewServices(cfg, db)
			defer svcs.Limiter.Stop()
			if cfg.Audit.Enabled {
				sched, err := svcs.Audit.Start(ctx)
				if err != nil {
					return fmt.Errorf("audit scheduler: %w", err)
				}
				defer sched.Shutdown()
				log.Printf("[audit] stuck-credit scan every %s", cfg.Audit.Interval)
			}

			srv := &http.Server{
				Addr:         ":" + cfg.Server.Port,
				Handler:      router.Setup(cfg, svcs),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Printf("server listening on :%s", cfg.Server.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()
			select {
			case err := <-errCh:
				return fmt.Errorf("listen: %w", err)
			case <-ctx.Done():
			}
			log.Println("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			log.Println("server stopped")
			return nil
		},
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := open(opts)
			if err != nil {
				return err
			}
			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Println("schema up to date")
			return nil
		},
	}
}

func newAuditCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "List referral links whose credit was never resolved",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := open(opts)
			if err != nil {
				return err
			}
			svcs := router.NewServices(cfg, db)
			defer svcs.Limiter.Stop()
			stuck, err := svcs.Audit.Scan(cmd.Context())
			if err != nil {
				return err
			}
			for _, l := range stuck {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\treferrer=%s\treferred=%s\n", l.ID, l.ReferrerID, l.ReferredID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d stuck referral link(s)\n", len(stuck))
			return nil
		},
	}
}

func newSettingsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change runtime settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := open(opts)
			if err != nil {
				return err
			}
			settings, err := repository.NewSettingRepository(db).All(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range settings {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", s.Key, s.Value)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a setting; referral_award_credits overrides the configured award",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if key == domain.SettingReferralAwardCredits {
				if n, err := strconv.ParseInt(value, 10, 64); err != nil || n < 0 {
					return fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
				}
			}
			_, db, err := open(opts)
			if err != nil {
				return err
			}
			if err := repository.NewSettingRepository(db).Set(cmd.Context(), key, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, value)
			return nil
		},
	})
	return cmd
}
