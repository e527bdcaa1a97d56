package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/umalmyha/customers-api/internal/config"
	"github.com/umalmyha/customers-api/internal/infra"
	"github.com/umalmyha/customers-api/internal/migration"
	"github.com/umalmyha/customers-api/internal/repository"
	"github.com/umalmyha/customers-api/internal/service"
	"github.com/umalmyha/customers-api/migrations"
)

var (
	envFile string
	cfg     config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "customers-api",
		Short:             "Customers REST API with versioned schema migrations",
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		RunE:              runServe,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file, environment variables take precedence")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Migrate schema if enabled and start HTTP server",
		RunE:  runServe,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE:  runMigrate,
	}

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Print resolved and applied schema migrations",
		RunE:  runInfo,
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate schema history against local migration scripts",
		RunE:  runValidate,
	}

	rootCmd.AddCommand(serveCmd, migrateCmd, infoCmd, validateCmd)

	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("command failed")
	}
}

func loadConfig(_ *cobra.Command, _ []string) error {
	var err error
	if cfg, err = config.Build(envFile); err != nil {
		return err
	}
	return infra.ConfigureLogger(cfg.LogCfg)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if cfg.MigrationCfg.Enabled {
		if err := migrate(ctx); err != nil {
			return err
		}
	} else {
		logrus.Info("schema migration is disabled")
	}

	pool, err := infra.Postgresql(ctx, cfg.PostgresCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	customerRepo := repository.NewPostgresCustomerRepository(pool)
	customerSvc := service.NewCustomerService(customerRepo)

	app, err := infra.Router(customerSvc, pool, cfg.HTTPCfg)
	if err != nil {
		return err
	}

	shutdownCh := make(chan os.Signal, 1)
	errorCh := make(chan error, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	go func() {
		logrus.WithField("port", cfg.HTTPCfg.Port).Info("starting http server")
		errorCh <- app.Start(fmt.Sprintf(":%d", cfg.HTTPCfg.Port))
	}()

	select {
	case <-shutdownCh:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPCfg.ShutdownTimeout)
		defer cancel()

		logrus.Info("shutdown signal has been sent, stopping the server...")
		if err := app.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server gracefully - %w", err)
		}
	case err := <-errorCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutting down the server, unexpected error occurred - %w", err)
		}
	}

	logrus.Info("server stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	return migrate(cmd.Context())
}

func migrate(ctx context.Context) error {
	return withMigrator(ctx, func(m *migration.Migrator) error {
		_, err := m.Migrate(ctx)
		return err
	})
}

func runValidate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	return withMigrator(ctx, func(m *migration.Migrator) error {
		if err := m.Validate(ctx); err != nil {
			return fmt.Errorf("schema history validation failed - %w", err)
		}
		logrus.Info("schema history is valid")
		return nil
	})
}

func runInfo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	return withMigrator(ctx, func(m *migration.Migrator) error {
		infos, err := m.Info(ctx)
		if err != nil {
			return err
		}
		return printInfo(cmd.OutOrStdout(), infos)
	})
}

// withMigrator opens dedicated migration connection which is closed once fn returns
func withMigrator(ctx context.Context, fn func(*migration.Migrator) error) error {
	db, err := infra.SQL(ctx, cfg.PostgresCfg)
	if err != nil {
		return err
	}
	defer func(db *sqlx.DB) {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close migration connection")
		}
	}(db)

	opts := migration.Options{
		Table:             cfg.MigrationCfg.Table,
		ValidateOnMigrate: cfg.MigrationCfg.ValidateOnMigrate,
		OutOfOrder:        cfg.MigrationCfg.OutOfOrder,
		IgnoreMissing:     cfg.MigrationCfg.IgnoreMissing,
	}
	return fn(migration.New(db, migrationSource(), ".", opts, logrus.StandardLogger()))
}

// migrationSource returns scripts embedded into binary unless external location is configured
func migrationSource() fs.FS {
	if cfg.MigrationCfg.Location != "" {
		return os.DirFS(cfg.MigrationCfg.Location)
	}
	return migrations.FS
}
