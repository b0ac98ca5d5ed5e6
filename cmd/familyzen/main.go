package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/friendsincode/familyzen/internal/config"
	"github.com/friendsincode/familyzen/internal/db"
	"github.com/friendsincode/familyzen/internal/logbuffer"
	"github.com/friendsincode/familyzen/internal/logging"
	"github.com/friendsincode/familyzen/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
	logBuf = logbuffer.New(logbuffer.DefaultCapacity)
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "familyzen",
		Short:         "FamilyZen - daily routines for busy families",
		Long:          "FamilyZen plans a family's day from a few anchor times and a chore list, and serves those plans over HTTP.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(version.Current().String() + "\n")
	root.AddCommand(newServeCmd(), newMigrateCmd(), newPlanCmd(), newUserCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and sets up the process logger. Commands
// that touch the database or serve traffic call it first.
func loadConfig() error {
	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = loaded

	logger, err = logging.New(logging.Options{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Tee:         logbuffer.NewWriter(logBuf, nil),
	})
	if err != nil {
		return err
	}
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}
	return nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			database, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close(database)

			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Str("backend", string(cfg.DBBackend)).Msg("migrations applied")
			return nil
		},
	}
}

func openDatabase() (*gorm.DB, error) {
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return database, nil
}
