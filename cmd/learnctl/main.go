// Command learnctl administers a learnhub deployment from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"learnhub/internal/config"
	"learnhub/internal/database"
	"learnhub/internal/logger"
)

// env is the shared state every subcommand runs against
type env struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.DB
}

var app env

var rootCmd = &cobra.Command{
	Use:   "learnctl",
	Short: "Administer a learnhub deployment",
	Long: `learnctl runs maintenance tasks against the learnhub database:
migrations, content backups, user promotion and leaderboard inspection.

It reads the same configuration as the server (.env, LEARNHUB_CONFIG and
environment variables).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		app.cfg = config.Load()
		log, err := logger.New(app.cfg.LogMode)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		app.log = log
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app.db != nil {
			app.db.Close()
		}
		if app.log != nil {
			app.log.Sync()
		}
	},
}

// openDB connects and brings the schema up to date
func openDB() (*database.DB, error) {
	if app.db != nil {
		return app.db, nil
	}
	db, err := database.InitializeWithConfig(app.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.RunMigrations(app.cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	app.db = db
	return db, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
