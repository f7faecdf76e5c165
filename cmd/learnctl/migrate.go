package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := openDB(); err != nil {
			return err
		}
		app.log.Info("Migrations completed successfully", "database_type", app.cfg.DatabaseType)
		return nil
	},
}

var seedTermsURL string

var seedTermsCmd = &cobra.Command{
	Use:   "seed-terms",
	Short: "Download the moderation word list into an empty blocked_terms table",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		url := seedTermsURL
		if url == "" {
			url = app.cfg.BlockedTermsURL
		}
		n, err := db.SeedBlockedTerms(url)
		if err != nil {
			return err
		}
		cmd.Printf("Seeded %d blocked terms\n", n)
		return nil
	},
}

func init() {
	seedTermsCmd.Flags().StringVar(&seedTermsURL, "url", "", "word list URL (default: BLOCKED_TERMS_URL)")
	rootCmd.AddCommand(migrateCmd, seedTermsCmd)
}
