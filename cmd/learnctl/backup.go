package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"learnhub/internal/service"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tracks, lessons and the changelog to a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}

		outputPath := exportOutput
		if outputPath == "" {
			outputPath = fmt.Sprintf("learnhub_content_%s.json", time.Now().Format("20060102_150405"))
		}
		if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		backup, err := service.NewBackupService(db, app.log).ExportFile(outputPath)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		info, err := os.Stat(outputPath)
		if err != nil {
			return err
		}
		cmd.Printf("Exported %d tracks and %d changelog entries to %s (%.2f MB)\n",
			len(backup.Tracks), len(backup.Changelog), outputPath, float64(info.Size())/1024/1024)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Restore content from a JSON export",
	Long: `Restore content from a JSON export. Tracks and lessons are matched by
slug and updated in place; changelog entries already present are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputPath := args[0]
		if _, err := os.Stat(inputPath); os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", inputPath)
		}
		db, err := openDB()
		if err != nil {
			return err
		}

		summary, err := service.NewBackupService(db, app.log).ImportFile(inputPath)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		cmd.Printf("Tracks: %d created, %d updated\n", summary.TracksCreated, summary.TracksUpdated)
		cmd.Printf("Lessons: %d created, %d updated\n", summary.LessonsCreated, summary.LessonsUpdated)
		cmd.Printf("Changelog: %d created, %d skipped\n", summary.ChangelogCreated, summary.ChangelogSkipped)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: learnhub_content_YYYYMMDD_HHMMSS.json)")
	rootCmd.AddCommand(exportCmd, importCmd)
}
