package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"oligo-export/internal/cli"
	"oligo-export/internal/database"
	"oligo-export/internal/export"
)

var (
	historyRuns     int
	historyFromXLSX string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previously exported primers",
	Long: `List the primers recorded in the export history database, most recently
exported first. With --runs the latest export runs are listed as well.
With --from-xlsx an exported workbook is read back instead of the database.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyRuns, "runs", 0, "Also list the N most recent export runs")
	historyCmd.Flags().StringVar(&historyFromXLSX, "from-xlsx", "", "List the primers of an exported workbook")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfiguration(cmd)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.SlogLevel())
	formatter := cli.NewOutputFormatter(cfg.Format, cmd.OutOrStdout(), noColor)

	if historyFromXLSX != "" {
		list, err := export.ReadXLSX(historyFromXLSX)
		if err != nil {
			return err
		}
		logger.Debug("Workbook read", "path", historyFromXLSX, "primers", len(list))
		return formatter.PrintPrimers(list)
	}

	if cfg.DBPath == "" {
		return fmt.Errorf("no history database configured: pass --db or set OLIGO_EXPORT_DB_PATH")
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	stored, err := db.Primers.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list primers: %w", err)
	}
	if err := formatter.PrintStoredPrimers(stored); err != nil {
		return err
	}

	if historyRuns > 0 {
		runs, err := db.Runs.Recent(cmd.Context(), historyRuns)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		return formatter.PrintRuns(runs)
	}

	return nil
}
