// Copyright 2024 The oligo-export Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"oligo-export/internal/cli"
	"oligo-export/internal/config"
	"oligo-export/internal/database"
	"oligo-export/internal/export"
	"oligo-export/internal/primers"
	"oligo-export/internal/workers"
)

const (
	// Version information
	Version   = "1.0.0"
	BuildDate = "development"
)

var (
	configFile  string
	browserPath string
	outputPath  string
	maxOrders   int
	headless    bool
	dbPath      string
	format      string
	skipInvalid bool
	username    string
	fromHTML    string
	noColor     bool
	verbose     bool
)

// flagKeys maps command-line flags onto configuration keys
var flagKeys = map[string]string{
	"browser-path": "browser.exec_path",
	"output":       "output.path",
	"max-orders":   "collect.max_orders",
	"headless":     "browser.headless",
	"db":           "storage.db_path",
	"format":       "output.format",
	"skip-invalid": "output.skip_invalid",
	"username":     "portal.username",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "oligo-export",
	Short: "Export oligonucleotide orders from the Genomed portal to a spreadsheet",
	Long: `oligo-export v1.0.0

DESCRIPTION:
    Logs into the Genomed customer portal, opens each oligonucleotide order,
    reads its identity (ID, name, sequence, price) and measurements (Tm,
    length, scale, purification, remarks) and writes the normalized table to
    an Excel workbook.

CONFIGURATION:
    Settings come from flags, OLIGO_EXPORT_* environment variables and an
    optional oligo-export.yaml in the current directory or ~/.oligo-export:

        OLIGO_EXPORT_PORTAL_URL          - order page URL
        OLIGO_EXPORT_USERNAME            - portal user name (password is always prompted)
        OLIGO_EXPORT_BROWSER_EXEC_PATH   - Chrome/Chromium binary (default: auto-detect)
        OLIGO_EXPORT_BROWSER_TIMEOUT     - per-action browser timeout (default: 30s)
        OLIGO_EXPORT_MAX_ORDERS          - orders to read, 0 for all (default: 2)
        OLIGO_EXPORT_OUTPUT_PATH         - workbook path (default: genomed_primers.xlsx)
        OLIGO_EXPORT_DB_PATH             - SQLite export history (default: disabled)
        OLIGO_EXPORT_LOG_LEVEL           - debug, info, warn, error (default: info)

EXAMPLES:
    # Export the two most recent orders
    oligo-export

    # Export every order with a specific browser
    oligo-export --max-orders 0 --browser-path /usr/bin/chromium

    # Re-export from a saved copy of the order page
    oligo-export --from-html orders.html --output primers.xlsx`,
	Version:          Version,
	SilenceUsage:     true,
	SilenceErrors:    true,
	PersistentPreRun: applyEnvNoColor,
	RunE:             runExport,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(ctx, rootCmd); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is oligo-export.yaml in current directory)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database recording every export")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", config.FormatTable, "Preview format (table, json, none)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Export flags
	rootCmd.Flags().StringVar(&browserPath, "browser-path", "", "Chrome/Chromium binary (default: auto-detect)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", export.DefaultPath, "Workbook to write")
	rootCmd.Flags().IntVarP(&maxOrders, "max-orders", "n", 2, "Number of orders to read, 0 for all")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "Run the browser without a window")
	rootCmd.Flags().BoolVar(&skipInvalid, "skip-invalid", false, "Write valid rows even when some rows fail to parse")
	rootCmd.Flags().StringVarP(&username, "username", "u", "", "Portal user name (prompted when empty)")
	rootCmd.Flags().StringVar(&fromHTML, "from-html", "", "Read orders from a saved copy of the order page instead of the portal")

	// --pathway is the historical name of --browser-path
	rootCmd.Flags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "pathway" {
			name = "browser-path"
		}
		return pflag.NormalizedName(name)
	})

	rootCmd.AddCommand(historyCmd)
}

// applyEnvNoColor makes NO_COLOR=1 or CLICOLOR=0 behave like --no-color
func applyEnvNoColor(cmd *cobra.Command, args []string) {
	if termenv.EnvNoColor() {
		noColor = true
	}
}

// loadConfiguration loads configuration from files, environment and flags
func loadConfiguration(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	if configFile != "" {
		if err := config.ValidateConfigFilePath(configFile); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		v.SetConfigFile(configFile)
	}

	// Flags only win when set explicitly
	for name, key := range flagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	cfg, err := config.LoadWithViper(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
		cfg.Browser.DebugMode = true
	}

	return cfg, nil
}

// newLogger logs to w, colored when w is a terminal
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	if f, ok := w.(*os.File); ok && !noColor && isatty.IsTerminal(f.Fd()) {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// interactive reports whether f is a terminal that can host the spinner
func interactive(f *os.File) bool {
	return !noColor && isatty.IsTerminal(f.Fd())
}

// runExport is the main execution function for an export
func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfiguration(cmd)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// The spinner owns the terminal; info logs would tear through it
	showSpinner := interactive(os.Stderr) && cfg.Format != config.FormatNone
	level := cfg.SlogLevel()
	if showSpinner && level == slog.LevelInfo {
		level = slog.LevelWarn
	}
	logger := newLogger(os.Stderr, level)
	slog.SetDefault(logger)

	logger.Info("Starting oligo-export", "version", Version, "build_date", BuildDate)
	logger.Debug("Configuration loaded",
		"portal_url", cfg.PortalURL,
		"max_orders", cfg.MaxOrders,
		"output", cfg.OutputPath,
		"headless", cfg.Browser.Headless,
		"db_path", cfg.DBPath)

	formatter := cli.NewOutputFormatter(cfg.Format, cmd.OutOrStdout(), noColor)

	var opener workers.SessionOpener
	var creds primers.Credentials
	if fromHTML != "" {
		logger.Info("Reading saved order page", "path", fromHTML)
		opener = workers.SavedPageOpener(fromHTML, cfg.Selectors)
	} else {
		creds, err = cli.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr()).Credentials(cfg.Username)
		if err != nil {
			return err
		}
		opener = workers.ChromeOpener(&cfg.Browser, cfg.Selectors, logger)
	}

	var history workers.HistoryStore
	if cfg.DBPath != "" {
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		history = db
		logger.Debug("Export history enabled", "db_path", cfg.DBPath)
	}

	exporter := workers.NewExporter(cfg, opener, export.NewXLSXSink(cfg.OutputPath), history, logger)

	spinner := cli.NewProgressSpinner("Starting", cmd.ErrOrStderr(), !showSpinner)
	if showSpinner {
		spinner.Start()
		exporter.OnProgress(spinner.Update)
	}
	result, err := exporter.Run(cmd.Context(), creds)
	spinner.Stop()

	if err != nil && !(cfg.SkipInvalid && result.Exported > 0 && onlyParseErrors(err)) {
		if len(result.Invalid) > 0 {
			reportInvalid(formatter, result.Invalid)
		}
		return err
	}

	if err := formatter.PrintPrimers(result.Primers); err != nil {
		return err
	}
	if len(result.Invalid) > 0 {
		reportInvalid(formatter, result.Invalid)
	}
	formatter.PrintSuccess(fmt.Sprintf("Exported %d primers from %d orders to %s", result.Exported, result.Orders, result.OutputPath))

	return nil
}

// onlyParseErrors reports whether every leaf of err is a field parse error
func onlyParseErrors(err error) bool {
	return len(primers.ParseErrors(err)) > 0 && !hasOtherErrors(err)
}

func hasOtherErrors(err error) bool {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if hasOtherErrors(e) {
				return true
			}
		}
		return false
	}
	var pe *primers.Error
	return !errors.As(err, &pe) || pe.Kind != primers.KindParse
}

func reportInvalid(formatter *cli.OutputFormatter, invalid []*primers.Error) {
	for _, pe := range invalid {
		formatter.PrintError(pe)
	}
}
