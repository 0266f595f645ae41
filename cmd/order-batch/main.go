package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/order-parser/internal/app"
	"github.com/joseph-ayodele/order-parser/internal/batch"
	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/export"
	repo "github.com/joseph-ayodele/order-parser/internal/repository"
)

var rootCmd = &cobra.Command{
	Use:   "order-batch",
	Short: "Parse purchase-order PDFs in bulk",
	Long: `order-batch runs the order parser over every PDF of a zip archive and
writes one JSON file per document together with a _stats.json summary.`,
	SilenceUsage: true,
}

var (
	zipPath string
	outDir  string
	workers int
	xlsxOut string
	persist bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a zip file of order PDFs",
	RunE:  runBatch,
}

func init() {
	runCmd.Flags().StringVar(&zipPath, "zip", "", "path to ZIP file containing PDFs (required)")
	runCmd.Flags().StringVar(&outDir, "output", "outputs", "output directory for JSON files")
	runCmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (defaults to WORKERS)")
	runCmd.Flags().StringVar(&xlsxOut, "xlsx", "", "also write an XLSX summary to this path")
	runCmd.Flags().BoolVar(&persist, "persist", false, "store processing logs and parsed documents in the configured database")
	_ = runCmd.MarkFlagRequired("zip")
	rootCmd.AddCommand(runCmd)
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cfg, err := common.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := common.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		models repo.ParserModelRepository
		logs   repo.ProcessingLogRepository
		docs   repo.ParsedDocumentRepository
	)
	if persist {
		db, err := repo.Open(ctx, repo.Config{
			URL:         cfg.Database.URL,
			SQLitePath:  cfg.Database.SQLitePath,
			MaxConns:    cfg.Database.MaxConns,
			DialTimeout: cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close(logger)
		models = repo.NewParserModelRepository(db, logger)
		logs = repo.NewProcessingLogRepository(db, logger)
		docs = repo.NewParsedDocumentRepository(db, logger)
	}

	runner, err := app.BuildRunner(cfg, models, logs, docs, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	if workers <= 0 {
		workers = cfg.Worker.Workers
	}
	start := time.Now()
	report, err := batch.Run(ctx, runner, batch.Options{
		ZipPath:   zipPath,
		OutputDir: outDir,
		Workers:   workers,
		Timeout:   cfg.Worker.ProcessTimeout,
	}, logger)
	if err != nil {
		return err
	}

	batch.PrintStats(cmd.OutOrStdout(), report.Stats)
	cmd.Printf("\nStats saved to %s\n", filepath.Join(outDir, batch.StatsFile))

	if xlsxOut != "" {
		buf, err := export.BatchSummaryXLSX(report.Rows)
		if err != nil {
			return fmt.Errorf("build xlsx: %w", err)
		}
		if err := os.WriteFile(xlsxOut, buf, 0o644); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
		cmd.Printf("Summary written to %s\n", xlsxOut)
	}
	logger.Info("batch.cli.done", "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
