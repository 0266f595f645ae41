package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/ocr"
	repo "github.com/joseph-ayodele/order-parser/internal/repository"
)

var dbHealthCmd = &cobra.Command{
	Use:   "dbhealth",
	Short: "Open the configured database, apply migrations and ping it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := common.LoadConfig()
		if err != nil {
			return err
		}
		logger := common.NewLogger(cfg.LogLevel)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := repo.Open(ctx, repo.Config{
			URL:         cfg.Database.URL,
			SQLitePath:  cfg.Database.SQLitePath,
			DialTimeout: cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("opening DB: %w", err)
		}
		defer db.Close(logger)

		if err := db.HealthCheck(ctx, time.Second, logger); err != nil {
			return fmt.Errorf("DB health: FAIL (%w)", err)
		}
		models, err := repo.NewParserModelRepository(db, logger).List(ctx)
		if err != nil {
			return fmt.Errorf("listing parser models: %w", err)
		}
		cmd.Printf("DB health: OK (%s)\n", db.Dialect())
		cmd.Printf("parser models: %d\n", len(models))
		for _, m := range models {
			cmd.Printf("- %s (active=%t)\n", m.Name, m.Active)
		}
		return nil
	},
}

var ocrCmd = &cobra.Command{
	Use:   "ocr <file.pdf>",
	Short: "Extract the text of a single PDF and print it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := common.LoadConfig()
		if err != nil {
			return err
		}
		logger := common.NewLogger(cfg.LogLevel)

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		x := ocr.NewExtractor(ocr.Config{
			Enabled:   cfg.OCR.Enabled,
			Pdftotext: cfg.OCR.Pdftotext,
			Pdftoppm:  cfg.OCR.Pdftoppm,
			Tesseract: cfg.OCR.Tesseract,
			Lang:      cfg.OCR.Lang,
			DPI:       cfg.OCR.DPI,
		}, logger)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		res, err := x.ExtractPDF(ctx, data)
		if err != nil {
			return fmt.Errorf("text extraction failed: %w", err)
		}
		logger.Info("ocr.cli.ok", "method", res.Method, "pages", res.Pages,
			"bytes", len(res.Text), "elapsed_ms", res.Duration.Milliseconds())
		for _, w := range res.Warnings {
			cmd.PrintErrln("warning:", w)
		}
		cmd.Println(res.Text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbHealthCmd, ocrCmd)
}
