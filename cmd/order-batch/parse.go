package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/app"
	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/pipeline"
)

var modelOverride string

var parseCmd = &cobra.Command{
	Use:   "parse <file.pdf>",
	Short: "Parse a single PDF and print the resulting order as JSON",
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
		runner, err := app.BuildRunner(cfg, nil, nil, nil, logger)
		if err != nil {
			return fmt.Errorf("build pipeline: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ProcessTimeout)
		defer cancel()

		name := filepath.Base(args[0])
		in := pipeline.Input{
			InputType:     constants.InputPDF,
			Data:          data,
			SourceName:    &name,
			CorrelationID: uuid.NewString(),
			TriggeredBy:   constants.TriggeredByBatch,
			ModelOverride: modelOverride,
		}
		start := time.Now()
		out, err := runner.Run(ctx, in)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		logger.Info("parse.cli.ok", "file", name, "model", out.ModelID, "elapsed_ms", time.Since(start).Milliseconds())

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out.Legacy)
	},
}

func init() {
	parseCmd.Flags().StringVar(&modelOverride, "model", "", "force a parser model instead of detection")
	rootCmd.AddCommand(parseCmd)
}
