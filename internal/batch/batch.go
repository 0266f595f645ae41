// Package batch parses every PDF of a zip archive and writes one JSON file
// per document plus a _stats.json summary.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/async"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/export"
	"github.com/joseph-ayodele/order-parser/internal/ingest"
	"github.com/joseph-ayodele/order-parser/internal/utils"
)

const StatsFile = "_stats.json"

type Options struct {
	ZipPath   string
	OutputDir string
	Workers   int
	Timeout   time.Duration // per file
}

type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type Stats struct {
	Total           int         `json:"total"`
	Success         int         `json:"success"`
	Failed          int         `json:"failed"`
	WithCNPJ        int         `json:"with_cnpj"`
	WithItems       int         `json:"with_items"`
	WithOrderNumber int         `json:"with_order_number"`
	Errors          []FileError `json:"errors"`
}

// FileOutput is written to <output>/<name>.json for every parsed file.
type FileOutput struct {
	SourceFile   string        `json:"source_file"`
	DocumentType string        `json:"document_type"`
	Warnings     []string      `json:"warnings"`
	Order        entity.Order  `json:"order"`
	Lines        []entity.Line `json:"lines"`
}

type Report struct {
	Stats Stats
	Rows  []export.BatchRow
}

// Run extracts the archive, parses every PDF through proc and writes the
// outputs. A failed file is counted, never fatal.
func Run(ctx context.Context, proc async.Processor, opts Options, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(opts.ZipPath) == "" {
		return nil, fmt.Errorf("zip path is required")
	}
	if _, err := os.Stat(opts.ZipPath); err != nil {
		return nil, fmt.Errorf("zip file not found: %s", opts.ZipPath)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "outputs"
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.MkdirTemp("", "order-batch-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	files, err := ingest.ExtractPDFs(opts.ZipPath, tmp)
	if err != nil {
		return nil, err
	}
	logger.Info("batch.start", "zip", opts.ZipPath, "files", len(files), "workers", opts.Workers)

	var (
		mu      sync.Mutex
		results = map[string]async.Result{}
	)
	q := async.NewQueue(proc,
		async.WithWorkers(opts.Workers),
		async.WithQueueSize(len(files)+1),
		async.WithProcessTimeout(opts.Timeout),
		async.WithLogger(logger),
		async.WithResultHandler(func(r async.Result) {
			mu.Lock()
			results[r.Job.Path] = r
			mu.Unlock()
		}),
	)
	for _, f := range files {
		if err := q.Enqueue(ctx, async.Job{Path: f, TriggeredBy: constants.TriggeredByBatch}); err != nil {
			_ = q.Shutdown(context.Background())
			return nil, err
		}
	}
	if err := q.Shutdown(ctx); err != nil {
		return nil, err
	}

	report := &Report{Stats: Stats{Total: len(files), Errors: []FileError{}}}
	for _, f := range files {
		r := results[f]
		name := filepath.Base(f)
		row := export.BatchRow{File: name}
		if r.Err != nil {
			report.Stats.Failed++
			report.Stats.Errors = append(report.Stats.Errors, FileError{File: name, Error: r.Err.Error()})
			row.Status, row.Error = string(constants.ParsingStatusFailed), r.Err.Error()
			report.Rows = append(report.Rows, row)
			logger.Error("batch.file.failed", "file", name, "error", r.Err)
			continue
		}

		out := fileOutput(name, r)
		target := filepath.Join(opts.OutputDir, strings.TrimSuffix(name, filepath.Ext(name))+".json")
		if err := writeJSON(target, out); err != nil {
			return nil, err
		}

		report.Stats.Success++
		if out.Order.SellTo.CNPJ != nil {
			report.Stats.WithCNPJ++
		}
		if len(out.Lines) > 0 {
			report.Stats.WithItems++
		}
		if out.Order.CustomerOrderNumber != nil {
			report.Stats.WithOrderNumber++
		}

		row.Status = string(constants.ParsingStatusSuccess)
		if len(out.Warnings) > 0 {
			row.Status = string(constants.ParsingStatusPartial)
		}
		row.DocumentType = out.DocumentType
		row.Customer = utils.StrOrEmpty(out.Order.SellTo.Name)
		row.CNPJ = utils.StrOrEmpty(out.Order.SellTo.CNPJ)
		row.OrderNumber = utils.StrOrEmpty(out.Order.CustomerOrderNumber)
		row.Items = len(out.Lines)
		row.Warnings = out.Warnings
		report.Rows = append(report.Rows, row)
	}
	sort.Slice(report.Stats.Errors, func(i, j int) bool { return report.Stats.Errors[i].File < report.Stats.Errors[j].File })

	if err := writeJSON(filepath.Join(opts.OutputDir, StatsFile), report.Stats); err != nil {
		return nil, err
	}
	logger.Info("batch.done", "total", report.Stats.Total, "success", report.Stats.Success, "failed", report.Stats.Failed)
	return report, nil
}

func fileOutput(name string, r async.Result) FileOutput {
	out := FileOutput{
		SourceFile:   name,
		DocumentType: r.Output.DocumentType,
		Warnings:     r.Output.Warnings,
		Lines:        []entity.Line{},
	}
	if out.DocumentType == "" {
		out.DocumentType = "unknown"
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	if res := r.Output.Legacy.Result; res != nil {
		out.Order = res.Order
		if res.Lines != nil {
			out.Lines = res.Lines
		}
	}
	return out
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// PrintStats renders the summary table.
func PrintStats(w io.Writer, s Stats) {
	line := strings.Repeat("=", 50)
	fmt.Fprintln(w)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "BATCH PROCESSING RESULTS")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Total files:         %d\n", s.Total)
	fmt.Fprintf(w, "Successful:          %d\n", s.Success)
	fmt.Fprintf(w, "Failed:              %d\n", s.Failed)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "With CNPJ detected:  %d\n", s.WithCNPJ)
	fmt.Fprintf(w, "With items detected: %d\n", s.WithItems)
	fmt.Fprintf(w, "With order number:   %d\n", s.WithOrderNumber)
	if len(s.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  - %s: %s\n", e.File, e.Error)
		}
	}
	fmt.Fprintln(w, line)
}
