package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/repository"
	"github.com/joseph-ayodele/order-parser/internal/utils"
)

type LogLister interface {
	List(ctx context.Context, filter entity.ProcessingLogFilter) ([]entity.ProcessingLog, error)
}

type DocumentLister interface {
	List(ctx context.Context, filter repository.ParsedDocumentFilter) ([]entity.ParsedDocument, error)
}

// Service is a tiny façade over repositories that produces XLSX bytes for exports.
type Service struct {
	logs   LogLister
	docs   DocumentLister
	logger *slog.Logger
}

func NewService(logs LogLister, docs DocumentLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logs: logs, docs: docs, logger: logger}
}

// ProcessingLogsXLSX renders the logs matching filter, newest first.
func (s *Service) ProcessingLogsXLSX(ctx context.Context, filter entity.ProcessingLogFilter) ([]byte, error) {
	start := time.Now()
	if filter.Limit <= 0 {
		filter.Limit = repository.MaxListLimit
	}
	logs, err := s.logs.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query processing logs: %w", err)
	}

	headers := []string{
		"Started At", "Filename", "Company", "Model", "Confidence", "Status",
		"Duration (ms)", "Warnings", "Errors", "Error Summary", "Document ID", "Triggered By",
	}
	rows := make([][]any, 0, len(logs))
	for _, l := range logs {
		started := ""
		if l.StartedAt != nil {
			started = utils.FormatISO(*l.StartedAt)
		}
		var confidence, duration any = "", ""
		if l.ModelConfidence != nil {
			confidence = *l.ModelConfidence
		}
		if l.DurationMS != nil {
			duration = *l.DurationMS
		}
		rows = append(rows, []any{
			started,
			utils.StrOrEmpty(l.Filename),
			utils.StrOrEmpty(l.CompanyName),
			utils.StrOrEmpty(l.ModelName),
			confidence,
			utils.StrOrEmpty(l.Status),
			duration,
			l.WarningsCount,
			l.ErrorsCount,
			utils.Truncate(utils.StrOrEmpty(l.ErrorSummary), 200),
			utils.StrOrEmpty(l.DocumentID),
			utils.StrOrEmpty(l.TriggeredBy),
		})
	}

	b, err := workbook("Processing Logs", headers, rows, []float64{24, 32, 32, 18, 12, 10, 14, 10, 8, 48, 38, 12})
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.logs.xlsx.ok", "rows", len(logs), "elapsed_ms", time.Since(start).Milliseconds())
	return b, nil
}

// ParsedDocumentsXLSX renders one row per stored document with the headline
// fields of its canonical payload.
func (s *Service) ParsedDocumentsXLSX(ctx context.Context, filter repository.ParsedDocumentFilter) ([]byte, error) {
	start := time.Now()
	if filter.Limit <= 0 {
		filter.Limit = repository.MaxListLimit
	}
	docs, err := s.docs.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query parsed documents: %w", err)
	}

	headers := []string{
		"Document ID", "Filename", "Model", "Status", "Customer", "Tax ID",
		"Order Number", "Issue Date", "Items", "Total", "Missing Fields", "Warnings", "Updated At",
	}
	rows := make([][]any, 0, len(docs))
	for _, d := range docs {
		var c entity.CanonicalDocument
		if len(d.Canonical) > 0 {
			if err := json.Unmarshal(d.Canonical, &c); err != nil {
				s.logger.Warn("export.documents.bad_payload", "document_id", d.DocumentID, "error", err)
			}
		}
		var total any = ""
		if c.Totals.Total != nil {
			total = *c.Totals.Total
		}
		rows = append(rows, []any{
			d.DocumentID,
			utils.StrOrEmpty(d.Filename),
			utils.StrOrEmpty(d.ModelName),
			utils.StrOrEmpty(d.Status),
			utils.StrOrEmpty(c.Customer.Name),
			utils.StrOrEmpty(c.Customer.TaxID),
			utils.StrOrEmpty(c.Order.OrderNumber),
			utils.StrOrEmpty(c.Order.IssueDate),
			len(c.Items),
			total,
			strings.Join(d.MissingFields, ", "),
			strings.Join(d.Warnings, "; "),
			utils.FormatISO(d.UpdatedAt),
		})
	}

	b, err := workbook("Parsed Documents", headers, rows, []float64{38, 32, 16, 10, 36, 18, 16, 12, 8, 12, 36, 60, 24})
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.documents.xlsx.ok", "rows", len(docs), "elapsed_ms", time.Since(start).Milliseconds())
	return b, nil
}

// BatchRow is one file of a batch run.
type BatchRow struct {
	File         string
	Status       string
	DocumentType string
	Customer     string
	CNPJ         string
	OrderNumber  string
	Items        int
	Warnings     []string
	Error        string
}

// BatchSummaryXLSX renders a batch run.
func BatchSummaryXLSX(rows []BatchRow) ([]byte, error) {
	headers := []string{"File", "Status", "Document Type", "Customer", "CNPJ", "Order Number", "Items", "Warnings", "Error"}
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{
			r.File, r.Status, r.DocumentType, r.Customer, r.CNPJ, r.OrderNumber, r.Items,
			strings.Join(r.Warnings, "; "), truncate(r.Error, 140),
		})
	}
	return workbook("Batch", headers, out, []float64{36, 10, 16, 36, 18, 16, 8, 60, 48})
}

func workbook(sheet string, headers []string, rows [][]any, widths []float64) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(idx)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, w)
	}
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
