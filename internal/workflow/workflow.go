// Package workflow is the legacy five-stage order parser:
// ingest → deterministic parsers → classifier → LLM extractor → normalize.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/llm"
	"github.com/joseph-ayodele/order-parser/internal/mappings"
	"github.com/joseph-ayodele/order-parser/internal/ocr"
	"github.com/joseph-ayodele/order-parser/internal/parsers"
)

// Warnings emitted by the workflow.
const (
	WarnMinimalPDFText = "PDF text extraction yielded minimal content. Consider enabling OCR."
	WarnNoCustomerCNPJ = "Customer CNPJ not found in document"
	WarnNoLines        = "No order line items detected"
	WarnLLMSkipped     = "LLM extraction skipped: no API key configured"
	WarnEmptyResult    = "Using empty result due to extraction failure"
)

// TextExtractor pulls text out of PDF bytes.
type TextExtractor interface {
	ExtractPDF(ctx context.Context, pdf []byte) (ocr.Result, error)
}

// Input is one document. For PDFs Data holds the file; Text may carry text
// already extracted upstream so the PDF is not read twice.
type Input struct {
	InputType string
	Data      []byte
	Text      string
}

type Workflow struct {
	text      TextExtractor
	extractor llm.OrderExtractor
	mappings  *mappings.Config
	logger    *slog.Logger
}

// New builds a workflow. A nil extractor disables the LLM stage; the result
// is then assembled from the regex pass alone.
func New(text TextExtractor, extractor llm.OrderExtractor, m *mappings.Config, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = mappings.Default()
	}
	return &Workflow{text: text, extractor: extractor, mappings: m, logger: logger}
}

// Mappings exposes the business configuration in use.
func (w *Workflow) Mappings() *mappings.Config { return w.mappings }

type state struct {
	input         Input
	rawText       string
	deterministic parsers.Extraction
	customerCNPJs []string
	documentType  string
	llmResult     *entity.ParseResult
	finalResult   *entity.ParseResult
	warnings      []string
}

// Parse runs all five stages. Missing data never fails a parse; it becomes a
// warning. Errors are reserved for unreadable input and cancellation.
func (w *Workflow) Parse(ctx context.Context, in Input) (entity.LegacyOutput, error) {
	start := time.Now()
	st := &state{input: in, documentType: constants.DocTypeUnknown}

	if err := w.ingest(ctx, st); err != nil {
		return entity.LegacyOutput{}, err
	}
	w.runDeterministic(st)
	w.classify(st)
	if err := w.extract(ctx, st); err != nil {
		return entity.LegacyOutput{}, err
	}
	w.normalize(st)

	splits, multi := SplitOrdersByDeliveryDate(st.finalResult)
	w.logger.Info("workflow.parse.ok",
		"input_type", in.InputType,
		"document_type", st.documentType,
		"lines", len(st.finalResult.Lines),
		"warnings", len(st.warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return entity.LegacyOutput{
		Result:           st.finalResult,
		Warnings:         nonNil(st.warnings),
		DocumentType:     st.documentType,
		SplitOrders:      splits,
		HasMultipleDates: multi,
	}, nil
}

// ExtractText returns the document text and extraction warnings without
// running the remaining stages.
func (w *Workflow) ExtractText(ctx context.Context, in Input) (string, []string, error) {
	st := &state{input: in}
	if err := w.ingest(ctx, st); err != nil {
		return "", nil, err
	}
	return st.rawText, st.warnings, nil
}

func (w *Workflow) ingest(ctx context.Context, st *state) error {
	in := st.input
	if in.InputType != constants.InputPDF {
		st.rawText = in.Text
		w.logger.Debug("workflow.ingest.ok", "input_type", in.InputType, "chars", len(st.rawText))
		return nil
	}

	text := in.Text
	if text == "" && len(in.Data) > 0 {
		if w.text == nil {
			return fmt.Errorf("ingest: no text extractor configured for pdf input")
		}
		res, err := w.text.ExtractPDF(ctx, in.Data)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		text = res.Text
		w.logger.Debug("workflow.ingest.pdf", "method", res.Method, "pages", res.Pages, "chars", len(text))
	}
	if len(strings.TrimSpace(text)) < ocr.MinUsefulText {
		st.warnings = append(st.warnings, WarnMinimalPDFText)
	}
	st.rawText = text
	w.logger.Debug("workflow.ingest.ok", "input_type", in.InputType, "chars", len(text))
	return nil
}

func (w *Workflow) runDeterministic(st *state) {
	st.deterministic = parsers.ParseAll(st.rawText)
	for _, c := range st.deterministic.CNPJs {
		if !w.mappings.IsMyCompanyCNPJ(c) {
			st.customerCNPJs = append(st.customerCNPJs, c)
		}
	}
	w.logger.Debug("workflow.deterministic.ok",
		"cnpjs", len(st.deterministic.CNPJs),
		"customer_cnpjs", len(st.customerCNPJs),
		"emails", len(st.deterministic.Emails),
		"dates", len(st.deterministic.Dates),
	)
}

func (w *Workflow) classify(st *state) {
	st.documentType = Classify(st.rawText)
	w.logger.Debug("workflow.classify.ok", "document_type", st.documentType)
}

// Classify guesses the document type from keywords. Emails win over
// everything else because forwarded orders carry order keywords too.
func Classify(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "outlook") || strings.Contains(t, "enviado:") ||
		(strings.Contains(t, "de:") && strings.Contains(t, "para:")):
		return constants.DocTypeEmail
	case strings.Contains(t, "pedido de compra") || strings.Contains(t, "purchase order") ||
		strings.Contains(t, "ordem de compra"):
		return constants.DocTypePurchaseOrder
	case strings.Contains(t, "cotação") || strings.Contains(t, "cotacao") ||
		strings.Contains(t, "quote") || strings.Contains(t, "orçamento"):
		return constants.DocTypeQuote
	case strings.Contains(t, "nf-e") || strings.Contains(t, "nota fiscal"):
		return constants.DocTypeInvoice
	}
	return constants.DocTypeUnknown
}

func (w *Workflow) extract(ctx context.Context, st *state) error {
	det := st.deterministic
	if w.extractor == nil {
		st.warnings = append(st.warnings, WarnLLMSkipped)
		st.llmResult = llm.ToOrderResult(llm.ExtractedOrder{}, &det, w.mappings)
		if len(st.llmResult.Lines) == 0 {
			st.warnings = append(st.warnings, WarnNoLines)
		}
		w.logger.Info("workflow.llm.skipped")
		return nil
	}

	start := time.Now()
	ext, _, err := w.extractor.ExtractOrder(ctx, llm.ExtractRequest{
		Text:          st.rawText,
		DocumentType:  st.documentType,
		SupplierNames: w.mappings.MyCompany.Names,
		SupplierCNPJs: w.mappings.MyCompany.CNPJs,
		Deterministic: det,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("llm extraction: %w", ctxErr)
		}
		w.logger.Error("workflow.llm.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		st.warnings = append(st.warnings, "LLM extraction failed: "+err.Error())
		st.llmResult = nil
		return nil
	}

	st.llmResult = llm.ToOrderResult(ext, &det, w.mappings)
	if st.llmResult.Order.SellTo.CNPJ == nil {
		st.warnings = append(st.warnings, WarnNoCustomerCNPJ)
	}
	if len(st.llmResult.Lines) == 0 {
		st.warnings = append(st.warnings, WarnNoLines)
	}
	w.logger.Info("workflow.llm.ok", "lines", len(st.llmResult.Lines), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func (w *Workflow) normalize(st *state) {
	if st.llmResult == nil {
		st.finalResult = entity.EmptyParseResult()
		st.warnings = append(st.warnings, WarnEmptyResult)
		return
	}
	res := st.llmResult
	det := st.deterministic
	sellTo := &res.Order.SellTo

	if sellTo.CNPJ == nil && len(st.customerCNPJs) > 0 {
		sellTo.CNPJ = strPtr(st.customerCNPJs[0])
		w.logger.Debug("workflow.normalize.deterministic_cnpj")
	}
	if sellTo.Email == nil && len(det.Emails) > 0 {
		sellTo.Email = strPtr(det.Emails[0])
	}
	if sellTo.Phone == nil && len(det.Phones) > 0 {
		sellTo.Phone = strPtr(det.Phones[0])
	}
	if res.Order.CustomerOrderNumber == nil && len(det.OrderNumbers) > 0 {
		res.Order.CustomerOrderNumber = strPtr(det.OrderNumbers[0])
	}

	sellTo.CNPJ = normalizePtr(sellTo.CNPJ, parsers.NormalizeCNPJ)
	for _, d := range []**string{
		&res.Order.OrderDate,
		&res.Order.RequestedDeliveryDate,
		&res.Order.PromisedDeliveryDate,
		&res.Order.BillingDate,
	} {
		*d = normalizePtr(*d, parsers.NormalizeDate)
	}
	res.Order.BillTo.Zip = normalizePtr(res.Order.BillTo.Zip, parsers.NormalizeCEP)
	res.Order.ShipTo.Zip = normalizePtr(res.Order.ShipTo.Zip, parsers.NormalizeCEP)
	if res.Lines == nil {
		res.Lines = []entity.Line{}
	}
	st.finalResult = res
}

func normalizePtr(p *string, norm func(string) string) *string {
	if p == nil {
		return nil
	}
	return strPtr(norm(*p))
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
