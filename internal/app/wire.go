// Package app assembles the parse pipeline from process configuration. Both
// binaries share it.
package app

import (
	"log/slog"

	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/llm"
	"github.com/joseph-ayodele/order-parser/internal/llm/openai"
	"github.com/joseph-ayodele/order-parser/internal/mappings"
	"github.com/joseph-ayodele/order-parser/internal/ocr"
	"github.com/joseph-ayodele/order-parser/internal/pipeline"
	repo "github.com/joseph-ayodele/order-parser/internal/repository"
	"github.com/joseph-ayodele/order-parser/internal/workflow"
)

// BuildRunner wires business config, text extraction, the LLM client and the
// model registries into a runner. Nil repositories disable persistence and
// database-backed models.
func BuildRunner(cfg *common.Config, modelsRepo repo.ParserModelRepository, logs repo.ProcessingLogRepository,
	docs repo.ParsedDocumentRepository, logger *slog.Logger) (*pipeline.Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m := mappings.Load(cfg.Parser.MappingsPath, cfg.Parser.MyCompanyPath, logger)
	text := ocr.NewExtractor(ocr.Config{
		Enabled:   cfg.OCR.Enabled,
		Pdftotext: cfg.OCR.Pdftotext,
		Pdftoppm:  cfg.OCR.Pdftoppm,
		Tesseract: cfg.OCR.Tesseract,
		Lang:      cfg.OCR.Lang,
		DPI:       cfg.OCR.DPI,
	}, logger)

	wf := workflow.New(text, NewExtractor(cfg.LLM, logger), m, logger)

	audit, err := pipeline.NewAuditLogger(cfg.Parser.AuditLogPath)
	if err != nil {
		return nil, err
	}

	registries := []pipeline.ModelRegistry{pipeline.NewYAMLRegistry(cfg.Parser.ModelsPath, logger)}
	if modelsRepo != nil {
		registries = append(registries, pipeline.NewDBRegistry(modelsRepo))
	}

	opts := []pipeline.RunnerOption{
		pipeline.WithMappings(m),
		pipeline.WithAuditLogger(audit),
		pipeline.WithConfidenceThreshold(cfg.Parser.ConfidenceThreshold),
		pipeline.WithParserVersion(cfg.Parser.Version),
		pipeline.WithLogger(logger),
	}
	if logs != nil && docs != nil {
		opts = append(opts, pipeline.WithStores(logs, docs))
	}

	return pipeline.NewRunner(
		pipeline.NewRuleBasedDetector(logger),
		pipeline.NewCompositeRegistry(registries...),
		pipeline.DefaultParserRegistry(wf, cfg.Parser.Version),
		pipeline.DefaultNormalizerRegistry(m, logger),
		text,
		opts...,
	), nil
}

// NewExtractor returns the OpenAI client, or nil when no API key is configured.
func NewExtractor(cfg common.LLMConfig, logger *slog.Logger) llm.OrderExtractor {
	if cfg.APIKey == "" {
		logger.Warn("app.llm.disabled", "reason", "OPENAI_API_KEY not set")
		return nil
	}
	return openai.NewClient(openai.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		RPS:         cfg.RPS,
	}, logger)
}
