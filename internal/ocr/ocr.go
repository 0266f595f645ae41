// Package ocr turns PDF bytes into text with poppler's pdftotext, falling back
// to pdftoppm + tesseract for scanned documents.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// MinUsefulText is the trimmed length at or below which text extraction is
// considered to have found nothing.
const MinUsefulText = 50

// Extraction methods.
const (
	MethodPDFText = "pdf-text"
	MethodPDFOCR  = "pdf-ocr"
	MethodNone    = "none"
)

type Config struct {
	Enabled   bool
	Pdftotext string // binary name or absolute path; "" means "pdftotext"
	Pdftoppm  string
	Tesseract string

	Lang     string // default "por"
	DPI      int    // rasterization DPI for scanned PDFs, default 300
	MaxPages int    // 0 = no limit
	PSM      int    // default 6, a uniform block of text
	OEM      int    // default 3
}

type Result struct {
	Text     string
	Pages    int
	Method   string
	Language string
	Duration time.Duration
	Warnings []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithRunner replaces the command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "por"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.OEM <= 0 {
		cfg.OEM = 3
	}
	e := &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractPDF returns the best text found in a PDF. An error is returned only
// when the bytes cannot be staged on disk; tool failures become warnings so
// callers can keep going with whatever text exists.
func (e *Extractor) ExtractPDF(ctx context.Context, pdf []byte) (Result, error) {
	start := time.Now()
	f, err := os.CreateTemp("", "op-pdf-*.pdf")
	if err != nil {
		return Result{}, fmt.Errorf("stage pdf: %w", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()
	if _, err := f.Write(pdf); err != nil {
		_ = f.Close()
		return Result{}, fmt.Errorf("stage pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("stage pdf: %w", err)
	}

	res := Result{Method: MethodNone, Language: e.cfg.Lang}
	text, pages, warns, err := e.pdfToText(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		e.logger.Warn("ocr.pdftotext.failed", "error", err)
		res.Warnings = append(res.Warnings, "pdftotext failed: "+err.Error())
	} else {
		res.Text, res.Pages, res.Method = Normalize(text), pages, MethodPDFText
	}

	if useful(res.Text) {
		res.Duration = time.Since(start)
		e.logger.Info("ocr.extract.ok", "method", res.Method, "pages", res.Pages,
			"chars", len(res.Text), "elapsed_ms", res.Duration.Milliseconds())
		return res, nil
	}

	if !e.cfg.Enabled {
		e.logger.Info("ocr.disabled", "chars", len(strings.TrimSpace(res.Text)))
		res.Duration = time.Since(start)
		return res, nil
	}

	ocrText, ocrPages, ocrWarns, err := e.pdfToOCR(ctx, path)
	res.Warnings = append(res.Warnings, ocrWarns...)
	switch {
	case err != nil:
		e.logger.Warn("ocr.tesseract.failed", "error", err)
		res.Warnings = append(res.Warnings, "OCR failed: "+err.Error())
	case len(strings.TrimSpace(ocrText)) > len(strings.TrimSpace(res.Text)):
		res.Text, res.Pages, res.Method = Normalize(ocrText), ocrPages, MethodPDFOCR
	}
	res.Duration = time.Since(start)
	if !useful(res.Text) {
		e.logger.Warn("ocr.extract.minimal", "method", res.Method, "chars", len(strings.TrimSpace(res.Text)))
	} else {
		e.logger.Info("ocr.extract.ok", "method", res.Method, "pages", res.Pages,
			"chars", len(res.Text), "elapsed_ms", res.Duration.Milliseconds())
	}
	return res, nil
}

func useful(text string) bool {
	return len(strings.TrimSpace(text)) > MinUsefulText
}
