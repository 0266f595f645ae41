package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/canonical"
	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/heuristics"
	"github.com/joseph-ayodele/order-parser/internal/mappings"
	"github.com/joseph-ayodele/order-parser/internal/parsers"
	"github.com/joseph-ayodele/order-parser/internal/utils"
	"github.com/joseph-ayodele/order-parser/internal/workflow"
)

const (
	DefaultConfidenceThreshold = 0.6
	errorSummaryLen            = 200
	errorDetailLen             = 4000
)

// ErrNoModels is returned when every registry is empty.
var ErrNoModels = errors.New("no models registered")

// ProcessingLogStore persists run logs.
type ProcessingLogStore interface {
	Create(ctx context.Context, log *entity.ProcessingLog) error
	Update(ctx context.Context, id string, upd entity.ProcessingLogUpdate) error
}

// ParsedDocumentStore persists run results.
type ParsedDocumentStore interface {
	Upsert(ctx context.Context, doc *entity.ParsedDocument) error
}

type Runner struct {
	detector      Detector
	models        ModelRegistry
	parsers       *ParserRegistry
	normalizers   *NormalizerRegistry
	text          workflow.TextExtractor
	mappings      *mappings.Config
	audit         AuditLogger
	logs          ProcessingLogStore
	docs          ParsedDocumentStore
	threshold     float64
	parserVersion string
	logger        *slog.Logger
	now           func() time.Time
}

type RunnerOption func(*Runner)

func WithAuditLogger(a AuditLogger) RunnerOption {
	return func(r *Runner) {
		if a != nil {
			r.audit = a
		}
	}
}

// WithStores persists logs and documents. Without it runs are not recorded.
func WithStores(logs ProcessingLogStore, docs ParsedDocumentStore) RunnerOption {
	return func(r *Runner) { r.logs, r.docs = logs, docs }
}

func WithConfidenceThreshold(t float64) RunnerOption {
	return func(r *Runner) { r.threshold = t }
}

func WithParserVersion(v string) RunnerOption {
	return func(r *Runner) {
		if v != "" {
			r.parserVersion = v
		}
	}
}

func WithMappings(m *mappings.Config) RunnerOption {
	return func(r *Runner) {
		if m != nil {
			r.mappings = m
		}
	}
}

func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner wires a runner. text may be nil when only text input is parsed.
func NewRunner(detector Detector, models ModelRegistry, ps *ParserRegistry, ns *NormalizerRegistry, text workflow.TextExtractor, opts ...RunnerOption) *Runner {
	r := &Runner{
		detector:      detector,
		models:        models,
		parsers:       ps,
		normalizers:   ns,
		text:          text,
		mappings:      mappings.Default(),
		audit:         NoopAuditLogger{},
		threshold:     DefaultConfidenceThreshold,
		parserVersion: "legacy",
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Models returns every model the registries know, active or not.
func (r *Runner) Models(ctx context.Context) ([]ModelDefinition, error) {
	return r.models.List(ctx)
}

// BuildContext extracts the text of the input and runs the regex pass over it.
func (r *Runner) BuildContext(ctx context.Context, in Input) (*Context, error) {
	raw := string(in.Data)
	if in.InputType == constants.InputPDF {
		if r.text == nil {
			return nil, fmt.Errorf("no text extractor configured for pdf input")
		}
		res, err := r.text.ExtractPDF(ctx, in.Data)
		if err != nil {
			return nil, fmt.Errorf("extract pdf text: %w", err)
		}
		raw = res.Text
	}

	det := parsers.ParseAll(raw)
	pctx := &Context{Input: in, RawText: raw, Deterministic: det}
	for _, c := range det.CNPJs {
		if !r.mappings.IsMyCompanyCNPJ(c) {
			pctx.CustomerCNPJs = append(pctx.CustomerCNPJs, c)
		}
	}
	return pctx, nil
}

// Detect runs the detector over the active models without parsing.
func (r *Runner) Detect(ctx context.Context, in Input) (Detection, *Context, error) {
	pctx, err := r.BuildContext(ctx, in)
	if err != nil {
		return Detection{}, nil, err
	}
	models, err := r.activeModels(ctx)
	if err != nil {
		return Detection{}, nil, err
	}
	return r.detector.Detect(pctx, models), pctx, nil
}

// Run detects the model, parses, normalises and records the result. On
// failure a failed document and log are still written before the error is
// returned.
func (r *Runner) Run(ctx context.Context, in Input) (Output, error) {
	start := r.now()
	docID := orDefault(in.DocumentID, uuid.NewString())
	corrID := orDefault(in.CorrelationID, common.CorrelationIDFromContext(ctx))
	if corrID == "" {
		corrID = uuid.NewString()
	}
	ctx = common.WithCorrelationID(ctx, corrID)
	logger := r.logger.With("document_id", docID, "correlation_id", corrID)

	pctx, err := r.BuildContext(ctx, in)
	if err != nil {
		return Output{}, err
	}
	models, err := r.activeModels(ctx)
	if err != nil {
		return Output{}, err
	}
	det, model, err := r.detect(ctx, pctx, models, in.ModelOverride)
	if err != nil {
		return Output{}, err
	}
	det, model = r.confidenceFallback(models, det, model)
	logger.Info("pipeline.run.model_selected",
		"model", model.ID,
		"confidence", det.Confidence,
		"overridden", det.Overridden,
		"reasons", det.Reasons,
	)

	hash := utils.SHA256Hex(in.Data)
	company := utils.StrPtr(heuristics.GuessCompanyName(pctx.RawText).Name)
	detMeta := map[string]any{
		"detector_reasons":    det.Reasons,
		"detector_evidence":   det.Evidence,
		"detector_overridden": det.Overridden,
	}
	logID := r.createLog(ctx, logger, &entity.ProcessingLog{
		ID:              uuid.NewString(),
		DocumentID:      &docID,
		Filename:        in.SourceName,
		HashSHA256:      &hash,
		CompanyName:     company,
		ModelName:       &model.ID,
		ModelConfidence: &det.Confidence,
		ParserVersion:   &r.parserVersion,
		Status:          ptr(string(constants.ParsingStatusPartial)),
		StartedAt:       &start,
		CorrelationID:   &corrID,
		TriggeredBy:     utils.StrPtr(in.TriggeredBy),
		RawMetadata:     detMeta,
	})

	out, err := r.execute(ctx, pctx, model, det, docID, corrID, hash)
	if err != nil {
		r.recordFailure(ctx, logger, in, model, det, logID, docID, corrID, hash, company, start, err)
		return Output{}, err
	}

	status := constants.ParsingStatusPartial
	if out.Canonical != nil {
		status = out.Canonical.Parsing.Status
	} else if len(out.Warnings) == 0 {
		status = constants.ParsingStatusSuccess
	}
	finished := r.now()
	r.updateLog(ctx, logger, logID, entity.ProcessingLogUpdate{
		Status:          ptr(string(status)),
		FinishedAt:      &finished,
		DurationMS:      ptr(finished.Sub(start).Milliseconds()),
		WarningsCount:   ptr(len(out.Warnings)),
		ErrorsCount:     ptr(0),
		ModelName:       &model.ID,
		ModelConfidence: &det.Confidence,
		ParserVersion:   &r.parserVersion,
		DocumentID:      &docID,
		CompanyName:     company,
		RawMetadata: map[string]any{
			"detector_reasons":    det.Reasons,
			"detector_evidence":   det.Evidence,
			"detector_overridden": det.Overridden,
			"model_version":       model.Version,
			"model_status":        model.Status,
			"correlation_id":      corrID,
			"document_id":         docID,
		},
	})
	logger.Info("pipeline.run.ok",
		"model", model.ID,
		"status", status,
		"warnings", len(out.Warnings),
		"elapsed_ms", finished.Sub(start).Milliseconds(),
	)
	return out, nil
}

func (r *Runner) execute(ctx context.Context, pctx *Context, model ModelDefinition, det Detection, docID, corrID, hash string) (Output, error) {
	parser, err := r.parsers.Create(model.ParserKey)
	if err != nil {
		return Output{}, err
	}
	parsed, err := parser.Parse(ctx, pctx)
	if err != nil {
		return Output{}, err
	}

	md := &parsed.Metadata
	if md.Mapping == nil && !model.Mapping.IsZero() {
		mapping := model.Mapping
		md.Mapping = &mapping
	}
	if md.ModelName == "" {
		md.ModelName = model.ID
	}
	md.DocumentID = orDefault(md.DocumentID, docID)
	md.CorrelationID = orDefault(md.CorrelationID, corrID)
	md.TriggeredBy = orDefault(md.TriggeredBy, pctx.Input.TriggeredBy)

	normalizer, err := r.normalizers.Create(model.NormalizerKey)
	if err != nil {
		return Output{}, err
	}
	out, err := normalizer.Normalize(ctx, parsed)
	if err != nil {
		return Output{}, fmt.Errorf("normalize: %w", err)
	}
	out.ModelID = model.ID
	out.DocumentID = docID
	out.Detection = det

	lowConfidence := containsString(det.Reasons, ReasonFallbackLowConfidence)
	if doc := out.Canonical; doc != nil {
		doc.Document.ID = docID
		if doc.Document.Model.Name == "" || doc.Document.Model.Name == "unknown" {
			doc.Document.Model.Name = model.ID
		}
		switch {
		case det.Overridden:
			doc.Document.Model.DetectedBy = constants.DetectedByManual
		case doc.Document.Model.DetectedBy == constants.DetectedByUnknown:
			doc.Document.Model.DetectedBy = constants.DetectedByRule
		}
		doc.Document.Model.Confidence = det.Confidence
		if doc.Parsing.Confidence == nil {
			c := det.Confidence
			doc.Parsing.Confidence = &c
		}
		if lowConfidence {
			doc.Parsing.Status = constants.ParsingStatusPartial
			doc.Parsing.Warnings = append(doc.Parsing.Warnings, WarnLowConfidenceFallback)
		}
		out.Warnings = doc.Parsing.Warnings
	} else if lowConfidence {
		out.Warnings = append(out.Warnings, WarnLowConfidenceFallback)
	}

	if r.docs != nil {
		pd, err := r.parsedDocument(out, pctx.Input, model, det, hash)
		if err != nil {
			return Output{}, err
		}
		if err := r.docs.Upsert(ctx, pd); err != nil {
			return Output{}, fmt.Errorf("store parsed document: %w", err)
		}
	}

	rec := AuditRecord{
		Timestamp:    utils.FormatISO(r.now()),
		ModelID:      model.ID,
		DocumentType: out.DocumentType,
		InputType:    pctx.Input.InputType,
		SourceName:   pctx.Input.SourceName,
		Warnings:     out.Warnings,
		Metadata: map[string]any{
			"detector_confidence": det.Confidence,
			"detector_reasons":    det.Reasons,
			"detector_evidence":   det.Evidence,
			"detector_overridden": det.Overridden,
			"parser_key":          model.ParserKey,
			"normalizer_key":      model.NormalizerKey,
			"model_version":       model.Version,
			"model_status":        model.Status,
			"correlation_id":      corrID,
			"document_id":         docID,
		},
	}
	if err := r.audit.Log(ctx, rec); err != nil {
		r.logger.Warn("pipeline.audit.failed", "document_id", docID, "error", err)
	}
	return out, nil
}

func (r *Runner) parsedDocument(out Output, in Input, model ModelDefinition, det Detection, hash string) (*entity.ParsedDocument, error) {
	pd := &entity.ParsedDocument{
		DocumentID:      out.DocumentID,
		Filename:        in.SourceName,
		HashSHA256:      &hash,
		ParserVersion:   &r.parserVersion,
		ModelName:       &model.ID,
		ModelConfidence: &det.Confidence,
		Warnings:        out.Warnings,
		MissingFields:   []string{},
	}
	var payload any = out.Legacy.Result
	status := constants.ParsingStatusPartial
	if doc := out.Canonical; doc != nil {
		payload = doc
		status = doc.Parsing.Status
		pd.SchemaVersion = &doc.SchemaVersion
		pd.MissingFields = doc.Parsing.MissingFields
	} else if len(out.Warnings) == 0 {
		status = constants.ParsingStatusSuccess
	}
	pd.Status = ptr(string(status))

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal parsed document: %w", err)
	}
	pd.Canonical = b
	return pd, nil
}

func (r *Runner) recordFailure(ctx context.Context, logger *slog.Logger, in Input, model ModelDefinition, det Detection,
	logID, docID, corrID, hash string, company *string, start time.Time, runErr error,
) {
	logger.Error("pipeline.run.failed", "model", model.ID, "error", runErr)

	if r.docs != nil {
		doc := canonical.Failed(canonical.Options{
			InputType:     in.InputType,
			SourceName:    in.SourceName,
			HashSHA256:    &hash,
			DocumentID:    docID,
			ModelName:     model.ID,
			DetectedBy:    string(constants.DetectedByRule),
			Confidence:    &det.Confidence,
			ParserVersion: &r.parserVersion,
			Mappings:      r.mappings,
			Now:           r.now,
		}, runErr.Error())
		if b, err := json.Marshal(doc); err == nil {
			err = r.docs.Upsert(ctx, &entity.ParsedDocument{
				DocumentID:      docID,
				Filename:        in.SourceName,
				HashSHA256:      &hash,
				SchemaVersion:   &doc.SchemaVersion,
				ParserVersion:   &r.parserVersion,
				Status:          ptr(string(constants.ParsingStatusFailed)),
				ModelName:       &model.ID,
				ModelConfidence: &det.Confidence,
				Warnings:        doc.Parsing.Warnings,
				MissingFields:   doc.Parsing.MissingFields,
				Canonical:       b,
			})
			if err != nil {
				logger.Error("pipeline.parsed_document.store_failed", "error", err)
			}
		}
	}

	finished := r.now()
	r.updateLog(ctx, logger, logID, entity.ProcessingLogUpdate{
		Status:          ptr(string(constants.ParsingStatusFailed)),
		FinishedAt:      &finished,
		DurationMS:      ptr(finished.Sub(start).Milliseconds()),
		WarningsCount:   ptr(0),
		ErrorsCount:     ptr(1),
		ErrorSummary:    ptr(utils.Truncate(runErr.Error(), errorSummaryLen)),
		ModelName:       &model.ID,
		ModelConfidence: &det.Confidence,
		ParserVersion:   &r.parserVersion,
		DocumentID:      &docID,
		CompanyName:     company,
		RawMetadata: map[string]any{
			"error":          utils.Truncate(fmt.Sprintf("%+v", runErr), errorDetailLen),
			"correlation_id": corrID,
			"document_id":    docID,
		},
	})
}

func (r *Runner) createLog(ctx context.Context, logger *slog.Logger, l *entity.ProcessingLog) string {
	if r.logs == nil {
		return ""
	}
	if err := r.logs.Create(ctx, l); err != nil {
		logger.Error("pipeline.processing_log.create_failed", "error", err)
		return ""
	}
	return l.ID
}

func (r *Runner) updateLog(ctx context.Context, logger *slog.Logger, id string, upd entity.ProcessingLogUpdate) {
	if r.logs == nil || id == "" {
		return
	}
	// The run's context may already be cancelled; the log must still close.
	if err := r.logs.Update(context.WithoutCancel(ctx), id, upd); err != nil {
		logger.Error("pipeline.processing_log.update_failed", "log_id", id, "error", err)
	}
}

func (r *Runner) activeModels(ctx context.Context) ([]ModelDefinition, error) {
	all, err := r.models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	active := ActiveModels(all)
	if len(active) == 0 {
		return nil, ErrNoModels
	}
	return active, nil
}

// detect honours a manual override when the named model exists; otherwise
// the detector decides.
func (r *Runner) detect(ctx context.Context, pctx *Context, models []ModelDefinition, override string) (Detection, ModelDefinition, error) {
	if override != "" {
		m, ok, err := r.models.Get(ctx, override)
		if err != nil {
			return Detection{}, ModelDefinition{}, fmt.Errorf("lookup model %q: %w", override, err)
		}
		if ok {
			return Detection{
				ModelID:    m.ID,
				Confidence: 1,
				Reasons:    []string{ReasonOverridePrefix + override},
				Evidence:   []Evidence{{Type: "override", Value: override, Score: 1}},
				Overridden: true,
			}, m, nil
		}
		r.logger.Warn("pipeline.run.override_unknown", "model", override)
	}
	det := r.detector.Detect(pctx, models)
	return det, resolveModel(models, det.ModelID), nil
}

func (r *Runner) confidenceFallback(models []ModelDefinition, det Detection, model ModelDefinition) (Detection, ModelDefinition) {
	if det.Overridden || det.Confidence >= r.threshold {
		return det, model
	}
	fallback := resolveModel(models, constants.GenericModelID)
	if fallback.ID == model.ID {
		return det, model
	}
	return Detection{
		ModelID:    fallback.ID,
		Confidence: det.Confidence,
		Reasons:    append(append([]string{}, det.Reasons...), ReasonFallbackLowConfidence),
		Evidence:   append(append([]Evidence{}, det.Evidence...), Evidence{Type: "fallback", Value: fallback.ID}),
	}, fallback
}

// resolveModel finds id among models, defaulting to the first one.
func resolveModel(models []ModelDefinition, id string) ModelDefinition {
	for _, m := range models {
		if m.ID == id {
			return m
		}
	}
	return models[0]
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func ptr[T any](v T) *T { return &v }
