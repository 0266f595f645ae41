package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/utils"
	"github.com/joseph-ayodele/order-parser/internal/workflow"
)

// Parser turns a document into legacy output for one model.
type Parser interface {
	Parse(ctx context.Context, pctx *Context) (ParseOutput, error)
}

// Normalizer turns parser output into the run's final output.
type Normalizer interface {
	Normalize(ctx context.Context, parsed ParseOutput) (Output, error)
}

// Registry maps keys to factories. Factories run on every lookup.
type Registry[T any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]func() T
}

func newRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, factories: map[string]func() T{}}
}

func (r *Registry[T]) Register(key string, factory func() T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = factory
}

func (r *Registry[T]) Create(key string) (T, error) {
	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s not registered: %s", r.kind, key)
	}
	return f(), nil
}

// Keys lists the registered keys in order.
func (r *Registry[T]) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type ParserRegistry = Registry[Parser]
type NormalizerRegistry = Registry[Normalizer]

func NewParserRegistry() *ParserRegistry { return newRegistry[Parser]("parser") }

func NewNormalizerRegistry() *NormalizerRegistry { return newRegistry[Normalizer]("normalizer") }

// LegacyWorkflow is the five-stage workflow as the parsers use it.
type LegacyWorkflow interface {
	Parse(ctx context.Context, in workflow.Input) (entity.LegacyOutput, error)
}

// DefaultParserRegistry registers legacy_workflow, lar_parser and brf_parser.
func DefaultParserRegistry(wf LegacyWorkflow, parserVersion string) *ParserRegistry {
	r := NewParserRegistry()
	legacy := func() Parser { return &LegacyParser{Workflow: wf, Version: parserVersion} }
	r.Register(constants.ParserLegacyWorkflow, legacy)
	r.Register(constants.ParserBRF, func() Parser {
		return &BRFParser{Legacy: LegacyParser{Workflow: wf, Version: parserVersion}}
	})
	r.Register(constants.ParserLAR, func() Parser {
		return &LARParser{Fallback: &LegacyParser{Workflow: wf, Version: parserVersion}, Version: parserVersion}
	})
	return r
}

// LegacyParser runs the five-stage workflow.
type LegacyParser struct {
	Workflow LegacyWorkflow
	Version  string
}

func (p *LegacyParser) Parse(ctx context.Context, pctx *Context) (ParseOutput, error) {
	out, err := p.Workflow.Parse(ctx, workflow.Input{
		InputType: pctx.Input.InputType,
		Data:      pctx.Input.Data,
		Text:      pctx.RawText,
	})
	if err != nil {
		return ParseOutput{}, fmt.Errorf("legacy workflow: %w", err)
	}
	if out.DocumentType == "" {
		out.DocumentType = constants.DocTypeUnknown
	}
	return ParseOutput{Legacy: out, Metadata: baseMetadata(pctx, orDefault(p.Version, "legacy"))}, nil
}

// BRFParser is the legacy workflow tagged with the brf model.
type BRFParser struct {
	Legacy LegacyParser
}

func (p *BRFParser) Parse(ctx context.Context, pctx *Context) (ParseOutput, error) {
	out, err := p.Legacy.Parse(ctx, pctx)
	if err != nil {
		return out, err
	}
	withModel(&out.Metadata, "brf")
	return out, nil
}

func baseMetadata(pctx *Context, parserVersion string) Metadata {
	return Metadata{
		Engine:        "legacy",
		InputType:     pctx.Input.InputType,
		SourceName:    pctx.Input.SourceName,
		HashSHA256:    utils.SHA256Hex(pctx.Input.Data),
		IngestedAt:    utils.NowISO(),
		ParserVersion: parserVersion,
	}
}

func withModel(md *Metadata, model string) {
	md.ModelName = model
	if md.DetectedBy == "" {
		md.DetectedBy = string(constants.DetectedByRule)
	}
}
