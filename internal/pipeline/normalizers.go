package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/canonical"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/mappings"
)

// DefaultNormalizerRegistry registers legacy_passthrough and canonical_v1.
func DefaultNormalizerRegistry(m *mappings.Config, logger *slog.Logger) *NormalizerRegistry {
	r := NewNormalizerRegistry()
	r.Register(constants.NormalizerLegacyPassthrough, func() Normalizer { return PassthroughNormalizer{} })
	r.Register(constants.NormalizerCanonicalV1, func() Normalizer {
		return &CanonicalNormalizer{Mappings: m, Logger: logger}
	})
	return r
}

// PassthroughNormalizer returns the legacy output unchanged.
type PassthroughNormalizer struct{}

func (PassthroughNormalizer) Normalize(_ context.Context, parsed ParseOutput) (Output, error) {
	return outputFrom(parsed), nil
}

// CanonicalNormalizer builds a canonical v1 document from the legacy output.
type CanonicalNormalizer struct {
	Mappings *mappings.Config
	Logger   *slog.Logger
}

func (n *CanonicalNormalizer) Normalize(_ context.Context, parsed ParseOutput) (Output, error) {
	md := parsed.Metadata
	opts := canonical.Options{
		InputType:  orDefault(md.InputType, constants.InputText),
		SourceName: md.SourceName,
		IngestedAt: md.IngestedAt,
		DocumentID: md.DocumentID,
		ModelName:  md.ModelName,
		DetectedBy: md.DetectedBy,
		Confidence: md.Confidence,
		Mapping:    md.Mapping,
		Mappings:   n.Mappings,
		Logger:     n.Logger,
	}
	if md.HashSHA256 != "" {
		h := md.HashSHA256
		opts.HashSHA256 = &h
	}
	if md.ParserVersion != "" {
		v := md.ParserVersion
		opts.ParserVersion = &v
	}

	doc := canonical.Normalize(parsed.Legacy, opts)
	out := outputFrom(parsed)
	out.Canonical = doc
	out.Warnings = doc.Parsing.Warnings
	out.DocumentType = string(doc.Document.Type)
	return out, nil
}

func outputFrom(parsed ParseOutput) Output {
	l := parsed.Legacy
	docType := l.DocumentType
	if docType == "" {
		docType = constants.DocTypeUnknown
	}
	splits := l.SplitOrders
	if splits == nil {
		splits = []entity.SplitOrder{}
	}
	return Output{
		Legacy:           l,
		Warnings:         nonNilStrings(l.Warnings),
		DocumentType:     docType,
		SplitOrders:      splits,
		HasMultipleDates: l.HasMultipleDates,
		DocumentID:       parsed.Metadata.DocumentID,
	}
}
