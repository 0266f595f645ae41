// Package pipeline selects a parser model for each document, runs its parser
// and normalizer, and records the run.
package pipeline

import (
	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/parsers"
)

// Model statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Detector reasons with special meaning.
const (
	ReasonNoMatch               = "no_match"
	ReasonFallbackLowConfidence = "fallback:low_confidence"
	ReasonOverridePrefix        = "override:"

	WarnLowConfidenceFallback = "Model confidence below threshold; using generic fallback"
)

// Input is one document submitted for parsing. Data holds the PDF bytes or
// the UTF-8 text.
type Input struct {
	InputType     string
	Data          []byte
	SourceName    *string
	ModelOverride string
	DocumentID    string
	CorrelationID string
	TriggeredBy   string
}

// TextInput wraps pasted text.
func TextInput(text string) Input {
	return Input{InputType: constants.InputText, Data: []byte(text)}
}

// Context is what detectors and parsers see: the input, its text and the
// regex pass over that text.
type Context struct {
	Input         Input
	RawText       string
	Deterministic parsers.Extraction
	// CustomerCNPJs are the detected CNPJs that do not belong to us.
	CustomerCNPJs []string
}

// ModelDefinition is a parser model as seen by the runner, whatever registry
// it came from.
type ModelDefinition struct {
	ID            string                `json:"id"`
	Label         string                `json:"label"`
	ParserKey     string                `json:"parser_key"`
	NormalizerKey string                `json:"normalizer_key"`
	Version       string                `json:"version"`
	Status        string                `json:"status"`
	Enabled       bool                  `json:"enabled"`
	Detection     entity.DetectionRules `json:"detection"`
	Mapping       entity.MappingConfig  `json:"mapping_config"`
}

// Active reports whether the model takes part in detection.
func (m ModelDefinition) Active() bool {
	return m.Enabled && m.Status == StatusActive
}

// IsFallback reports whether the model is used when nothing matches.
func (m ModelDefinition) IsFallback() bool {
	return m.ID == constants.GenericModelID || m.Detection.Fallback
}

// Evidence is one scored signal behind a detection.
type Evidence struct {
	Type  string  `json:"type"`
	Value string  `json:"value"`
	Score float64 `json:"score"`
}

// Detection is the detector's choice of model.
type Detection struct {
	ModelID    string     `json:"model_name"`
	Confidence float64    `json:"confidence"`
	Reasons    []string   `json:"reasons"`
	Evidence   []Evidence `json:"evidence"`
	Overridden bool       `json:"overridden"`
}

// Metadata travels from the parser to the normalizer.
type Metadata struct {
	Engine        string
	InputType     string
	SourceName    *string
	HashSHA256    string
	IngestedAt    string
	ParserVersion string
	ModelName     string
	DetectedBy    string
	Confidence    *float64
	Mapping       *entity.MappingConfig
	DocumentID    string
	CorrelationID string
	TriggeredBy   string
}

// ParseOutput is what a model parser returns.
type ParseOutput struct {
	Legacy   entity.LegacyOutput
	Metadata Metadata
}

// Output is the normalised result of a run. Canonical is nil when the model
// uses the legacy pass-through normalizer.
type Output struct {
	Legacy           entity.LegacyOutput
	Canonical        *entity.CanonicalDocument
	Warnings         []string
	DocumentType     string
	SplitOrders      []entity.SplitOrder
	HasMultipleDates bool
	ModelID          string
	DocumentID       string
	Detection        Detection
}
