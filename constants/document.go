package constants

import "strings"

// Document types produced by the classifier.
const (
	DocTypePurchaseOrder = "purchase_order"
	DocTypeQuote         = "quote"
	DocTypeInvoice       = "invoice"
	DocTypeEmail         = "email"
	DocTypeUnknown       = "unknown"
)

// CanonicalDocType is the coarse type used by the canonical schema.
type CanonicalDocType string

const (
	CanonicalOrder   CanonicalDocType = "order"
	CanonicalBudget  CanonicalDocType = "budget"
	CanonicalUnknown CanonicalDocType = "unknown"
)

var canonicalDocTypes = map[string]CanonicalDocType{
	"purchase_order": CanonicalOrder,
	"order":          CanonicalOrder,
	"quote":          CanonicalBudget,
	"budget":         CanonicalBudget,
}

// ToCanonicalDocType maps a classifier type to its canonical type.
func ToCanonicalDocType(docType string) CanonicalDocType {
	if t, ok := canonicalDocTypes[strings.ToLower(docType)]; ok {
		return t
	}
	return CanonicalUnknown
}

// DetectedBy records how a parser model was chosen.
type DetectedBy string

const (
	DetectedByRule         DetectedBy = "rule"
	DetectedByManual       DetectedBy = "manual"
	DetectedByConfigurator DetectedBy = "configurator"
	DetectedByUnknown      DetectedBy = "unknown"
)

// ParseDetectedBy lowercases and validates a detected_by value.
func ParseDetectedBy(s string) DetectedBy {
	switch v := DetectedBy(strings.ToLower(strings.TrimSpace(s))); v {
	case DetectedByRule, DetectedByManual, DetectedByConfigurator:
		return v
	}
	return DetectedByUnknown
}

// CurrencyCode is the closed set of currencies in canonical documents.
type CurrencyCode string

const (
	CurrencyBRL     CurrencyCode = "BRL"
	CurrencyUSD     CurrencyCode = "USD"
	CurrencyEUR     CurrencyCode = "EUR"
	CurrencyUnknown CurrencyCode = "UNKNOWN"
)

// ToCurrencyCode returns the known currency for code, or UNKNOWN.
func ToCurrencyCode(code string) CurrencyCode {
	switch c := CurrencyCode(strings.ToUpper(strings.TrimSpace(code))); c {
	case CurrencyBRL, CurrencyUSD, CurrencyEUR:
		return c
	}
	return CurrencyUnknown
}

// Well-known parser model identifiers and registry keys.
const (
	GenericModelID = "generic"

	ParserLegacyWorkflow = "legacy_workflow"
	ParserLAR            = "lar_parser"
	ParserBRF            = "brf_parser"

	NormalizerLegacyPassthrough = "legacy_passthrough"
	NormalizerCanonicalV1       = "canonical_v1"
)
