package entity

import "time"

// DetectionRules drive the rule-based model detector.
type DetectionRules struct {
	Keywords       []string `json:"keywords" yaml:"keywords"`
	CustomerNames  []string `json:"customer_names" yaml:"customer_names"`
	CustomerCNPJs  []string `json:"customer_cnpjs" yaml:"customer_cnpjs"`
	HeaderRegex    []string `json:"header_regex" yaml:"header_regex"`
	RequiredFields []string `json:"required_fields" yaml:"required_fields"`
	Fallback       bool     `json:"fallback" yaml:"fallback"`

	// Optional overrides of the parser/normalizer used for models stored in the database.
	ParserKey     string `json:"parser_key,omitempty" yaml:"parser_key,omitempty"`
	NormalizerKey string `json:"normalizer_key,omitempty" yaml:"normalizer_key,omitempty"`
}

// IsZero reports whether no rule of any kind is configured.
func (r DetectionRules) IsZero() bool {
	return len(r.Keywords) == 0 && len(r.CustomerNames) == 0 && len(r.CustomerCNPJs) == 0 &&
		len(r.HeaderRegex) == 0 && len(r.RequiredFields) == 0 && !r.Fallback &&
		r.ParserKey == "" && r.NormalizerKey == ""
}

// FieldMapping copies one value from the legacy result into the canonical document.
type FieldMapping struct {
	Source    string `json:"source" yaml:"source"`
	Target    string `json:"target" yaml:"target"`
	Transform string `json:"transform,omitempty" yaml:"transform,omitempty"`
}

// MappingConfig groups header-level and per-item field mappings.
type MappingConfig struct {
	Fields     []FieldMapping `json:"fields" yaml:"fields"`
	ItemFields []FieldMapping `json:"item_fields" yaml:"item_fields"`
}

// IsZero reports whether no mapping is configured.
func (m MappingConfig) IsZero() bool {
	return len(m.Fields) == 0 && len(m.ItemFields) == 0
}

// ParserModelVersion is an immutable snapshot of a model's rules and mappings.
type ParserModelVersion struct {
	ID             int64          `json:"-"`
	ModelID        int64          `json:"-"`
	Version        string         `json:"version"`
	CreatedAt      time.Time      `json:"created_at"`
	CreatedBy      *string        `json:"created_by"`
	DetectionRules DetectionRules `json:"detection_rules"`
	MappingConfig  MappingConfig  `json:"mapping_config"`
	Examples       []string       `json:"examples,omitempty"`
}

// ParserModel is a customer-specific parsing configuration stored in the database.
type ParserModel struct {
	ID             int64               `json:"-"`
	Name           string              `json:"name"`
	DisplayName    *string             `json:"display_name"`
	Active         bool                `json:"active"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	CurrentVersion *ParserModelVersion `json:"current_version"`
}
