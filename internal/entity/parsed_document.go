package entity

import (
	"encoding/json"
	"time"
)

// ParsedDocument is the persisted canonical output of a run, keyed by document id.
type ParsedDocument struct {
	DocumentID      string          `json:"document_id"`
	Filename        *string         `json:"filename"`
	HashSHA256      *string         `json:"hash_sha256"`
	SchemaVersion   *string         `json:"schema_version"`
	ParserVersion   *string         `json:"parser_version"`
	Status          *string         `json:"status"`
	ModelName       *string         `json:"model_name"`
	ModelConfidence *float64        `json:"model_confidence"`
	Warnings        []string        `json:"warnings"`
	MissingFields   []string        `json:"missing_fields"`
	Canonical       json.RawMessage `json:"canonical"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
