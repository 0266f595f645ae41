package entity

import "time"

// ProcessingLog records one pipeline run.
type ProcessingLog struct {
	ID              string         `json:"id"`
	DocumentID      *string        `json:"document_id"`
	Filename        *string        `json:"filename"`
	HashSHA256      *string        `json:"hash_sha256"`
	CompanyName     *string        `json:"company_name"`
	ModelName       *string        `json:"model_name"`
	ModelConfidence *float64       `json:"model_confidence"`
	ParserVersion   *string        `json:"parser_version"`
	Status          *string        `json:"status"`
	StartedAt       *time.Time     `json:"started_at"`
	FinishedAt      *time.Time     `json:"finished_at"`
	DurationMS      *int64         `json:"duration_ms"`
	WarningsCount   int            `json:"warnings_count"`
	ErrorsCount     int            `json:"errors_count"`
	ErrorSummary    *string        `json:"error_summary"`
	CorrelationID   *string        `json:"correlation_id"`
	TriggeredBy     *string        `json:"triggered_by"`
	RawMetadata     map[string]any `json:"raw_metadata"`
}

// ProcessingLogUpdate lists the columns a finished run may overwrite. Nil fields are left alone.
type ProcessingLogUpdate struct {
	Status          *string
	FinishedAt      *time.Time
	DurationMS      *int64
	WarningsCount   *int
	ErrorsCount     *int
	ErrorSummary    *string
	ModelName       *string
	ModelConfidence *float64
	ParserVersion   *string
	DocumentID      *string
	CompanyName     *string
	RawMetadata     map[string]any
}

// ProcessingLogFilter narrows ListLogs.
type ProcessingLogFilter struct {
	Status      string
	ModelName   string
	Filename    string // substring match
	CompanyName string // substring match
	DateFrom    *time.Time
	DateTo      *time.Time
	Limit       int
	Offset      int
}
