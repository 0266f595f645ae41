package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/joseph-ayodele/order-parser/internal/utils"
)

// AuditRecord summarises one completed run.
type AuditRecord struct {
	Timestamp    string         `json:"timestamp"`
	ModelID      string         `json:"model_id"`
	DocumentType string         `json:"document_type"`
	InputType    string         `json:"input_type"`
	SourceName   *string        `json:"source_name"`
	Warnings     []string       `json:"warnings"`
	Metadata     map[string]any `json:"metadata"`
}

type AuditLogger interface {
	Log(ctx context.Context, rec AuditRecord) error
}

// NewAuditLogger returns a JSONL logger for path, or a no-op one when path is empty.
func NewAuditLogger(path string) (AuditLogger, error) {
	if path == "" {
		return NoopAuditLogger{}, nil
	}
	return NewJSONLAuditLogger(path)
}

type NoopAuditLogger struct{}

func (NoopAuditLogger) Log(context.Context, AuditRecord) error { return nil }

// MemoryAuditLogger keeps records for inspection.
type MemoryAuditLogger struct {
	mu      sync.Mutex
	records []AuditRecord
}

func (l *MemoryAuditLogger) Log(_ context.Context, rec AuditRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

func (l *MemoryAuditLogger) Records() []AuditRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AuditRecord(nil), l.records...)
}

// JSONLAuditLogger appends one JSON object per line.
type JSONLAuditLogger struct {
	mu   sync.Mutex
	path string
}

func NewJSONLAuditLogger(path string) (*JSONLAuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit dir: %w", err)
	}
	return &JSONLAuditLogger{path: path}, nil
}

func (l *JSONLAuditLogger) Log(_ context.Context, rec AuditRecord) error {
	if rec.Timestamp == "" {
		rec.Timestamp = utils.NowISO()
	}
	if rec.Warnings == nil {
		rec.Warnings = []string{}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}
