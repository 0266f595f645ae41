package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/entity"
)

// ParsedDocumentFilter narrows List.
type ParsedDocumentFilter struct {
	Status    string
	ModelName string
	Limit     int
	Offset    int
}

type ParsedDocumentRepository interface {
	Upsert(ctx context.Context, doc *entity.ParsedDocument) error
	Get(ctx context.Context, documentID string) (*entity.ParsedDocument, error)
	List(ctx context.Context, filter ParsedDocumentFilter) ([]entity.ParsedDocument, error)
}

type parsedDocumentRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewParsedDocumentRepository(db *DB, logger *slog.Logger) ParsedDocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &parsedDocumentRepository{db: db, logger: logger, now: time.Now}
}

// Upsert inserts the document or replaces every column but created_at.
func (r *parsedDocumentRepository) Upsert(ctx context.Context, d *entity.ParsedDocument) error {
	if strings.TrimSpace(d.DocumentID) == "" {
		return common.InvalidInput("document_id is required")
	}
	warnings, err := marshalJSON(nonNilStrings(d.Warnings), "[]")
	if err != nil {
		return err
	}
	missing, err := marshalJSON(nonNilStrings(d.MissingFields), "[]")
	if err != nil {
		return err
	}
	var canonical *string
	if len(d.Canonical) > 0 {
		s := string(d.Canonical)
		canonical = &s
	}
	now := r.now()

	_, err = r.db.exec(ctx, r.db.sql,
		`INSERT INTO parsed_documents (
		   document_id, filename, hash_sha256, schema_version, parser_version, status,
		   model_name, model_confidence, warnings_json, missing_fields_json, canonical_json,
		   created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (document_id) DO UPDATE SET
		   filename = excluded.filename,
		   hash_sha256 = excluded.hash_sha256,
		   schema_version = excluded.schema_version,
		   parser_version = excluded.parser_version,
		   status = excluded.status,
		   model_name = excluded.model_name,
		   model_confidence = excluded.model_confidence,
		   warnings_json = excluded.warnings_json,
		   missing_fields_json = excluded.missing_fields_json,
		   canonical_json = excluded.canonical_json,
		   updated_at = excluded.updated_at`,
		d.DocumentID, d.Filename, d.HashSHA256, d.SchemaVersion, d.ParserVersion, d.Status,
		d.ModelName, d.ModelConfidence, warnings, missing, canonical,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		r.logger.Error("repository.parsed_document.upsert.failed", "document_id", d.DocumentID, "error", err)
		return fmt.Errorf("upsert parsed document: %w", err)
	}
	return nil
}

const selectParsedDocument = `
SELECT document_id, filename, hash_sha256, schema_version, parser_version, status,
       model_name, model_confidence, warnings_json, missing_fields_json, canonical_json,
       created_at, updated_at
FROM parsed_documents`

func (r *parsedDocumentRepository) Get(ctx context.Context, documentID string) (*entity.ParsedDocument, error) {
	d, err := scanParsedDocument(r.db.queryRow(ctx, r.db.sql, selectParsedDocument+` WHERE document_id = ?`, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("Parsed document not found")
	}
	if err != nil {
		r.logger.Error("repository.parsed_document.get.failed", "document_id", documentID, "error", err)
		return nil, err
	}
	return d, nil
}

// List returns documents most recently updated first.
func (r *parsedDocumentRepository) List(ctx context.Context, f ParsedDocumentFilter) ([]entity.ParsedDocument, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.ModelName != "" {
		where = append(where, "model_name = ?")
		args = append(args, f.ModelName)
	}
	q := selectParsedDocument
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY updated_at DESC LIMIT ? OFFSET ?"
	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))

	rows, err := r.db.query(ctx, r.db.sql, q, args...)
	if err != nil {
		r.logger.Error("repository.parsed_document.list.failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	out := []entity.ParsedDocument{}
	for rows.Next() {
		d, err := scanParsedDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanParsedDocument(row rowScanner) (*entity.ParsedDocument, error) {
	var (
		d                        entity.ParsedDocument
		warnings, missing, canon sql.NullString
		createdAt, updatedAt     string
	)
	if err := row.Scan(
		&d.DocumentID, &d.Filename, &d.HashSHA256, &d.SchemaVersion, &d.ParserVersion, &d.Status,
		&d.ModelName, &d.ModelConfidence, &warnings, &missing, &canon,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	d.Warnings = []string{}
	d.MissingFields = []string{}
	unmarshalJSON(warnings, &d.Warnings)
	unmarshalJSON(missing, &d.MissingFields)
	if canon.Valid {
		d.Canonical = []byte(canon.String)
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}
