package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/entity"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type ProcessingLogRepository interface {
	Create(ctx context.Context, log *entity.ProcessingLog) error
	Update(ctx context.Context, id string, upd entity.ProcessingLogUpdate) error
	Get(ctx context.Context, id string) (*entity.ProcessingLog, error)
	List(ctx context.Context, filter entity.ProcessingLogFilter) ([]entity.ProcessingLog, error)
}

type processingLogRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewProcessingLogRepository(db *DB, logger *slog.Logger) ProcessingLogRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &processingLogRepository{db: db, logger: logger}
}

func (r *processingLogRepository) Create(ctx context.Context, l *entity.ProcessingLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	meta, err := marshalJSON(l.RawMetadata, "{}")
	if err != nil {
		return fmt.Errorf("marshal raw metadata: %w", err)
	}
	_, err = r.db.exec(ctx, r.db.sql,
		`INSERT INTO processing_logs (
		   id, document_id, filename, hash_sha256, company_name, model_name, model_confidence,
		   parser_version, status, started_at, finished_at, duration_ms, warnings_count,
		   errors_count, error_summary, correlation_id, triggered_by, raw_metadata
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.DocumentID, l.Filename, l.HashSHA256, l.CompanyName, l.ModelName, l.ModelConfidence,
		l.ParserVersion, l.Status, formatTimePtr(l.StartedAt), formatTimePtr(l.FinishedAt), l.DurationMS, l.WarningsCount,
		l.ErrorsCount, l.ErrorSummary, l.CorrelationID, l.TriggeredBy, meta,
	)
	if err != nil {
		r.logger.Error("repository.processing_log.create.failed", "log_id", l.ID, "error", err)
		return err
	}
	return nil
}

// Update writes the non-nil fields of upd. Raw metadata is merged into the
// stored object.
func (r *processingLogRepository) Update(ctx context.Context, id string, upd entity.ProcessingLogUpdate) error {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if upd.Status != nil {
		set("status", *upd.Status)
	}
	if upd.FinishedAt != nil {
		set("finished_at", formatTime(*upd.FinishedAt))
	}
	if upd.DurationMS != nil {
		set("duration_ms", *upd.DurationMS)
	}
	if upd.WarningsCount != nil {
		set("warnings_count", *upd.WarningsCount)
	}
	if upd.ErrorsCount != nil {
		set("errors_count", *upd.ErrorsCount)
	}
	if upd.ErrorSummary != nil {
		set("error_summary", *upd.ErrorSummary)
	}
	if upd.ModelName != nil {
		set("model_name", *upd.ModelName)
	}
	if upd.ModelConfidence != nil {
		set("model_confidence", *upd.ModelConfidence)
	}
	if upd.ParserVersion != nil {
		set("parser_version", *upd.ParserVersion)
	}
	if upd.DocumentID != nil {
		set("document_id", *upd.DocumentID)
	}
	if upd.CompanyName != nil {
		set("company_name", *upd.CompanyName)
	}

	return r.db.inTx(ctx, func(tx *sql.Tx) error {
		if upd.RawMetadata != nil {
			var current sql.NullString
			err := r.db.queryRow(ctx, tx, `SELECT raw_metadata FROM processing_logs WHERE id = ?`, id).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return common.NotFound("Log not found")
			}
			if err != nil {
				return err
			}
			merged := map[string]any{}
			unmarshalJSON(current, &merged)
			for k, v := range upd.RawMetadata {
				merged[k] = v
			}
			meta, err := marshalJSON(merged, "{}")
			if err != nil {
				return fmt.Errorf("marshal raw metadata: %w", err)
			}
			set("raw_metadata", meta)
		}
		if len(sets) == 0 {
			return nil
		}

		res, err := r.db.exec(ctx, tx,
			`UPDATE processing_logs SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
			append(args, id)...,
		)
		if err != nil {
			r.logger.Error("repository.processing_log.update.failed", "log_id", id, "error", err)
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return common.NotFound("Log not found")
		}
		return nil
	})
}

const selectProcessingLog = `
SELECT id, document_id, filename, hash_sha256, company_name, model_name, model_confidence,
       parser_version, status, started_at, finished_at, duration_ms, warnings_count,
       errors_count, error_summary, correlation_id, triggered_by, raw_metadata
FROM processing_logs`

func (r *processingLogRepository) Get(ctx context.Context, id string) (*entity.ProcessingLog, error) {
	l, err := scanProcessingLog(r.db.queryRow(ctx, r.db.sql, selectProcessingLog+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound("Log not found")
	}
	if err != nil {
		r.logger.Error("repository.processing_log.get.failed", "log_id", id, "error", err)
		return nil, err
	}
	return l, nil
}

// List returns logs newest first. Filename and company filters match
// substrings; dates bound started_at.
func (r *processingLogRepository) List(ctx context.Context, f entity.ProcessingLogFilter) ([]entity.ProcessingLog, error) {
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
	if f.Filename != "" {
		where = append(where, "filename LIKE ?")
		args = append(args, "%"+f.Filename+"%")
	}
	if f.CompanyName != "" {
		where = append(where, "company_name LIKE ?")
		args = append(args, "%"+f.CompanyName+"%")
	}
	if f.DateFrom != nil {
		where = append(where, "started_at >= ?")
		args = append(args, formatTime(*f.DateFrom))
	}
	if f.DateTo != nil {
		where = append(where, "started_at <= ?")
		args = append(args, formatTime(*f.DateTo))
	}

	q := selectProcessingLog
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC LIMIT ? OFFSET ?"
	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))

	rows, err := r.db.query(ctx, r.db.sql, q, args...)
	if err != nil {
		r.logger.Error("repository.processing_log.list.failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	out := []entity.ProcessingLog{}
	for rows.Next() {
		l, err := scanProcessingLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

func scanProcessingLog(row rowScanner) (*entity.ProcessingLog, error) {
	var (
		l                   entity.ProcessingLog
		started, finished   sql.NullString
		warnings, errorsCnt sql.NullInt64
		meta                sql.NullString
	)
	if err := row.Scan(
		&l.ID, &l.DocumentID, &l.Filename, &l.HashSHA256, &l.CompanyName, &l.ModelName, &l.ModelConfidence,
		&l.ParserVersion, &l.Status, &started, &finished, &l.DurationMS, &warnings,
		&errorsCnt, &l.ErrorSummary, &l.CorrelationID, &l.TriggeredBy, &meta,
	); err != nil {
		return nil, err
	}
	l.StartedAt = parseNullTime(started)
	l.FinishedAt = parseNullTime(finished)
	l.WarningsCount = int(warnings.Int64)
	l.ErrorsCount = int(errorsCnt.Int64)
	l.RawMetadata = map[string]any{}
	unmarshalJSON(meta, &l.RawMetadata)
	return &l, nil
}
