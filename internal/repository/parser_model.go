package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/entity"
)

// CreateParserModelRequest wraps parameters for creating a parser model.
type CreateParserModelRequest struct {
	Name           string
	DisplayName    *string
	DetectionRules entity.DetectionRules
	MappingConfig  entity.MappingConfig
	Examples       []string
	CreatedBy      *string
}

// UpdateParserModelRequest lists the changes to a model. Nil fields are left
// alone; any change to rules, mapping or examples creates a new version.
type UpdateParserModelRequest struct {
	DisplayName    *string
	Active         *bool
	DetectionRules *entity.DetectionRules
	MappingConfig  *entity.MappingConfig
	Examples       []string
	UpdatedBy      *string
}

type ParserModelRepository interface {
	List(ctx context.Context) ([]entity.ParserModel, error)
	Get(ctx context.Context, name string) (*entity.ParserModel, error)
	Create(ctx context.Context, req CreateParserModelRequest) (*entity.ParserModel, error)
	Update(ctx context.Context, name string, req UpdateParserModelRequest) (*entity.ParserModel, error)
	SetActive(ctx context.Context, name string, active bool) (*entity.ParserModel, error)
}

type parserModelRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewParserModelRepository(db *DB, logger *slog.Logger) ParserModelRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &parserModelRepository{db: db, logger: logger, now: time.Now}
}

const selectParserModel = `
SELECT pm.id, pm.name, pm.display_name, pm.active, pm.created_at, pm.updated_at,
       v.id, v.version, v.created_at, v.created_by,
       v.detection_rules_json, v.mapping_config_json, v.examples_json
FROM parser_models pm
LEFT JOIN parser_model_versions v ON v.id = pm.current_version_id`

func (r *parserModelRepository) List(ctx context.Context) ([]entity.ParserModel, error) {
	rows, err := r.db.query(ctx, r.db.sql, selectParserModel+` ORDER BY pm.name`)
	if err != nil {
		r.logger.Error("repository.parser_model.list.failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	out := []entity.ParserModel{}
	for rows.Next() {
		m, err := scanParserModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *parserModelRepository) Get(ctx context.Context, name string) (*entity.ParserModel, error) {
	return r.get(ctx, r.db.sql, name)
}

func (r *parserModelRepository) get(ctx context.Context, q querier, name string) (*entity.ParserModel, error) {
	m, err := scanParserModel(r.db.queryRow(ctx, q, selectParserModel+` WHERE pm.name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound(fmt.Sprintf("parser model %q not found", name))
	}
	if err != nil {
		r.logger.Error("repository.parser_model.get.failed", "name", name, "error", err)
		return nil, err
	}
	return m, nil
}

func (r *parserModelRepository) Create(ctx context.Context, req CreateParserModelRequest) (*entity.ParserModel, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, common.InvalidInput("model name is required")
	}
	now := formatTime(r.now())

	var m *entity.ParserModel
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.get(ctx, tx, name); err == nil {
			return common.Conflict("Model already exists")
		} else if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		var modelID int64
		err := r.db.queryRow(ctx, tx,
			`INSERT INTO parser_models (name, display_name, active, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?) RETURNING id`,
			name, req.DisplayName, true, now, now,
		).Scan(&modelID)
		if err != nil {
			return fmt.Errorf("insert parser model: %w", err)
		}

		versionID, err := r.insertVersion(ctx, tx, modelID, "v1", req.DetectionRules, req.MappingConfig, req.Examples, req.CreatedBy, now)
		if err != nil {
			return err
		}
		if _, err := r.db.exec(ctx, tx, `UPDATE parser_models SET current_version_id = ? WHERE id = ?`, versionID, modelID); err != nil {
			return fmt.Errorf("set current version: %w", err)
		}

		m, err = r.get(ctx, tx, name)
		return err
	})
	if err != nil {
		if !errors.Is(err, common.ErrConflict) {
			r.logger.Error("repository.parser_model.create.failed", "name", name, "error", err)
		}
		return nil, err
	}
	r.logger.Info("repository.parser_model.create.ok", "name", name, "version", "v1")
	return m, nil
}

func (r *parserModelRepository) Update(ctx context.Context, name string, req UpdateParserModelRequest) (*entity.ParserModel, error) {
	now := formatTime(r.now())

	var m *entity.ParserModel
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		current, err := r.get(ctx, tx, name)
		if err != nil {
			return err
		}

		if req.DisplayName != nil {
			if _, err := r.db.exec(ctx, tx, `UPDATE parser_models SET display_name = ?, updated_at = ? WHERE id = ?`,
				*req.DisplayName, now, current.ID); err != nil {
				return fmt.Errorf("update display name: %w", err)
			}
		}
		if req.Active != nil {
			if _, err := r.db.exec(ctx, tx, `UPDATE parser_models SET active = ?, updated_at = ? WHERE id = ?`,
				*req.Active, now, current.ID); err != nil {
				return fmt.Errorf("update active: %w", err)
			}
		}

		if req.DetectionRules != nil || req.MappingConfig != nil || req.Examples != nil {
			var (
				rules    entity.DetectionRules
				mapping  entity.MappingConfig
				examples []string
			)
			if v := current.CurrentVersion; v != nil {
				rules, mapping, examples = v.DetectionRules, v.MappingConfig, v.Examples
			}
			if req.DetectionRules != nil {
				rules = *req.DetectionRules
			}
			if req.MappingConfig != nil {
				mapping = *req.MappingConfig
			}
			if req.Examples != nil {
				examples = req.Examples
			}

			next, err := r.nextVersion(ctx, tx, current.ID)
			if err != nil {
				return err
			}
			versionID, err := r.insertVersion(ctx, tx, current.ID, next, rules, mapping, examples, req.UpdatedBy, now)
			if err != nil {
				return err
			}
			if _, err := r.db.exec(ctx, tx, `UPDATE parser_models SET current_version_id = ?, updated_at = ? WHERE id = ?`,
				versionID, now, current.ID); err != nil {
				return fmt.Errorf("set current version: %w", err)
			}
			r.logger.Info("repository.parser_model.version.ok", "name", name, "version", next)
		}

		m, err = r.get(ctx, tx, name)
		return err
	})
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			r.logger.Error("repository.parser_model.update.failed", "name", name, "error", err)
		}
		return nil, err
	}
	return m, nil
}

func (r *parserModelRepository) SetActive(ctx context.Context, name string, active bool) (*entity.ParserModel, error) {
	return r.Update(ctx, name, UpdateParserModelRequest{Active: &active})
}

func (r *parserModelRepository) nextVersion(ctx context.Context, q querier, modelID int64) (string, error) {
	var latest string
	err := r.db.queryRow(ctx, q,
		`SELECT version FROM parser_model_versions WHERE model_id = ? ORDER BY id DESC LIMIT 1`, modelID,
	).Scan(&latest)
	if errors.Is(err, sql.ErrNoRows) {
		return "v1", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest version: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(latest, "v"))
	if err != nil {
		return "v" + strconv.FormatInt(r.now().Unix(), 10), nil
	}
	return "v" + strconv.Itoa(n+1), nil
}

// insertVersion stores the version row plus one detection_rules row per rule
// value and one field_mappings row per mapping.
func (r *parserModelRepository) insertVersion(ctx context.Context, tx *sql.Tx, modelID int64, version string,
	rules entity.DetectionRules, mapping entity.MappingConfig, examples []string, createdBy *string, now string,
) (int64, error) {
	rulesJSON, err := marshalJSON(rules, "{}")
	if err != nil {
		return 0, err
	}
	mappingJSON, err := marshalJSON(mapping, "{}")
	if err != nil {
		return 0, err
	}
	examplesJSON, err := marshalJSON(nonNilStrings(examples), "[]")
	if err != nil {
		return 0, err
	}

	var versionID int64
	err = r.db.queryRow(ctx, tx,
		`INSERT INTO parser_model_versions (model_id, version, created_at, created_by,
		     detection_rules_json, mapping_config_json, examples_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		modelID, version, now, createdBy, rulesJSON, mappingJSON, examplesJSON,
	).Scan(&versionID)
	if err != nil {
		return 0, fmt.Errorf("insert parser model version: %w", err)
	}

	type rule struct {
		kind, value string
		weight      float64
	}
	var rows []rule
	for kind, values := range map[string][]string{
		"keywords":        rules.Keywords,
		"customer_names":  rules.CustomerNames,
		"customer_cnpjs":  rules.CustomerCNPJs,
		"header_regex":    rules.HeaderRegex,
		"required_fields": rules.RequiredFields,
	} {
		for _, v := range values {
			rows = append(rows, rule{kind, v, 1})
		}
	}
	rows = append(rows, rule{"fallback", strconv.FormatBool(rules.Fallback), 0})
	for _, rr := range rows {
		if _, err := r.db.exec(ctx, tx,
			`INSERT INTO detection_rules (model_version_id, rule_type, rule_value, weight, created_at) VALUES (?, ?, ?, ?, ?)`,
			versionID, rr.kind, rr.value, rr.weight, now,
		); err != nil {
			return 0, fmt.Errorf("insert detection rule: %w", err)
		}
	}

	insertMappings := func(scope string, fields []entity.FieldMapping) error {
		for _, f := range fields {
			if f.Source == "" || f.Target == "" {
				continue
			}
			var transform *string
			if f.Transform != "" {
				transform = &f.Transform
			}
			if _, err := r.db.exec(ctx, tx,
				`INSERT INTO field_mappings (model_version_id, scope, source_field, target_field, transform, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
				versionID, scope, f.Source, f.Target, transform, now,
			); err != nil {
				return fmt.Errorf("insert field mapping: %w", err)
			}
		}
		return nil
	}
	if err := insertMappings("document", mapping.Fields); err != nil {
		return 0, err
	}
	if err := insertMappings("item", mapping.ItemFields); err != nil {
		return 0, err
	}
	return versionID, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParserModel(row rowScanner) (*entity.ParserModel, error) {
	var (
		m                                  entity.ParserModel
		createdAt, updatedAt               string
		versionID                          sql.NullInt64
		version, versionCreatedAt          sql.NullString
		rulesJSON, mappingJSON, examplesJS sql.NullString
		createdBy                          *string
	)
	if err := row.Scan(
		&m.ID, &m.Name, &m.DisplayName, &m.Active, &createdAt, &updatedAt,
		&versionID, &version, &versionCreatedAt, &createdBy,
		&rulesJSON, &mappingJSON, &examplesJS,
	); err != nil {
		return nil, err
	}
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)

	if versionID.Valid {
		v := &entity.ParserModelVersion{
			ID:        versionID.Int64,
			ModelID:   m.ID,
			Version:   version.String,
			CreatedAt: parseTime(versionCreatedAt.String),
			CreatedBy: createdBy,
			Examples:  []string{},
		}
		unmarshalJSON(rulesJSON, &v.DetectionRules)
		unmarshalJSON(mappingJSON, &v.MappingConfig)
		unmarshalJSON(examplesJS, &v.Examples)
		m.CurrentVersion = v
	}
	return &m, nil
}
