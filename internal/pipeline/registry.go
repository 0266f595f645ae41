package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/entity"
)

// ModelRegistry lists and looks up parser models.
type ModelRegistry interface {
	List(ctx context.Context) ([]ModelDefinition, error)
	// Get returns false when no model has the id.
	Get(ctx context.Context, id string) (ModelDefinition, bool, error)
}

// DefaultModels is used when no other definition is available.
func DefaultModels() []ModelDefinition {
	return []ModelDefinition{{
		ID:            constants.GenericModelID,
		Label:         "Generic (legacy)",
		ParserKey:     constants.ParserLegacyWorkflow,
		NormalizerKey: constants.NormalizerCanonicalV1,
		Version:       "1.0",
		Status:        StatusActive,
		Enabled:       true,
	}}
}

// MemoryRegistry holds a fixed set of models in insertion order.
type MemoryRegistry struct {
	models []ModelDefinition
}

func NewMemoryRegistry(models ...ModelDefinition) *MemoryRegistry {
	return &MemoryRegistry{models: mergeByID(nil, models)}
}

func (r *MemoryRegistry) List(context.Context) ([]ModelDefinition, error) {
	return append([]ModelDefinition(nil), r.models...), nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (ModelDefinition, bool, error) {
	for _, m := range r.models {
		if m.ID == id {
			return m, true, nil
		}
	}
	return ModelDefinition{}, false, nil
}

type yamlModel struct {
	ID         string                `yaml:"id"`
	Label      string                `yaml:"label"`
	Parser     string                `yaml:"parser"`
	Normalizer string                `yaml:"normalizer"`
	Version    string                `yaml:"version"`
	Status     *string               `yaml:"status"`
	Enabled    *bool                 `yaml:"enabled"`
	Detection  entity.DetectionRules `yaml:"detection"`
	Mapping    entity.MappingConfig  `yaml:"mapping_config"`
}

type yamlModelsFile struct {
	Models []yamlModel `yaml:"models"`
}

// YAMLRegistry reads models.yaml. A missing or unreadable file, or one with
// no valid models, yields DefaultModels.
type YAMLRegistry struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	models *MemoryRegistry
}

func NewYAMLRegistry(path string, logger *slog.Logger) *YAMLRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &YAMLRegistry{path: path, logger: logger}
	r.Reload()
	return r
}

// Reload re-reads the file.
func (r *YAMLRegistry) Reload() {
	models, err := loadYAMLModels(r.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		r.logger.Info("pipeline.models.not_found", "path", r.path)
	case err != nil:
		r.logger.Warn("pipeline.models.load_failed", "path", r.path, "error", err)
	default:
		r.logger.Info("pipeline.models.load.ok", "path", r.path, "models", len(models))
	}
	if len(models) == 0 {
		models = DefaultModels()
	}

	r.mu.Lock()
	r.models = NewMemoryRegistry(models...)
	r.mu.Unlock()
}

func (r *YAMLRegistry) List(ctx context.Context) ([]ModelDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models.List(ctx)
}

func (r *YAMLRegistry) Get(ctx context.Context, id string) (ModelDefinition, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models.Get(ctx, id)
}

func loadYAMLModels(path string) ([]ModelDefinition, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f yamlModelsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	var out []ModelDefinition
	for _, y := range f.Models {
		id := strings.TrimSpace(y.ID)
		if id == "" {
			continue
		}
		m := ModelDefinition{
			ID:            id,
			Label:         orDefault(y.Label, id),
			ParserKey:     orDefault(y.Parser, constants.ParserLegacyWorkflow),
			NormalizerKey: orDefault(y.Normalizer, constants.NormalizerLegacyPassthrough),
			Version:       orDefault(y.Version, "1.0"),
			Status:        StatusActive,
			Enabled:       true,
			Detection:     y.Detection,
			Mapping:       y.Mapping,
		}
		if y.Enabled != nil {
			m.Enabled = *y.Enabled
		}
		// An explicit status wins over enabled.
		if y.Status != nil {
			m.Status = strings.ToLower(orDefault(*y.Status, StatusActive))
			m.Enabled = m.Status == StatusActive
		}
		out = append(out, m)
	}
	return out, nil
}

// ParserModelSource is the storage side of DBRegistry.
type ParserModelSource interface {
	List(ctx context.Context) ([]entity.ParserModel, error)
	Get(ctx context.Context, name string) (*entity.ParserModel, error)
}

// DBRegistry exposes models configured through the API.
type DBRegistry struct {
	repo ParserModelSource
}

func NewDBRegistry(repo ParserModelSource) *DBRegistry {
	return &DBRegistry{repo: repo}
}

func (r *DBRegistry) List(ctx context.Context) ([]ModelDefinition, error) {
	models, err := r.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list parser models: %w", err)
	}
	out := make([]ModelDefinition, 0, len(models))
	for i := range models {
		out = append(out, FromParserModel(&models[i]))
	}
	return out, nil
}

func (r *DBRegistry) Get(ctx context.Context, id string) (ModelDefinition, bool, error) {
	m, err := r.repo.Get(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return ModelDefinition{}, false, nil
	}
	if err != nil {
		return ModelDefinition{}, false, fmt.Errorf("get parser model: %w", err)
	}
	return FromParserModel(m), true, nil
}

// FromParserModel converts a stored model. Stored models parse with the
// legacy workflow and normalise with canonical_v1 unless their rules say
// otherwise.
func FromParserModel(m *entity.ParserModel) ModelDefinition {
	def := ModelDefinition{
		ID:            m.Name,
		Label:         m.Name,
		ParserKey:     constants.ParserLegacyWorkflow,
		NormalizerKey: constants.NormalizerCanonicalV1,
		Version:       "1.0",
		Status:        StatusInactive,
		Enabled:       m.Active,
	}
	if m.DisplayName != nil && *m.DisplayName != "" {
		def.Label = *m.DisplayName
	}
	if m.Active {
		def.Status = StatusActive
	}
	if v := m.CurrentVersion; v != nil {
		def.Version = v.Version
		def.Detection = v.DetectionRules
		def.Mapping = v.MappingConfig
		def.ParserKey = orDefault(v.DetectionRules.ParserKey, def.ParserKey)
		def.NormalizerKey = orDefault(v.DetectionRules.NormalizerKey, def.NormalizerKey)
	}
	return def
}

// CompositeRegistry chains registries. List merges by id with later
// registries overriding earlier ones; Get returns the first hit.
type CompositeRegistry struct {
	registries []ModelRegistry
}

func NewCompositeRegistry(registries ...ModelRegistry) *CompositeRegistry {
	return &CompositeRegistry{registries: registries}
}

func (r *CompositeRegistry) List(ctx context.Context) ([]ModelDefinition, error) {
	var out []ModelDefinition
	for _, reg := range r.registries {
		models, err := reg.List(ctx)
		if err != nil {
			return nil, err
		}
		out = mergeByID(out, models)
	}
	return out, nil
}

func (r *CompositeRegistry) Get(ctx context.Context, id string) (ModelDefinition, bool, error) {
	for _, reg := range r.registries {
		m, ok, err := reg.Get(ctx, id)
		if err != nil {
			return ModelDefinition{}, false, err
		}
		if ok {
			return m, true, nil
		}
	}
	return ModelDefinition{}, false, nil
}

// mergeByID appends models to base; a repeated id replaces the earlier
// entry in place.
func mergeByID(base, models []ModelDefinition) []ModelDefinition {
	idx := make(map[string]int, len(base))
	for i, m := range base {
		idx[m.ID] = i
	}
	for _, m := range models {
		if i, ok := idx[m.ID]; ok {
			base[i] = m
			continue
		}
		idx[m.ID] = len(base)
		base = append(base, m)
	}
	return base
}

// ActiveModels filters the models that take part in detection.
func ActiveModels(models []ModelDefinition) []ModelDefinition {
	out := make([]ModelDefinition, 0, len(models))
	for _, m := range models {
		if m.Active() {
			out = append(out, m)
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
