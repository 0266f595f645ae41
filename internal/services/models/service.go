package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/repository"
)

// Service handles parser model business logic.
type Service struct {
	repo   repository.ParserModelRepository
	logger *slog.Logger
}

// NewService creates a new parser model service.
func NewService(repo repository.ParserModelRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// CreateRequest represents parser model creation parameters.
type CreateRequest struct {
	Name           string                `json:"name"`
	DisplayName    *string               `json:"display_name"`
	DetectionRules entity.DetectionRules `json:"detection_rules"`
	MappingConfig  entity.MappingConfig  `json:"mapping_config"`
	Examples       []string              `json:"examples"`
	CreatedBy      *string               `json:"created_by"`
}

// UpdateRequest represents a partial parser model update.
type UpdateRequest struct {
	DisplayName    *string                `json:"display_name"`
	Active         *bool                  `json:"active"`
	DetectionRules *entity.DetectionRules `json:"detection_rules"`
	MappingConfig  *entity.MappingConfig  `json:"mapping_config"`
	Examples       []string               `json:"examples"`
	UpdatedBy      *string                `json:"updated_by"`
}

func (s *Service) List(ctx context.Context) ([]entity.ParserModel, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, name string) (*entity.ParserModel, error) {
	m, err := s.repo.Get(ctx, name)
	return m, notFound(err)
}

// Create validates and stores a new model at version v1.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*entity.ParserModel, error) {
	req.Name = strings.TrimSpace(req.Name)

	validator := common.NewValidator()
	validator.Field("name", req.Name, common.Required, common.ModelName, common.MaxLength(64))
	validateRules(validator, req.DetectionRules)
	if err := common.ValidateAndReturnError(validator); err != nil {
		return nil, err
	}

	m, err := s.repo.Create(ctx, repository.CreateParserModelRequest{
		Name:           req.Name,
		DisplayName:    trimmed(req.DisplayName),
		DetectionRules: req.DetectionRules,
		MappingConfig:  req.MappingConfig,
		Examples:       req.Examples,
		CreatedBy:      trimmed(req.CreatedBy),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("models.create.ok", "name", m.Name)
	return m, nil
}

// Update applies req; rule, mapping or example changes bump the version.
func (s *Service) Update(ctx context.Context, name string, req UpdateRequest) (*entity.ParserModel, error) {
	validator := common.NewValidator()
	if req.DetectionRules != nil {
		validateRules(validator, *req.DetectionRules)
	}
	if err := common.ValidateAndReturnError(validator); err != nil {
		return nil, err
	}

	m, err := s.repo.Update(ctx, name, repository.UpdateParserModelRequest{
		DisplayName:    trimmed(req.DisplayName),
		Active:         req.Active,
		DetectionRules: req.DetectionRules,
		MappingConfig:  req.MappingConfig,
		Examples:       req.Examples,
		UpdatedBy:      trimmed(req.UpdatedBy),
	})
	if err != nil {
		return nil, notFound(err)
	}
	s.logger.Info("models.update.ok", "name", name, "version", versionOf(m))
	return m, nil
}

func (s *Service) Activate(ctx context.Context, name string) (*entity.ParserModel, error) {
	m, err := s.repo.SetActive(ctx, name, true)
	return m, notFound(err)
}

func (s *Service) Deactivate(ctx context.Context, name string) (*entity.ParserModel, error) {
	m, err := s.repo.SetActive(ctx, name, false)
	return m, notFound(err)
}

func validateRules(v *common.Validator, rules entity.DetectionRules) {
	for i, re := range rules.HeaderRegex {
		v.Field(fmt.Sprintf("detection_rules.header_regex[%d]", i), re, common.Regex)
	}
}

// notFound rewrites repository not-found errors into the public message.
func notFound(err error) error {
	if err != nil && errors.Is(err, common.ErrNotFound) {
		return common.NotFound("Model not found")
	}
	return err
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

func versionOf(m *entity.ParserModel) string {
	if m == nil || m.CurrentVersion == nil {
		return ""
	}
	return m.CurrentVersion.Version
}
