package models

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/repository"
)

func newService(t *testing.T) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.Open(context.Background(), repository.Config{SQLitePath: filepath.Join(t.TempDir(), "models.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger) })
	return NewService(repository.NewParserModelRepository(db, logger), logger)
}

func TestCreateValidates(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"empty name", CreateRequest{}},
		{"uppercase name", CreateRequest{Name: "Acme"}},
		{"bad regex", CreateRequest{Name: "acme", DetectionRules: entity.DetectionRules{HeaderRegex: []string{"(unclosed"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}
}

func TestCreateAndConflict(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	display := "  Acme Ltda  "
	m, err := svc.Create(ctx, CreateRequest{
		Name:           " acme ",
		DisplayName:    &display,
		DetectionRules: entity.DetectionRules{Keywords: []string{"ordem de compra"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "acme", m.Name)
	assert.Equal(t, "Acme Ltda", *m.DisplayName)
	require.NotNil(t, m.CurrentVersion)
	assert.Equal(t, "v1", m.CurrentVersion.Version)

	_, err = svc.Create(ctx, CreateRequest{Name: "acme"})
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Equal(t, "Model already exists", common.PublicMessage(err))
}

func TestNotFoundMessage(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, "Model not found", common.PublicMessage(err))

	_, err = svc.Activate(ctx, "missing")
	assert.Equal(t, "Model not found", common.PublicMessage(err))

	_, err = svc.Update(ctx, "missing", UpdateRequest{})
	assert.Equal(t, "Model not found", common.PublicMessage(err))
}

func TestUpdateAndToggle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateRequest{Name: "acme"})
	require.NoError(t, err)

	m, err := svc.Update(ctx, "acme", UpdateRequest{DetectionRules: &entity.DetectionRules{Keywords: []string{"pedido"}}})
	require.NoError(t, err)
	assert.Equal(t, "v2", m.CurrentVersion.Version)
	assert.Equal(t, []string{"pedido"}, m.CurrentVersion.DetectionRules.Keywords)

	_, err = svc.Update(ctx, "acme", UpdateRequest{DetectionRules: &entity.DetectionRules{HeaderRegex: []string{"["}}})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	m, err = svc.Deactivate(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, m.Active)

	m, err = svc.Activate(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, m.Active)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
