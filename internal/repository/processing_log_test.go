package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/entity"
)

func TestProcessingLogRepository_CreateUpdateGet(t *testing.T) {
	ctx := context.Background()
	repo := NewProcessingLogRepository(openTestDB(t), testLogger())
	started := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	l := &entity.ProcessingLog{
		Filename:    sp("pedido.pdf"),
		CompanyName: sp("Frigorifico Exemplo"),
		Status:      sp("partial"),
		StartedAt:   &started,
		RawMetadata: map[string]any{"detector_reasons": []string{"keyword:x"}},
	}
	require.NoError(t, repo.Create(ctx, l))
	require.NotEmpty(t, l.ID)

	finished := started.Add(1500 * time.Millisecond)
	dur := int64(1500)
	warnings := 2
	require.NoError(t, repo.Update(ctx, l.ID, entity.ProcessingLogUpdate{
		Status:        sp("success"),
		FinishedAt:    &finished,
		DurationMS:    &dur,
		WarningsCount: &warnings,
		RawMetadata:   map[string]any{"document_id": "doc-1"},
	}))

	got, err := repo.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "success", *got.Status)
	assert.Equal(t, "pedido.pdf", *got.Filename)
	assert.Equal(t, int64(1500), *got.DurationMS)
	assert.Equal(t, 2, got.WarningsCount)
	assert.True(t, started.Equal(*got.StartedAt))
	assert.True(t, finished.Equal(*got.FinishedAt))
	assert.Equal(t, "doc-1", got.RawMetadata["document_id"])
	assert.Contains(t, got.RawMetadata, "detector_reasons", "metadata is merged")

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
	err = repo.Update(ctx, "missing", entity.ProcessingLogUpdate{Status: sp("failed")})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestProcessingLogRepository_ListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewProcessingLogRepository(openTestDB(t), testLogger())
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	seed := []struct {
		file, company, status, model string
		day                          int
	}{
		{"lar-001.pdf", "LAR Cooperativa", "success", "lar", 0},
		{"brf-77.pdf", "BRF S.A.", "failed", "brf", 1},
		{"lar-002.pdf", "LAR Cooperativa", "partial", "lar", 2},
	}
	for _, s := range seed {
		at := base.AddDate(0, 0, s.day)
		require.NoError(t, repo.Create(ctx, &entity.ProcessingLog{
			Filename: sp(s.file), CompanyName: sp(s.company), Status: sp(s.status), ModelName: sp(s.model), StartedAt: &at,
		}))
	}

	all, err := repo.List(ctx, entity.ProcessingLogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "lar-002.pdf", *all[0].Filename, "newest first")

	byModel, err := repo.List(ctx, entity.ProcessingLogFilter{ModelName: "lar"})
	require.NoError(t, err)
	assert.Len(t, byModel, 2)

	byStatus, err := repo.List(ctx, entity.ProcessingLogFilter{Status: "failed"})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "brf-77.pdf", *byStatus[0].Filename)

	byName, err := repo.List(ctx, entity.ProcessingLogFilter{Filename: "lar-00", CompanyName: "Cooperativa"})
	require.NoError(t, err)
	assert.Len(t, byName, 2)

	from := base.AddDate(0, 0, 1)
	to := base.AddDate(0, 0, 1).Add(time.Hour)
	window, err := repo.List(ctx, entity.ProcessingLogFilter{DateFrom: &from, DateTo: &to})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "brf-77.pdf", *window[0].Filename)

	page, err := repo.List(ctx, entity.ProcessingLogFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "brf-77.pdf", *page[0].Filename)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, clampLimit(0))
	assert.Equal(t, MaxListLimit, clampLimit(1000))
	assert.Equal(t, 10, clampLimit(10))
}
