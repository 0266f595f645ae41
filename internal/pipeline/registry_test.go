package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/common"
	"github.com/joseph-ayodele/order-parser/internal/entity"
)

const modelsYAML = `models:
  - id: generic
    label: Generic
    parser: legacy_workflow
    normalizer: canonical_v1
    detection:
      fallback: true
  - id: lar
    label: LAR Cooperativa
    parser: lar_parser
    normalizer: canonical_v1
    version: "2.0"
    detection:
      keywords: ["lar cooperativa"]
      header_regex: ["ordem de compra\\s*-"]
    mapping_config:
      fields:
        - source: result.order.notes
          target: order.notes
  - id: old
    status: inactive
    enabled: true
  - label: no id is skipped
`

func TestYAMLRegistry_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(modelsYAML), 0o644))

	reg := NewYAMLRegistry(path, nil)
	models, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 3)

	lar := models[1]
	assert.Equal(t, "lar", lar.ID)
	assert.Equal(t, constants.ParserLAR, lar.ParserKey)
	assert.Equal(t, "2.0", lar.Version)
	assert.True(t, lar.Active())
	assert.Equal(t, []string{"lar cooperativa"}, lar.Detection.Keywords)
	require.Len(t, lar.Mapping.Fields, 1)
	assert.Equal(t, "order.notes", lar.Mapping.Fields[0].Target)

	old := models[2]
	assert.Equal(t, constants.NormalizerLegacyPassthrough, old.NormalizerKey)
	assert.False(t, old.Active(), "explicit status wins over enabled")

	assert.Len(t, ActiveModels(models), 2)
	assert.True(t, models[0].IsFallback())
}

func TestYAMLRegistry_MissingFileUsesDefaults(t *testing.T) {
	reg := NewYAMLRegistry(filepath.Join(t.TempDir(), "nope.yaml"), nil)

	models, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultModels(), models)

	m, ok, err := reg.Get(context.Background(), "generic")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, constants.NormalizerCanonicalV1, m.NormalizerKey)
}

func TestYAMLRegistry_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	reg := NewYAMLRegistry(path, nil)
	_, ok, _ := reg.Get(context.Background(), "lar")
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte(modelsYAML), 0o644))
	reg.Reload()

	_, ok, err := reg.Get(context.Background(), "lar")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompositeRegistry(t *testing.T) {
	v1 := acmeModel()
	v2 := acmeModel()
	v2.Version = "v2"
	brf := ModelDefinition{ID: "brf", ParserKey: constants.ParserBRF, Status: StatusActive, Enabled: true}

	reg := NewCompositeRegistry(
		NewMemoryRegistry(DefaultModels()[0], v1),
		NewMemoryRegistry(v2, brf),
	)

	models, err := reg.List(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"generic", "acme", "brf"}, ids)
	assert.Equal(t, "v2", models[1].Version, "later registries override in list")

	got, ok, err := reg.Get(context.Background(), "acme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", got.Version, "get returns the first hit")

	_, ok, err = reg.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

type fakeModelSource struct {
	models []entity.ParserModel
}

func (f *fakeModelSource) List(context.Context) ([]entity.ParserModel, error) {
	return f.models, nil
}

func (f *fakeModelSource) Get(_ context.Context, name string) (*entity.ParserModel, error) {
	for i := range f.models {
		if f.models[i].Name == name {
			return &f.models[i], nil
		}
	}
	return nil, common.ErrNotFound
}

func TestDBRegistry(t *testing.T) {
	src := &fakeModelSource{models: []entity.ParserModel{
		{
			Name:        "cliente-x",
			DisplayName: sp("Cliente X"),
			Active:      true,
			CurrentVersion: &entity.ParserModelVersion{
				Version:        "v3",
				DetectionRules: entity.DetectionRules{Keywords: []string{"cliente x"}, ParserKey: constants.ParserBRF},
			},
		},
		{Name: "off", Active: false},
	}}
	reg := NewDBRegistry(src)

	models, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)

	x := models[0]
	assert.Equal(t, "Cliente X", x.Label)
	assert.Equal(t, "v3", x.Version)
	assert.Equal(t, constants.ParserBRF, x.ParserKey)
	assert.Equal(t, constants.NormalizerCanonicalV1, x.NormalizerKey)
	assert.True(t, x.Active())
	assert.False(t, models[1].Active())

	_, ok, err := reg.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
