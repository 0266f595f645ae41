package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorCollectsErrors(t *testing.T) {
	v := NewValidator().
		Field("name", "", Required).
		Field("name", "ACME Ltda", ModelName).
		Field("display_name", "ab", MinLength(3)).
		Field("header_regex", "(unclosed", Regex)

	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 4)

	err := ValidateAndReturnError(v)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestValidatorAcceptsValidInput(t *testing.T) {
	name := "acme-ltda"
	v := NewValidator().
		Field("name", &name, Required, ModelName, MaxLength(40)).
		Field("header_regex", `^\s*pedido`, Regex)

	assert.False(t, v.HasErrors())
	assert.NoError(t, ValidateAndReturnError(v))
	assert.Empty(t, v.ErrorMessage())
}

func TestRequiredNilPointer(t *testing.T) {
	var s *string
	assert.NotNil(t, Required("x", s))
	assert.NotNil(t, Required("x", nil))
	assert.Nil(t, Required("x", 3))
}
