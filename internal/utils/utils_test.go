package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrHelpers(t *testing.T) {
	assert.Nil(t, StrPtr("   "))
	assert.Equal(t, "abc", *StrPtr(" abc "))
	assert.Equal(t, "", StrOrEmpty(nil))
	assert.True(t, IsBlank(StrPtr("")))
	assert.Equal(t, "x", *FirstNonBlank(nil, new(string), StrPtr("x")))
	assert.Nil(t, FirstNonBlank(nil))
}

func TestDates(t *testing.T) {
	d, err := ParseYMD("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), d)
	_, err = ParseYMD("05/03/2024")
	assert.Error(t, err)

	loc := time.FixedZone("BRT", -3*3600)
	assert.Equal(t, "2024-03-05T12:00:00.000Z", FormatISO(time.Date(2024, 3, 5, 9, 0, 0, 0, loc)))
}

func TestTruncateAndFold(t *testing.T) {
	assert.Equal(t, "Cota", Truncate("Cotação", 4))
	assert.Equal(t, "abc", Truncate("abc", 0))
	assert.Equal(t, "Cotacao de Precos", FoldAccents("Cotação de Preços"))
	assert.Len(t, SHA256Hex([]byte("x")), 64)
}
