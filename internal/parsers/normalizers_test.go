package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCNPJ(t *testing.T) {
	assert.Equal(t, "12345678000190", NormalizeCNPJ("12.345.678/0001-90"))
	assert.Equal(t, "12345678000190", NormalizeCNPJ("12345678000190"))
	assert.Empty(t, NormalizeCNPJ("123"))
	assert.Empty(t, NormalizeCNPJ(""))
}

func TestNormalizeDate(t *testing.T) {
	tests := map[string]string{
		"15/01/2024": "2024-01-15",
		"2024-01-15": "2024-01-15",
		"05-12-2023": "2023-12-05",
		"2024/3/7":   "2024-03-07",
		"invalid":    "",
		"32/01/2024": "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeDate(in), in)
	}
}

func TestNormalizeMonetaryValue(t *testing.T) {
	tests := []struct {
		in     string
		locale Locale
		want   float64
		ok     bool
	}{
		{"1.234,56", LocalePtBR, 1234.56, true},
		{"10,00", LocalePtBR, 10, true},
		{"R$ 2.500,00", LocalePtBR, 2500, true},
		{"1,234.56", LocaleEnUS, 1234.56, true},
		{"10.00", LocaleEnUS, 10, true},
		{"abc", LocaleEnUS, 0, false},
		{"", LocalePtBR, 0, false},
	}
	for _, tt := range tests {
		got, ok := NormalizeMonetaryValue(tt.in, tt.locale)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestNormalizeQuantity(t *testing.T) {
	qty, unit, ok := NormalizeQuantity("3000 kg")
	assert.True(t, ok)
	assert.Equal(t, 3000.0, qty)
	assert.Equal(t, "KG", unit)

	qty, unit, ok = NormalizeQuantity("0,5 ton")
	assert.True(t, ok)
	assert.Equal(t, 0.5, qty)
	assert.Equal(t, "TON", unit)

	qty, unit, ok = NormalizeQuantity("12")
	assert.True(t, ok)
	assert.Equal(t, 12.0, qty)
	assert.Empty(t, unit)

	_, _, ok = NormalizeQuantity("none")
	assert.False(t, ok)
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.234,56", 1234.56, true},
		{"12.000,000", 12000, true},
		{"3.5", 3.5, true},
		{"R$ 7,25", 7.25, true},
		{"", 0, false},
		{"--", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseDecimal(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestNormalizePhoneAndCEP(t *testing.T) {
	assert.Equal(t, "+5511987654321", NormalizePhone("+55 (11) 98765-4321"))
	assert.Empty(t, NormalizePhone("1234"))
	assert.Equal(t, "85851000", NormalizeCEP("85.851-000"))
	assert.Empty(t, NormalizeCEP("1234"))
}

func TestInferCurrency(t *testing.T) {
	assert.Equal(t, "BRL", InferCurrency("Total R$ 10,00"))
	assert.Equal(t, "USD", InferCurrency("Moeda: DÓLAR"))
	assert.Equal(t, "EUR", InferCurrency("100 €"))
	assert.Empty(t, InferCurrency("no currency"))
}
