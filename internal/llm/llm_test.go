package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-parser/internal/mappings"
	"github.com/joseph-ayodele/order-parser/internal/parsers"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }
func boolp(b bool) *bool    { return &b }

func TestSchema_AcceptsNullsAndRejectsUnknownKeys(t *testing.T) {
	schema := BuildOrderJSONSchema()

	ok := []byte(`{"order":{"customer_name":null,"payment_terms_days":30},"lines":[{"quantity":1.5,"description":null}]}`)
	assert.NoError(t, ValidateJSONAgainstSchema(schema, ok))

	bad := []byte(`{"order":{"surprise":"x"},"lines":[]}`)
	assert.Error(t, ValidateJSONAgainstSchema(schema, bad))

	missing := []byte(`{"order":{}}`)
	assert.Error(t, ValidateJSONAgainstSchema(schema, missing))
}

func TestSanitizeExtraction(t *testing.T) {
	raw := []byte(`{
		"order": {"customer_cnpj": 12345678000190, "notes": " ", "payment_terms_days": 30.0, "bogus": true},
		"lines": [{"quantity": "400", "unit_price_excl_vat": "44,10", "item_reference_no": 133510}, 7],
		"meta": {}
	}`)

	out, changed, err := SanitizeExtraction(raw, nil)
	require.NoError(t, err)
	require.NoError(t, ValidateJSONAgainstSchema(BuildOrderJSONSchema(), out))

	var got ExtractedOrder
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "12345678000190", *got.Order.CustomerCNPJ)
	assert.Nil(t, got.Order.Notes)
	assert.Equal(t, 30, *got.Order.PaymentTermsDays)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 400.0, *got.Lines[0].Quantity)
	assert.InDelta(t, 44.10, *got.Lines[0].UnitPriceExclVAT, 1e-9)
	assert.Equal(t, "133510", *got.Lines[0].ItemReferenceNo)

	assert.Contains(t, changed, "order.bogus(unknown)")
	assert.Contains(t, changed, "lines[1](type)")
	assert.Contains(t, changed, "meta(unknown)")
}

func TestSanitizeExtraction_NotJSON(t *testing.T) {
	_, _, err := SanitizeExtraction([]byte("nope"), nil)
	assert.Error(t, err)
}

func TestToOrderResult(t *testing.T) {
	m := mappings.Default()
	ext := ExtractedOrder{
		Order: OrderHeader{
			CustomerOrderNumber: strp(" 4500123 "),
			CurrencyCode:        strp("Reais"),
			PaymentTermsDays:    intp(60),
			PaymentDaysOfMonth:  strp("05-20"),
			PaymentMethod:       strp("Depósito bancário"),
			ShippingMethod:      strp("cif"),
			CustomerName:        strp("LAR"),
			ShipZip:             strp("85851-000"),
		},
		Lines: []ExtractedLine{{
			ItemReferenceNo: strp("133510"),
			Quantity:        func() *float64 { v := 400.0; return &v }(),
			DeliveryDate:    strp("05/12/2024"),
		}},
	}

	res := ToOrderResult(ext, nil, m)
	assert.Equal(t, "4500123", *res.Order.CustomerOrderNumber)
	assert.Equal(t, "BRL", *res.Order.CurrencyCode)
	assert.Equal(t, "60D-05-20", *res.Order.PaymentTermsCode)
	assert.Equal(t, PaymentMethodBankTransfer, *res.Order.PaymentMethodCode)
	assert.Equal(t, "CIF", *res.Order.ShippingMethodCode)
	assert.Nil(t, res.Order.CompanyBankAccountCode)
	assert.Equal(t, "85851-000", *res.Order.ShipTo.Zip)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, "2024-12-05", *res.Lines[0].DeliveryDate)
}

func TestToOrderResult_DeterministicFallbacks(t *testing.T) {
	det := &parsers.Extraction{PaymentTerms: parsers.PaymentTerms{
		Days:         intp(60),
		PaymentDays:  []int{5, 20},
		BankTransfer: boolp(true),
	}}
	ext := ExtractedOrder{Order: OrderHeader{PaymentMethod: strp("boleto"), ShippingMethod: strp("truck")}}

	res := ToOrderResult(ext, det, nil)
	assert.Equal(t, "60D-05-20", *res.Order.PaymentTermsCode)
	assert.Equal(t, PaymentMethodBankTransfer, *res.Order.PaymentMethodCode)
	assert.Nil(t, res.Order.ShippingMethodCode, "unmapped shipping methods are dropped")
	assert.NotNil(t, res.Lines)
	assert.Empty(t, res.Lines)
}

func TestToOrderResult_MappedPaymentTerms(t *testing.T) {
	ext := ExtractedOrder{Order: OrderHeader{PaymentTerms: strp("Pagamento 30 DDL"), CurrencyCode: strp("ARS")}}
	res := ToOrderResult(ext, nil, mappings.Default())
	assert.Equal(t, "30DDL", *res.Order.PaymentTermsCode)
	assert.Equal(t, "ARS", *res.Order.CurrencyCode, "unknown currencies are kept as given")
}

func TestBuildUserPrompt(t *testing.T) {
	det := parsers.ParseAll("CNPJ 12.345.678/0001-90\nCondicoes de Pagamento: 060\nDias de Pagamento: 05-20")
	p := BuildUserPrompt(ExtractRequest{
		Text:          "ORDEM DE COMPRA",
		SupplierNames: []string{"OLIGO BASICS"},
		Deterministic: det,
	})
	assert.Contains(t, p, "Document type: unknown")
	assert.Contains(t, p, "Company CNPJs: Not specified")
	assert.Contains(t, p, "Company names: OLIGO BASICS")
	assert.Contains(t, p, "CNPJs found: 12345678000190")
	assert.Contains(t, p, "- Days: 60")
	assert.Contains(t, p, "- Payment days of month: 5, 20")
	assert.Contains(t, p, "DOCUMENT TEXT TO ANALYZE:\n\nORDEM DE COMPRA")
}
