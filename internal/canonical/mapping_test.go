package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/entity"
)

func mappingFixture() entity.LegacyOutput {
	return entity.LegacyOutput{
		Result: &entity.ParseResult{
			Order: entity.Order{
				CustomerOrderNumber: sp("PO-10"),
				OrderDate:           sp("2024-02-10"),
				BillingDate:         sp("20/02/2024"),
				Notes:               sp("entrega doca 3"),
				SellTo:              entity.Party{Name: sp("Cliente Y"), CNPJ: sp("12345678000190"), Email: sp("Compras@Y.com")},
			},
			Lines: []entity.Line{
				{ItemReferenceNo: sp("SKU-1"), Description: sp("Produto B"), Quantity: fp(2), UnitPriceExclVAT: fp(9.5)},
				{Description: sp("Produto C"), Quantity: fp(1)},
			},
		},
		DocumentType: constants.DocTypePurchaseOrder,
	}
}

func TestApplyMapping_FillsOnlyEmptyTargets(t *testing.T) {
	cfg := &entity.MappingConfig{
		Fields: []entity.FieldMapping{
			{Source: "order.customer_order_number", Target: "order.order_number"},
			{Source: "result.order.sell_to.email", Target: "customer.code", Transform: "lower"},
			{Source: "order.billing_date", Target: "order.valid_until", Transform: "date"},
			{Source: "order.notes", Target: "order.shipping_method", Transform: "upper"},
			{Source: "lines[].quantity", Target: "totals.freight", Transform: "number"},
			{Source: "order.missing", Target: "customer.name"},
			{Source: "order.notes", Target: "nowhere.at_all"},
		},
		ItemFields: []entity.FieldMapping{
			{Source: "lines[].item_reference_no", Target: "items[].sku"},
			{Source: "lines[].description", Target: "items[].sku", Transform: "upper"},
			{Source: "lines[].quantity", Target: "items[].unit_price"},
		},
	}

	doc := Normalize(mappingFixture(), Options{InputType: constants.InputText, Mapping: cfg})

	assert.Equal(t, "PO-10", *doc.Order.OrderNumber)
	assert.Equal(t, "compras@y.com", *doc.Customer.Code)
	assert.Equal(t, "2024-02-20", *doc.Order.ValidUntil)
	assert.Equal(t, "ENTREGA DOCA 3", *doc.Order.ShippingMethod)
	assert.InDelta(t, 2.0, *doc.Totals.Freight, 1e-9)
	assert.Equal(t, "Cliente Y", *doc.Customer.Name)

	assert.Equal(t, "SKU-1", *doc.Items[0].SKU)
	assert.Equal(t, "PRODUTO C", *doc.Items[1].SKU)
	assert.InDelta(t, 9.5, *doc.Items[0].UnitPrice, 1e-9)
	assert.InDelta(t, 1.0, *doc.Items[1].UnitPrice, 1e-9)
	require.NoError(t, Validate(doc))
}

func TestPathLookup(t *testing.T) {
	root := toGeneric(mappingFixture().Result)

	assert.Equal(t, "Cliente Y", valueAt(root, "order.sell_to.name"))
	assert.Equal(t, "Cliente Y", valueAt(root, "result.order.sell_to.name"))
	assert.Equal(t, "SKU-1", valueAt(root, "lines[].item_reference_no"))
	assert.Nil(t, valueAt(root, "order.sell_to.name.deeper"))
	assert.Nil(t, valueAt(root, ""))

	assert.Equal(t, []any{"SKU-1", nil}, listAt(root, "lines[].item_reference_no"))
	assert.Len(t, listAt(root, "lines[]"), 2)
	assert.Equal(t, []any{"PO-10"}, listAt(root, "order.customer_order_number"))
	assert.Nil(t, listAt(root, "order[].x"))
}

func TestApplyTransform(t *testing.T) {
	tests := []struct {
		in        any
		transform string
		want      any
	}{
		{"abc", "UPPER", "ABC"},
		{"ABC", "lower", "abc"},
		{"15/01/2024", "date_iso", "2024-01-15"},
		{"not a date", "date", nil},
		{"1.234,56", "decimal", 1234.56},
		{"1234.56", "number", 1234.56},
		{"n/a", "number", nil},
		{42.0, "upper", 42.0},
		{"keep", "", "keep"},
		{nil, "upper", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, applyTransform(tt.in, tt.transform), "%v/%s", tt.in, tt.transform)
	}
}
