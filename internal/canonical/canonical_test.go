package canonical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-parser/constants"
	"github.com/joseph-ayodele/order-parser/internal/entity"
	"github.com/joseph-ayodele/order-parser/internal/utils"
)

func sp(s string) *string    { return &s }
func fp(f float64) *float64 { return &f }

func fixedNow() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestNormalize_BasicFields(t *testing.T) {
	raw := []byte("pedido teste")
	out := entity.LegacyOutput{
		Result: &entity.ParseResult{
			Order: entity.Order{
				CustomerOrderNumber:   sp("PO-123"),
				OrderDate:             sp("15/01/2024"),
				RequestedDeliveryDate: sp("2024-02-05"),
				CurrencyCode:          sp("R$"),
				PaymentTermsCode:      sp("30D"),
				SellTo: entity.Party{
					Name:    sp("Cliente X"),
					CNPJ:    sp("12.345.678/0001-90"),
					Email:   sp("compras@cliente.com"),
					Phone:   sp("+55 11 99999-0000"),
					Contact: sp("Maria"),
				},
				BillTo: entity.Address{Address: sp("Rua A"), City: sp("Sao Paulo"), Zip: sp("01234-567")},
				Notes:  sp("observacao"),
			},
			Lines: []entity.Line{{
				CustomerOrderItemNo: sp("7"),
				Description:         sp("Produto A"),
				Quantity:            fp(10),
				UnitOfMeasure:       sp("KG"),
				UnitPriceExclVAT:    fp(1234.56),
			}},
		},
		Warnings:     []string{"warn"},
		DocumentType: constants.DocTypePurchaseOrder,
	}

	doc := Normalize(out, Options{
		InputType:  constants.InputText,
		RawInput:   raw,
		SourceName: sp("example.txt"),
		ModelName:  "generic",
		DetectedBy: "RULE",
		Confidence: fp(0.8),
		Now:        fixedNow,
	})

	assert.Equal(t, "1.0", doc.SchemaVersion)
	assert.Equal(t, constants.CanonicalOrder, doc.Document.Type)
	assert.Equal(t, "purchase_order", doc.Document.Subtype)
	assert.Equal(t, "text/plain", doc.Document.Source.MimeType)
	assert.Equal(t, utils.SHA256Hex(raw), *doc.Document.Source.HashSHA256)
	assert.Equal(t, "2024-03-01T12:00:00.000Z", doc.Document.Source.IngestedAt)
	assert.Equal(t, constants.DetectedByRule, doc.Document.Model.DetectedBy)
	assert.NotEmpty(t, doc.Document.ID)

	assert.Equal(t, "2024-01-15", *doc.Order.IssueDate)
	assert.Equal(t, "2024-02-05", *doc.Order.DeliveryDate)
	assert.Equal(t, constants.CurrencyBRL, doc.Order.Currency)
	assert.Equal(t, "R$", *doc.Order.CurrencyRaw)
	assert.Equal(t, "12345678000190", *doc.Customer.TaxID)
	assert.Equal(t, []entity.Contact{
		{Type: "email", Value: "compras@cliente.com"},
		{Type: "phone", Value: "+55 11 99999-0000"},
		{Type: "person", Value: "Maria"},
	}, doc.Customer.Contacts)
	assert.Equal(t, "01234567", *doc.Addresses.Billing.Zip)
	assert.Nil(t, doc.Addresses.Shipping.Zip)

	require.Len(t, doc.Items, 1)
	item := doc.Items[0]
	assert.Equal(t, 7, item.LineNumber)
	assert.Nil(t, item.SKU)
	assert.InDelta(t, 12345.6, *item.Total, 1e-9)
	assert.Equal(t, "Produto A", item.Raw["description"])
	assert.InDelta(t, 12345.6, *doc.Totals.Total, 1e-9)

	assert.Equal(t, constants.ParsingStatusPartial, doc.Parsing.Status)
	assert.Empty(t, doc.Parsing.MissingFields)
	require.NoError(t, Validate(doc))
}

func TestNormalize_Status(t *testing.T) {
	complete := &entity.ParseResult{
		Order: entity.Order{
			CustomerOrderNumber: sp("PO-9"),
			OrderDate:           sp("2024-01-01"),
			SellTo:              entity.Party{Name: sp("Cliente X"), CNPJ: sp("12345678000190")},
		},
		Lines: []entity.Line{{Description: sp("Item sem SKU"), Quantity: fp(5), UnitPriceExclVAT: fp(10)}},
	}

	tests := []struct {
		name    string
		out     entity.LegacyOutput
		status  constants.ParsingStatus
		missing []string
	}{
		{"success", entity.LegacyOutput{Result: complete}, constants.ParsingStatusSuccess, []string{}},
		{"warnings make it partial", entity.LegacyOutput{Result: complete, Warnings: []string{"w"}}, constants.ParsingStatusPartial, []string{}},
		{
			"missing dates and items",
			entity.LegacyOutput{Result: &entity.ParseResult{Order: entity.Order{
				CustomerOrderNumber: sp("PO-1"),
				SellTo:              entity.Party{Name: sp("Cliente X"), CNPJ: sp("12345678000190")},
			}}},
			constants.ParsingStatusPartial,
			[]string{"order.issue_date", "items"},
		},
		{"no result", entity.LegacyOutput{}, constants.ParsingStatusFailed, RequiredFields},
		{"empty result", entity.LegacyOutput{Result: entity.EmptyParseResult()}, constants.ParsingStatusFailed, RequiredFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Normalize(tt.out, Options{InputType: constants.InputText})
			assert.Equal(t, tt.status, doc.Parsing.Status)
			assert.Equal(t, tt.missing, doc.Parsing.MissingFields)
			assert.NoError(t, Validate(doc))
		})
	}
}

func TestNormalize_ItemDefaults(t *testing.T) {
	out := entity.LegacyOutput{Result: &entity.ParseResult{Lines: []entity.Line{
		{Description: sp("a"), Quantity: fp(2), UnitPriceExclVAT: fp(9.5)},
		{Description: sp("b"), Total: fp(3)},
		{Description: sp("c"), Quantity: fp(1)},
	}}}

	doc := Normalize(out, Options{InputType: constants.InputPDF})
	assert.Equal(t, "application/pdf", doc.Document.Source.MimeType)
	assert.Nil(t, doc.Document.Source.HashSHA256)
	assert.Equal(t, "unknown", doc.Document.Model.Name)
	assert.Equal(t, constants.DetectedByUnknown, doc.Document.Model.DetectedBy)

	require.Len(t, doc.Items, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{doc.Items[0].LineNumber, doc.Items[1].LineNumber, doc.Items[2].LineNumber})
	assert.InDelta(t, 19.0, *doc.Items[0].Total, 1e-9)
	assert.InDelta(t, 3.0, *doc.Items[1].Total, 1e-9)
	assert.Nil(t, doc.Items[2].Total)
	assert.InDelta(t, 22.0, *doc.Totals.Subtotal, 1e-9)
	assert.Nil(t, doc.Totals.Freight)
}

func TestFailed(t *testing.T) {
	doc := Failed(Options{InputType: constants.InputText, DocumentID: "doc-1"}, "boom")
	assert.Equal(t, "doc-1", doc.Document.ID)
	assert.Equal(t, constants.ParsingStatusFailed, doc.Parsing.Status)
	assert.Equal(t, []string{"boom"}, doc.Parsing.Warnings)
	assert.Equal(t, constants.CanonicalUnknown, doc.Document.Type)
}
