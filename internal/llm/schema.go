package llm

var orderStringFields = []string{
	"customer_order_number", "order_date", "requested_delivery_date", "promised_delivery_date",
	"billing_date", "currency_code", "payment_terms", "payment_days_of_month", "payment_method",
	"shipping_method", "notes",
	"customer_name", "customer_cnpj", "customer_ie", "customer_phone", "customer_email", "customer_contact",
	"bill_address", "bill_number", "bill_complement", "bill_district", "bill_city", "bill_state", "bill_zip", "bill_country",
	"ship_address", "ship_number", "ship_complement", "ship_district", "ship_city", "ship_state", "ship_zip", "ship_country",
}

var lineStringFields = []string{
	"customer_order_item_no", "item_reference_no", "description", "unit_of_measure", "delivery_date",
}

var lineNumberFields = []string{"quantity", "unit_price_excl_vat"}

// BuildOrderJSONSchema returns the JSON Schema (draft 2020-12 subset) for
// ExtractedOrder. It is sent to the model and used to validate the reply.
func BuildOrderJSONSchema() map[string]any {
	orderProps := map[string]any{}
	for _, f := range orderStringFields {
		orderProps[f] = nullable("string")
	}
	orderProps["payment_terms_days"] = map[string]any{"type": []any{"integer", "null"}, "minimum": 0}

	lineProps := map[string]any{}
	for _, f := range lineStringFields {
		lineProps[f] = nullable("string")
	}
	for _, f := range lineNumberFields {
		lineProps[f] = nullable("number")
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"order", "lines"},
		"properties": map[string]any{
			"order": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties":           orderProps,
			},
			"lines": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties":           lineProps,
				},
			},
		},
	}
}

func nullable(typ string) map[string]any {
	return map[string]any{"type": []any{typ, "null"}}
}
